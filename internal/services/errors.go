package services

import (
	"fmt"

	apperrors "github.com/abrezinsky/forumelections/internal/errors"
)

// Service errors. Keys are stable and returned to clients as message_key.
var (
	ErrElectionNotFound      = apperrors.Keyed(apperrors.ErrNotFound, "election.errors.not_found", "election not found")
	ErrPostNotFound          = apperrors.Keyed(apperrors.ErrNotFound, "election.errors.post_not_found", "post not found")
	ErrCategoryNotFound      = apperrors.Keyed(apperrors.ErrNotFound, "election.errors.category_not_found", "category not found")
	ErrElectionsDisabled     = apperrors.Keyed(apperrors.ErrForbidden, "election.errors.elections_disabled", "elections are disabled")
	ErrTopicInaccessible     = apperrors.Keyed(apperrors.ErrConflict, "election.errors.topic_inaccessible", "election topic is closed")
	ErrNotAuthorized         = apperrors.Keyed(apperrors.ErrForbidden, "election.errors.not_authorized", "not authorized")
	ErrCategoryNotEnabled    = apperrors.Keyed(apperrors.ErrValidation, "election.errors.category_not_enabled", "category is not enabled for elections")
	ErrCreateFailed          = apperrors.Keyed(apperrors.ErrInternal, "election.errors.create_failed", "election creation failed")
	ErrInvalidStatus         = apperrors.Keyed(apperrors.ErrValidation, "election.errors.incorrect_status", "incorrect election status")
	ErrStatusNotChanged      = apperrors.Keyed(apperrors.ErrConflict, "election.errors.status_not_changed", "status not changed")
	ErrInsufficientNominees  = apperrors.Keyed(apperrors.ErrValidation, "election.errors.more_nominations", "at least two nominees are required")
	ErrSetStatusFailed       = apperrors.Keyed(apperrors.ErrInternal, "election.errors.set_status_failed", "failed to set election status")
	ErrSetMessageFailed      = apperrors.Keyed(apperrors.ErrInternal, "election.errors.set_message_failed", "failed to set election message")
	ErrPositionTooShort      = apperrors.Keyed(apperrors.ErrValidation, "election.errors.position_too_short", "position must be at least 3 characters")
	ErrSetPositionFailed     = apperrors.Keyed(apperrors.ErrInternal, "election.errors.set_position_failed", "failed to set election position")
	ErrRevisorFailed         = apperrors.Keyed(apperrors.ErrInternal, "election.errors.revisor_failed", "failed to revise election post")
	ErrSeparatePoll          = apperrors.Keyed(apperrors.ErrValidation, "election.errors.seperate_poll", "polls are not allowed in election replies")
	ErrInvalidMessageType    = apperrors.Keyed(apperrors.ErrInvalidInput, "election.errors.invalid_message_type", "unknown message type")
	ErrNominationsNotChanged = apperrors.Keyed(apperrors.ErrConflict, "election.errors.nominations_not_changed", "nominations not changed")
	ErrInvalidResultHours    = apperrors.Keyed(apperrors.ErrValidation, "election.errors.result_hours_invalid", "result hours must not be negative")
	ErrSetNominationsFailed  = apperrors.Keyed(apperrors.ErrInternal, "election.errors.set_nominations_failed", "failed to set nominations")

	ErrStatusBannerNotChanged = apperrors.Keyed(apperrors.ErrConflict, "election.errors.status_banner_not_changed", "status banner not changed")
	ErrResultHoursNotChanged  = apperrors.Keyed(apperrors.ErrConflict, "election.errors.status_banner_result_hours_not_changed", "status banner result hours not changed")

	ErrSelfNominationStateNotChanged = apperrors.Keyed(apperrors.ErrConflict, "election.errors.self_nomination_state_not_changed", "self nomination state not changed")
	ErrSelfNominationNotAllowed      = apperrors.Keyed(apperrors.ErrForbidden, "election.errors.self_nomination_not_allowed", "self nomination is not allowed in this election")
	ErrOnlyNamedUserCanSelfNominate  = apperrors.Keyed(apperrors.ErrForbidden, "election.errors.only_named_user_can_self_nominate", "only named users can self nominate")

	ErrInvalidPollSide       = apperrors.Keyed(apperrors.ErrInvalidInput, "election.errors.poll_side_invalid", "poll side must be open or close")
	ErrPollAfterIncomplete   = apperrors.Keyed(apperrors.ErrValidation, "election.errors.poll_after_incomplete", "hours and threshold are required")
	ErrNominationsAtLeast2   = apperrors.Keyed(apperrors.ErrValidation, "election.errors.nominations_at_least_2", "nominations threshold must be at least 2")
	ErrCloseHoursAtLeast1    = apperrors.Keyed(apperrors.ErrValidation, "election.errors.close_hours_at_least_1", "close hours must be at least 1")
	ErrNominationsAlreadyMet = apperrors.Keyed(apperrors.ErrValidation, "election.errors.nominations_already_met", "nominations threshold is already met")
	ErrTimeInvalid           = apperrors.Keyed(apperrors.ErrValidation, "election.errors.time_invalid", "time must be a valid future time")
)

// UserNotFoundError reports a username that does not resolve to a user
type UserNotFoundError struct {
	Username string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user was not found: %s", e.Username)
}

// Key is the client message key
func (e *UserNotFoundError) Key() string {
	return "election.errors.user_was_not_found"
}

// InsufficientTrustError reports a self nomination below the required trust level
type InsufficientTrustError struct {
	Level int
}

func (e *InsufficientTrustError) Error() string {
	return fmt.Sprintf("trust level %d is required to self nominate", e.Level)
}

// Key is the client message key
func (e *InsufficientTrustError) Key() string {
	return "election.errors.insufficient_trust_to_self_nominate"
}
