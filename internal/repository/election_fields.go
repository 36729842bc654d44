package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/abrezinsky/forumelections/internal/models"
)

// Topic custom field names holding election state
const (
	FieldStatus                  = "election_status"
	FieldPosition                = "election_position"
	FieldSelfNominationAllowed   = "election_self_nomination_allowed"
	FieldNominations             = "election_nominations"
	FieldNominationStatements    = "election_nomination_statements"
	FieldNominationMessage       = "election_nomination_message"
	FieldPollMessage             = "election_poll_message"
	FieldClosedPollMessage       = "election_closed_poll_message"
	FieldStatusBanner            = "election_status_banner"
	FieldStatusBannerResultHours = "election_status_banner_result_hours"
	FieldPollVoters              = "election_poll_voters"
)

// timingFields names the custom fields of one poll timing side
type timingFields struct {
	enabled, after, hours, threshold, time, scheduled string
}

var (
	pollOpenFields = timingFields{
		enabled:   "election_poll_open",
		after:     "election_poll_open_after",
		hours:     "election_poll_open_after_hours",
		threshold: "election_poll_open_after_nominations",
		time:      "election_poll_open_time",
		scheduled: "election_poll_open_scheduled",
	}
	pollCloseFields = timingFields{
		enabled:   "election_poll_close",
		after:     "election_poll_close_after",
		hours:     "election_poll_close_after_hours",
		threshold: "election_poll_close_after_voters",
		time:      "election_poll_close_time",
		scheduled: "election_poll_close_scheduled",
	}
)

// encodeElection flattens election state into custom field values
func encodeElection(e *models.Election) (map[string]string, error) {
	nominations := e.Nominations
	if nominations == nil {
		nominations = []int64{}
	}
	nominationsJSON, err := json.Marshal(nominations)
	if err != nil {
		return nil, err
	}

	statements := e.Statements
	if statements == nil {
		statements = []models.NominationStatement{}
	}
	statementsJSON, err := json.Marshal(statements)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{
		FieldStatus:                  strconv.Itoa(int(e.Status)),
		FieldPosition:                e.Position,
		FieldSelfNominationAllowed:   strconv.FormatBool(e.SelfNominationAllowed),
		FieldNominations:             string(nominationsJSON),
		FieldNominationStatements:    string(statementsJSON),
		FieldNominationMessage:       e.NominationMessage,
		FieldPollMessage:             e.PollMessage,
		FieldClosedPollMessage:       e.ClosedPollMessage,
		FieldStatusBanner:            strconv.FormatBool(e.StatusBanner),
		FieldStatusBannerResultHours: strconv.Itoa(e.StatusBannerResultHours),
		FieldPollVoters:              strconv.Itoa(e.PollVoters),
	}
	encodeTiming(fields, pollOpenFields, e.PollOpen)
	encodeTiming(fields, pollCloseFields, e.PollClose)
	return fields, nil
}

func encodeTiming(fields map[string]string, names timingFields, t models.PollTiming) {
	fields[names.enabled] = strconv.FormatBool(t.Enabled)
	fields[names.after] = strconv.FormatBool(t.After)
	fields[names.hours] = strconv.Itoa(t.Hours)
	fields[names.threshold] = strconv.Itoa(t.Threshold)
	fields[names.scheduled] = strconv.FormatBool(t.Scheduled)
	if t.Time != nil {
		fields[names.time] = t.Time.UTC().Format(time.RFC3339)
	} else {
		fields[names.time] = ""
	}
}

// decodeElection builds an election from a topic and its custom fields
func decodeElection(t *models.Topic, fields map[string]string) (*models.Election, error) {
	rawStatus, ok := fields[FieldStatus]
	if !ok {
		return nil, ErrNotElection
	}
	status, err := strconv.Atoi(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("topic %d: bad %s %q", t.ID, FieldStatus, rawStatus)
	}

	e := &models.Election{
		TopicID:                 t.ID,
		CategoryID:              t.CategoryID,
		Title:                   t.Title,
		Slug:                    t.Slug,
		Closed:                  t.Closed,
		Status:                  models.ElectionStatus(status),
		Position:                fields[FieldPosition],
		SelfNominationAllowed:   parseBool(fields[FieldSelfNominationAllowed]),
		NominationMessage:       fields[FieldNominationMessage],
		PollMessage:             fields[FieldPollMessage],
		ClosedPollMessage:       fields[FieldClosedPollMessage],
		StatusBanner:            parseBool(fields[FieldStatusBanner]),
		StatusBannerResultHours: parseInt(fields[FieldStatusBannerResultHours]),
		PollVoters:              parseInt(fields[FieldPollVoters]),
		Nominations:             []int64{},
		Statements:              []models.NominationStatement{},
	}

	if v := fields[FieldNominations]; v != "" {
		if err := json.Unmarshal([]byte(v), &e.Nominations); err != nil {
			return nil, fmt.Errorf("topic %d: decode %s: %w", t.ID, FieldNominations, err)
		}
	}
	if v := fields[FieldNominationStatements]; v != "" {
		if err := json.Unmarshal([]byte(v), &e.Statements); err != nil {
			return nil, fmt.Errorf("topic %d: decode %s: %w", t.ID, FieldNominationStatements, err)
		}
	}

	if e.PollOpen, err = decodeTiming(fields, pollOpenFields); err != nil {
		return nil, fmt.Errorf("topic %d: %w", t.ID, err)
	}
	if e.PollClose, err = decodeTiming(fields, pollCloseFields); err != nil {
		return nil, fmt.Errorf("topic %d: %w", t.ID, err)
	}
	return e, nil
}

func decodeTiming(fields map[string]string, names timingFields) (models.PollTiming, error) {
	t := models.PollTiming{
		Enabled:   parseBool(fields[names.enabled]),
		After:     parseBool(fields[names.after]),
		Hours:     parseInt(fields[names.hours]),
		Threshold: parseInt(fields[names.threshold]),
		Scheduled: parseBool(fields[names.scheduled]),
	}
	if v := fields[names.time]; v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return t, fmt.Errorf("decode %s: %w", names.time, err)
		}
		t.Time = &parsed
	}
	return t, nil
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func parseInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}
