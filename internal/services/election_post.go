package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/abrezinsky/forumelections/internal/logger"
	"github.com/abrezinsky/forumelections/internal/markup"
	"github.com/abrezinsky/forumelections/internal/models"
	"github.com/abrezinsky/forumelections/internal/repository"
)

// Text used in the rendered election post
const (
	NominatedTitle           = "Nominated"
	DefaultNominationMessage = "Nominations are open. Nominate yourself, then reply to this topic with a nomination statement."
)

// Nominee is one nominee as shown in the election post
type Nominee struct {
	Username  string
	AvatarURL string
	// StatementURL and Excerpt are empty when the nominee has no statement
	StatementURL string
	Excerpt      string
}

// PostView is everything the election post is rendered from
type PostView struct {
	Status   models.ElectionStatus
	Nominees []Nominee
	Message  string
}

// RenderElectionPost renders the first post of an election. It reports false
// when nothing can be rendered, which is a poll status with fewer than two
// nominees.
func RenderElectionPost(v PostView) (string, bool) {
	var b strings.Builder

	if v.Status.IsPoll() {
		if len(v.Nominees) < 2 {
			return "", false
		}
		b.WriteString("[poll type=regular]")
		for _, n := range v.Nominees {
			// The username keeps every poll option distinct; clients strip it
			b.WriteString("\n- ")
			b.WriteString(n.Username)
			b.WriteString(renderNominee(n))
		}
		b.WriteString("\n[/poll]")

		if v.Message != "" {
			b.WriteString("\n\n ")
			b.WriteString(v.Message)
		}
		return b.String(), true
	}

	if len(v.Nominees) > 0 {
		b.WriteString("<div class='title'>" + NominatedTitle + "</div>")
		b.WriteString("<div class='nomination-list'>")
		for _, n := range v.Nominees {
			b.WriteString(renderNominee(n))
		}
		b.WriteString("</div>")
	}

	message := v.Message
	if strings.TrimSpace(message) == "" {
		message = DefaultNominationMessage
	}
	b.WriteString("\n\n ")
	b.WriteString(message)
	return b.String(), true
}

func renderNominee(n Nominee) string {
	username := html.EscapeString(n.Username)

	var b strings.Builder
	b.WriteString("<div class='nomination'><span>")
	b.WriteString("<div class='nomination-user'>")
	fmt.Fprintf(&b, "<div class='trigger-user-card' href='/u/%s' data-user-card='%s'>", username, username)
	fmt.Fprintf(&b, "<img alt='' width='25' height='25' src='%s' class='avatar'>", html.EscapeString(n.AvatarURL))
	fmt.Fprintf(&b, "<a class='mention'>@%s</a>", username)
	b.WriteString("</div>")
	b.WriteString("</div>")
	b.WriteString("<div class='nomination-statement'>")
	if n.StatementURL != "" {
		fmt.Fprintf(&b, "<a href='%s'>%s</a>", n.StatementURL, n.Excerpt)
	}
	b.WriteString("</div>")
	b.WriteString("</span></div>")
	return b.String()
}

// ElectionPostService keeps the first post of an election in sync with its
// state
type ElectionPostService struct {
	log           logger.Logger
	maxPostLength int
}

// NewElectionPostService creates a new ElectionPostService
func NewElectionPostService(log logger.Logger, maxPostLength int) *ElectionPostService {
	return &ElectionPostService{log: log, maxPostLength: maxPostLength}
}

// View collects the render input for an election
func (s *ElectionPostService) View(ctx context.Context, repo repository.UserRepository, e *models.Election) (PostView, error) {
	users, err := repo.GetUsers(ctx, e.Nominations)
	if err != nil {
		return PostView{}, err
	}

	statements := make(map[int64]models.NominationStatement, len(e.Statements))
	for _, st := range e.Statements {
		statements[st.UserID] = st
	}

	view := PostView{Status: e.Status, Message: e.Message(e.Status)}
	for i := range users {
		u := &users[i]
		n := Nominee{Username: u.Username, AvatarURL: u.AvatarURL(50)}
		if st, ok := statements[u.ID]; ok {
			post := models.Post{ID: st.PostID}
			n.StatementURL = post.URL()
			n.Excerpt = st.Excerpt
		}
		view.Nominees = append(view.Nominees, n)
	}
	return view, nil
}

// Rebuild renders the election post from the election's current state and
// writes it. It reports whether the stored post changed.
func (s *ElectionPostService) Rebuild(ctx context.Context, repo repository.FullRepository, e *models.Election) (bool, error) {
	view, err := s.View(ctx, repo, e)
	if err != nil {
		return false, err
	}

	content, ok := RenderElectionPost(view)
	if !ok {
		return false, nil
	}
	return s.UpdatePost(ctx, repo, e.TopicID, content)
}

// UpdatePost writes content to the election post without keeping a
// revision. Identical content is not written again.
func (s *ElectionPostService) UpdatePost(ctx context.Context, repo repository.PostRepository, topicID int64, content string) (bool, error) {
	post, err := repo.GetFirstPost(ctx, topicID)
	if err != nil {
		return false, ErrRevisorFailed.Wrapf(fmt.Errorf("load election post: %w", err))
	}
	if post.Raw == content {
		return false, nil
	}

	if s.maxPostLength > 0 && utf8.RuneCountInString(content) > s.maxPostLength {
		return false, ErrRevisorFailed.Wrapf(fmt.Errorf("post is %d characters, the maximum is %d", utf8.RuneCountInString(content), s.maxPostLength))
	}

	if err := repo.UpdatePost(ctx, post.ID, content, markup.Cook(content), true); err != nil {
		return false, ErrRevisorFailed.Wrapf(err)
	}

	s.log.Debug("Election post rebuilt", "topic_id", topicID, "post_id", post.ID)
	return true, nil
}
