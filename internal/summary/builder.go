// Package summary reduces a session's event log to its participant row.
package summary

import (
	"strconv"
	"strings"

	"github.com/feedlab/feedlab/internal/core/domain"
)

// commentJoin separates multiple submitted comment texts in one cell. It is
// deliberately not a comma so the joined value survives CSV export intact.
const commentJoin = " | "

// Build derives the denormalized participant row from a session's event log
// and the post catalog. It is a pure function: it never mutates events and
// the same inputs always produce the same row.
//
// Timing anchors use the first participant_id_entered and the first
// feed_submit. A retried submission therefore does not move the interaction
// cutoff window; the roster upsert still replaces the whole row by session id
// on every call.
func Build(sessionID, participantID string, events []domain.Event, posts []domain.Post) domain.ParticipantRow {
	row := domain.ParticipantRow{
		SessionID:     sessionID,
		ParticipantID: participantID,
	}

	entered, enteredOK := firstByAction(events, domain.ActionParticipantIDEntered)
	submitIdx := -1
	for i, e := range events {
		if e.Action == domain.ActionFeedSubmit {
			submitIdx = i
			break
		}
	}

	if enteredOK {
		row.EnteredAt = entered.Timestamp
	}
	if submitIdx >= 0 {
		submit := events[submitIdx]
		row.SubmittedAt = submit.Timestamp
		if enteredOK {
			row.MsEnterToSubmit = strconv.FormatInt(submit.ElapsedMs-entered.ElapsedMs, 10)
		}

		// Last meaningful interaction: the last event strictly before the
		// first submit that is neither a scroll nor a submit.
		if enteredOK {
			for i := submitIdx - 1; i >= 0; i-- {
				a := events[i].Action
				if a == domain.ActionScroll || a == domain.ActionFeedSubmit {
					continue
				}
				row.MsEnterToLastInteraction = strconv.FormatInt(events[i].ElapsedMs-entered.ElapsedMs, 10)
				break
			}
		}
	}

	row.Posts = make([]domain.PostSummary, len(posts))
	for i, post := range posts {
		row.Posts[i] = summarizePost(events, post.ID)
	}
	return row
}

func firstByAction(events []domain.Event, action string) (domain.Event, bool) {
	for _, e := range events {
		if e.Action == action {
			return e, true
		}
	}
	return domain.Event{}, false
}

func summarizePost(events []domain.Event, postID string) domain.PostSummary {
	s := domain.PostSummary{
		Reacted:         "0",
		Commented:       "0",
		Shared:          "0",
		ReportedMisinfo: "0",
	}

	var reactions []string
	seen := make(map[string]bool)
	var comments []string

	for _, e := range events {
		if e.PostID != postID {
			continue
		}
		switch e.Action {
		case domain.ActionReactPick:
			s.Reacted = "1"
			if e.Type != "" && !seen[e.Type] {
				seen[e.Type] = true
				reactions = append(reactions, e.Type)
			}
		case domain.ActionCommentSubmit:
			s.Commented = "1"
			if e.Text != "" {
				comments = append(comments, e.Text)
			}
		case domain.ActionShare:
			s.Shared = "1"
		case domain.ActionReportMisinfo:
			s.ReportedMisinfo = "1"
		}
	}

	s.Reactions = strings.Join(reactions, commentJoin)
	s.CommentTexts = strings.Join(comments, commentJoin)
	return s
}
