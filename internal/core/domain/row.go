package domain

import "fmt"

// PostSummary holds the per-post columns of a participant row. Flags are "0"
// or "1" strings so the flattened row is sheet- and CSV-ready without a
// separate formatting pass.
type PostSummary struct {
	Reacted         string `json:"reacted"`
	Reactions       string `json:"reactions"`
	Commented       string `json:"commented"`
	CommentTexts    string `json:"comment_texts"`
	Shared          string `json:"shared"`
	ReportedMisinfo string `json:"reported_misinfo"`
}

// ParticipantRow is the single denormalized record derived from one session's
// event log. Timing fields are empty strings when their anchor events are
// absent from the log; they never carry sentinel values.
type ParticipantRow struct {
	SessionID                string        `json:"session_id"`
	ParticipantID            string        `json:"participant_id"`
	EnteredAt                string        `json:"entered_at"`
	SubmittedAt              string        `json:"submitted_at"`
	MsEnterToSubmit          string        `json:"ms_enter_to_submit"`
	MsEnterToLastInteraction string        `json:"ms_enter_to_last_interaction"`
	Posts                    []PostSummary `json:"posts"`
}

// Column is one flattened cell of a participant row.
type Column struct {
	Key   string
	Value string
}

// Flatten renders the row as an ordered list of columns: identity and timing
// fields first, then per-post columns prefixed p1_, p2_, ... in catalog order.
// CSV export and the collector payload both consume this shape.
func (r ParticipantRow) Flatten() []Column {
	cols := []Column{
		{"session_id", r.SessionID},
		{"participant_id", r.ParticipantID},
		{"entered_at", r.EnteredAt},
		{"submitted_at", r.SubmittedAt},
		{"ms_enter_to_submit", r.MsEnterToSubmit},
		{"ms_enter_to_last_interaction", r.MsEnterToLastInteraction},
	}
	for i, p := range r.Posts {
		prefix := fmt.Sprintf("p%d_", i+1)
		cols = append(cols,
			Column{prefix + "reacted", p.Reacted},
			Column{prefix + "reactions", p.Reactions},
			Column{prefix + "commented", p.Commented},
			Column{prefix + "comment_texts", p.CommentTexts},
			Column{prefix + "shared", p.Shared},
			Column{prefix + "reported_misinfo", p.ReportedMisinfo},
		)
	}
	return cols
}

// FlatMap is Flatten as a lookup map, for payloads where order is carried by
// the receiver's schema rather than by position.
func (r ParticipantRow) FlatMap() map[string]string {
	cols := r.Flatten()
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[c.Key] = c.Value
	}
	return m
}
