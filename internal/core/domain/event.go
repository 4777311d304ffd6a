package domain

import "time"

// Action names for recorded events. The vocabulary is open: handlers may record
// actions outside this list and the pipeline treats them as opaque tags.
const (
	ActionSessionStart         = "session_start"
	ActionSessionEnd           = "session_end"
	ActionScroll               = "scroll"
	ActionViewStart            = "view_start"
	ActionViewEnd              = "view_end"
	ActionReactPick            = "react_pick"
	ActionReactClear           = "react_clear"
	ActionShare                = "share"
	ActionCommentOpen          = "comment_open"
	ActionCommentSubmit        = "comment_submit"
	ActionCommentCancel        = "comment_cancel"
	ActionExpandText           = "expand_text"
	ActionLinkClick            = "link_click"
	ActionImageOpen            = "image_open"
	ActionReportMisinfo        = "report_misinformation_click"
	ActionParticipantIDEntered = "participant_id_entered"
	ActionFeedSubmit           = "feed_submit"
)

// Meta carries the action-specific fields of an event: a fixed set of optional
// typed fields plus an open map for anything a new action needs.
type Meta struct {
	PostID     string            `json:"post_id,omitempty"`
	Type       string            `json:"type,omitempty"`
	Text       string            `json:"text,omitempty"`
	Length     int               `json:"length,omitempty"`
	Y          int               `json:"y,omitempty"`
	Direction  string            `json:"direction,omitempty"`
	Ratio      float64           `json:"ratio,omitempty"`
	DurationMs int64             `json:"duration_ms,omitempty"`
	TotalMs    int64             `json:"total_ms,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Event is one user- or system-triggered occurrence in a session. Events are
// append-only: once recorded they are never mutated, and a session log is only
// ever appended to or, on an explicit administrative reset, cleared.
type Event struct {
	ID            string `json:"id"`
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id,omitempty"`
	Timestamp     string `json:"timestamp_iso"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	Action        string `json:"action"`
	Meta
}

// ISOTime formats t the way event timestamps are stored on the wire.
func ISOTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
