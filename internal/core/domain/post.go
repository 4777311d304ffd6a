package domain

// Post is one feed item from the study's stimulus catalog. The catalog is
// fixed for the lifetime of a deployment and ordered; participant row columns
// are keyed by catalog position, not post id.
type Post struct {
	ID       string `json:"id"`
	Author   string `json:"author,omitempty"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	LinkURL  string `json:"link_url,omitempty"`
}
