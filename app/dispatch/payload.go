package dispatch

// Payload is the body POSTed to the publishing webhook for one post.
// Field names and the stringly "draft" flag are dictated by the
// Make.com scenario on the receiving end.
type Payload struct {
	Profile   string   `json:"profile"`
	MediaURLs []string `json:"media_urls"`
	PublishAt string   `json:"publish_at"` // UTC, 2006-01-02T15:04:05Z
	Draft     string   `json:"draft"`
	PublishAs string   `json:"snapchat_publish_as"`
	Caption   string   `json:"caption,omitempty"`
}
