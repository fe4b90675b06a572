package database

import (
	"time"
)

// ContentKind distinguishes the parallel queue families. Each kind has
// its own uploads and its own daily queue.
type ContentKind string

const (
	KindStory     ContentKind = "story"
	KindSpotlight ContentKind = "spotlight"
	KindSaved     ContentKind = "saved"
)

func (k ContentKind) Valid() bool {
	switch k {
	case KindStory, KindSpotlight, KindSaved:
		return true
	}
	return false
}

// AllKinds lists every queue family, in build order.
var AllKinds = []ContentKind{KindStory, KindSpotlight, KindSaved}

type UploadSession struct {
	ID          string // Database UUID
	ClientID    string
	Kind        ContentKind
	SessionID   string // Upload identifier encoding the session date
	ContentType string
	Approved    bool
	CreatedAt   time.Time
	Files       []UploadFile
}

type UploadFile struct {
	ID           string // Database UUID
	SessionRowID string
	FileName     string
	CDNLink      string
	FileType     string
	Caption      string
	IsThumbnail  bool
	TimeBucket   string // Parsed filename extension letter: "", m, a, e, l
	Queued       bool
	QueueTime    *time.Time
}

type Queue struct {
	QueueDate  string // ISO date
	Kind       ContentKind
	Status     string
	TotalPosts int
	CreatedAt  time.Time
}
