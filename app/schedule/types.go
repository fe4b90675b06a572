package schedule

import (
	"time"

	"github.com/snappedhq/postqueue/app/naming"
)

// InputFile is one eligible upload file handed to the scheduler.
type InputFile struct {
	FileName    string
	CDNLink     string
	FileType    string
	Caption     string
	IsThumbnail bool
	Bucket      naming.TimeBucket
	SessionID   string
	PublishAs   string
}

// Post is a scheduled queue entry for a single file.
type Post struct {
	FileName    string    `json:"file_name"`
	CDNURL      string    `json:"cdn_url"`
	FileType    string    `json:"file_type"`
	SnapID      string    `json:"snap_id"`
	Timezone    string    `json:"timezone"`
	PublishAs   string    `json:"snapchat_publish_as"`
	SessionID   string    `json:"session_id"`
	Caption     string    `json:"caption,omitempty"`
	IsThumbnail bool      `json:"is_thumbnail,omitempty"`
	ScheduledAt time.Time `json:"scheduled_time"`
}
