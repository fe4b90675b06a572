package api

import (
	"github.com/snappedhq/postqueue/app/clients"
	"github.com/snappedhq/postqueue/app/database"
	"github.com/snappedhq/postqueue/app/dispatch"
	"github.com/snappedhq/postqueue/app/queue"
	"github.com/snappedhq/postqueue/app/tasks"
)

type Handler struct {
	uploadRepo       database.UploadRepository
	queueRepo        database.QueueRepository
	configCache      *clients.ConfigCache
	builder          *queue.Builder
	makeDispatcher   *dispatch.Dispatcher
	zapierDispatcher *dispatch.Dispatcher
	scheduler        tasks.TaskSchedulerInterface
}

// RegisterSessionRequest is the payload for registering an upload
// session with its files.
type RegisterSessionRequest struct {
	SessionID   string                `json:"session_id" binding:"required"`
	Kind        string                `json:"kind"`
	ContentType string                `json:"content_type"`
	Approved    bool                  `json:"approved"`
	Files       []RegisterFileRequest `json:"files" binding:"required"`
}

type RegisterFileRequest struct {
	FileName string `json:"file_name" binding:"required"`
	CDNLink  string `json:"cdn_link" binding:"required"`
	FileType string `json:"file_type"`
	Caption  string `json:"caption"`
}
