package database

import (
	"time"

	"github.com/snappedhq/postqueue/app/schedule"
)

// QueueClient is one client's slice of a persisted daily queue.
type QueueClient struct {
	QueueDate string
	Kind      ContentKind
	ClientID  string
	Posts     []schedule.Post
	Processed bool
}

type UploadRepository interface {
	CreateSession(session UploadSession) (string, error)
	GetClientSessions(clientID string, kind ContentKind) ([]UploadSession, error)
	ListClientIDs(kind ContentKind) ([]string, error)
	CountSessions() (int, error)

	// ResetQueuedFlags clears queued/queue_time for a client's files
	// (all clients when clientID is empty). Returns affected rows.
	ResetQueuedFlags(clientID string, kind ContentKind) (int64, error)
}

type QueueRepository interface {
	// SaveBuild replaces the queue for (date, kind) and marks the
	// consumed files queued, all inside one transaction.
	SaveBuild(queue Queue, clients []QueueClient, consumedFileIDs []string, queueTime time.Time) error

	GetQueue(queueDate string, kind ContentKind) (*Queue, []QueueClient, error)
	MarkClientProcessed(queueDate string, kind ContentKind, clientID string) error
	GetQueueCount() (int, error)
}
