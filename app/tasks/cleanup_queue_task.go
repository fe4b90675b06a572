package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/snappedhq/postqueue/app/database"
)

// CleanupQueueTask clears the queued flags on uploaded files so a
// later build can pick them up again. An empty client id resets every
// client.
type CleanupQueueTask struct {
	Task
	uploadRepo database.UploadRepository
	clientID   string
	kind       database.ContentKind
}

func NewCleanupQueueTask(uploadRepo database.UploadRepository, clientID string, kind database.ContentKind) *CleanupQueueTask {
	subject := string(kind)
	if clientID != "" {
		subject += "/" + clientID
	}

	return &CleanupQueueTask{
		Task:       NewTask(TaskTypeCleanupQueue, subject),
		uploadRepo: uploadRepo,
		clientID:   clientID,
		kind:       kind,
	}
}

func (t *CleanupQueueTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	affected, err := t.uploadRepo.ResetQueuedFlags(t.clientID, t.kind)
	if err != nil {
		return fmt.Errorf("failed to reset queued flags: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"subject", t.GetSubject(),
		"duration", t.GetDuration(),
		"files_reset", affected)

	return nil
}
