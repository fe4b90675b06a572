package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/snappedhq/postqueue/app/database"
	"github.com/snappedhq/postqueue/app/dispatch"
)

type DispatchQueueTask struct {
	Task
	dispatcher *dispatch.Dispatcher
	targetDate string
	kind       database.ContentKind
}

// NewDispatchQueueTask dispatches the queue for targetDate (today UTC
// when empty) and kind through the configured webhook.
func NewDispatchQueueTask(dispatcher *dispatch.Dispatcher, targetDate string, kind database.ContentKind) *DispatchQueueTask {
	subject := string(kind) + "/" + targetDate

	return &DispatchQueueTask{
		Task:       NewTask(TaskTypeDispatchQueue, subject),
		dispatcher: dispatcher,
		targetDate: targetDate,
		kind:       kind,
	}
}

func (t *DispatchQueueTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.dispatcher.ProcessQueues(ctx, t.targetDate, t.kind)
	if err != nil {
		return fmt.Errorf("failed to dispatch queue: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"subject", t.GetSubject(),
		"duration", t.GetDuration())

	return nil
}
