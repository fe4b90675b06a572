package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snappedhq/postqueue/app/database"
	"github.com/snappedhq/postqueue/app/queue"
)

type BuildQueueTask struct {
	Task
	builder      *queue.Builder
	date         time.Time
	kind         database.ContentKind
	clientFilter string
}

func NewBuildQueueTask(builder *queue.Builder, date time.Time, kind database.ContentKind, clientFilter string) *BuildQueueTask {
	subject := string(kind) + "/" + date.UTC().Format("2006-01-02")

	return &BuildQueueTask{
		Task:         NewTask(TaskTypeBuildQueue, subject),
		builder:      builder,
		date:         date,
		kind:         kind,
		clientFilter: clientFilter,
	}
}

func (t *BuildQueueTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.builder.Run(ctx, t.date, t.kind, t.clientFilter)
	if err != nil {
		return fmt.Errorf("failed to build queue: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"subject", t.GetSubject(),
		"duration", t.GetDuration(),
		"clients", len(result.ClientQueues),
		"posts", result.TotalPosts)

	return nil
}
