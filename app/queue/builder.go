// Package queue builds the daily posting queues: it scans registered
// upload sessions for files eligible on a target date, schedules them
// across posting windows, and persists the result while flagging the
// consumed files so no later build selects them again.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snappedhq/postqueue/app/clients"
	"github.com/snappedhq/postqueue/app/database"
	"github.com/snappedhq/postqueue/app/naming"
	"github.com/snappedhq/postqueue/app/schedule"
)

type Builder struct {
	uploadRepo  database.UploadRepository
	queueRepo   database.QueueRepository
	configCache *clients.ConfigCache
	scheduler   *schedule.Scheduler
}

func NewBuilder(uploadRepo database.UploadRepository, queueRepo database.QueueRepository,
	configCache *clients.ConfigCache) *Builder {
	return &Builder{
		uploadRepo:  uploadRepo,
		queueRepo:   queueRepo,
		configCache: configCache,
		scheduler:   schedule.NewScheduler(),
	}
}

// Run builds and persists the queue for one date and kind. An empty
// clientFilter covers every client with uploads of that kind.
// Rebuilding a date replaces its previous queue outright; files
// already marked queued are never re-selected, so a rebuild with no
// newly eligible files leaves the date's queue empty.
func (b *Builder) Run(ctx context.Context, date time.Time, kind database.ContentKind, clientFilter string) (*BuildResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	targetDate := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	queueDate := targetDate.Format("2006-01-02")

	slog.Info("Starting queue build", "queue_date", queueDate, "kind", string(kind), "client_filter", clientFilter)

	var clientIDs []string
	if clientFilter != "" {
		clientIDs = []string{clientFilter}
	} else {
		ids, err := b.uploadRepo.ListClientIDs(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list clients: %w", err)
		}
		clientIDs = ids
	}

	result := &BuildResult{
		QueueDate:    queueDate,
		Kind:         kind,
		Status:       "pending",
		ClientQueues: make(map[string]ClientQueue),
	}

	var queueClients []database.QueueClient
	var consumedFileIDs []string

	for _, clientID := range clientIDs {
		posts, fileIDs := b.prepareClientQueue(clientID, kind, targetDate)
		if len(posts) == 0 {
			slog.Debug("No stories scheduled for client", "client", clientID, "queue_date", queueDate)
			continue
		}

		slog.Info("Scheduled stories for client", "client", clientID, "count", len(posts))

		result.ClientQueues[clientID] = ClientQueue{Stories: posts}
		result.TotalPosts += len(posts)

		queueClients = append(queueClients, database.QueueClient{
			QueueDate: queueDate,
			Kind:      kind,
			ClientID:  clientID,
			Posts:     posts,
		})
		consumedFileIDs = append(consumedFileIDs, fileIDs...)
	}

	queue := database.Queue{
		QueueDate:  queueDate,
		Kind:       kind,
		Status:     "pending",
		TotalPosts: result.TotalPosts,
	}

	err := b.queueRepo.SaveBuild(queue, queueClients, consumedFileIDs, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to persist queue: %w", err)
	}

	slog.Info("Queue build completed", "queue_date", queueDate, "kind", string(kind),
		"clients", len(queueClients), "total_posts", result.TotalPosts)

	return result, nil
}

// prepareClientQueue scans one client's sessions for eligible files and
// schedules them. Returns the posts and the database ids of the files
// they consume.
func (b *Builder) prepareClientQueue(clientID string, kind database.ContentKind, targetDate time.Time) ([]schedule.Post, []string) {
	config, err := b.configCache.GetConfig(clientID)
	if err != nil {
		slog.Error("No registration for client, skipping", "client", clientID, "error", err)
		return nil, nil
	}
	if !config.Enabled {
		slog.Debug("Client disabled, skipping", "client", clientID)
		return nil, nil
	}
	if config.SnapID == "" {
		slog.Error("No snap_id for client, skipping", "client", clientID)
		return nil, nil
	}

	sessions, err := b.uploadRepo.GetClientSessions(clientID, kind)
	if err != nil {
		slog.Error("Failed to load sessions for client, skipping", "client", clientID, "error", err)
		return nil, nil
	}

	var inputs []schedule.InputFile
	fileIDByKey := make(map[string]string)

	for _, session := range sessions {
		sessionDate, err := naming.ParseSessionDate(session.SessionID)
		if err != nil {
			slog.Warn("Skipping session with unparseable id", "client", clientID, "session", session.SessionID, "error", err)
			continue
		}
		if !sessionDate.Equal(targetDate) {
			continue
		}
		if config.RequireApproval && !session.Approved {
			slog.Debug("Session not approved, skipping", "client", clientID, "session", session.SessionID)
			continue
		}

		publishAs := publishAsFor(kind, session.ContentType, config)

		for _, file := range session.Files {
			if file.Queued {
				continue
			}

			inputs = append(inputs, schedule.InputFile{
				FileName:    file.FileName,
				CDNLink:     file.CDNLink,
				FileType:    file.FileType,
				Caption:     file.Caption,
				IsThumbnail: file.IsThumbnail,
				Bucket:      naming.TimeBucket(file.TimeBucket),
				SessionID:   session.SessionID,
				PublishAs:   publishAs,
			})
			fileIDByKey[session.SessionID+"\x00"+file.FileName] = file.ID
		}
	}

	if len(inputs) == 0 {
		return nil, nil
	}

	posts := b.scheduler.Run(config.SnapID, config.Timezone, inputs, targetDate)

	fileIDs := make([]string, 0, len(posts))
	for _, post := range posts {
		if id, ok := fileIDByKey[post.SessionID+"\x00"+post.FileName]; ok {
			fileIDs = append(fileIDs, id)
		}
	}

	return posts, fileIDs
}

func publishAsFor(kind database.ContentKind, contentType string, config *clients.Config) string {
	if contentType != "" {
		return contentType
	}
	if kind == database.KindSpotlight {
		return "SPOTLIGHT"
	}
	return config.PublishAs
}
