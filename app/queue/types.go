package queue

import (
	"github.com/snappedhq/postqueue/app/database"
	"github.com/snappedhq/postqueue/app/schedule"
)

// ClientQueue is one client's share of a build result, in the shape
// the build endpoint returns and the dispatcher consumes.
type ClientQueue struct {
	Stories   []schedule.Post `json:"stories"`
	Processed bool            `json:"processed"`
}

// BuildResult summarizes one build run for a date and kind.
type BuildResult struct {
	QueueDate    string                 `json:"queue_date"`
	Kind         database.ContentKind   `json:"kind"`
	Status       string                 `json:"status"`
	ClientQueues map[string]ClientQueue `json:"client_queues"`
	TotalPosts   int                    `json:"total_posts"`
}
