package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/snappedhq/postqueue/app/schedule"
)

var _ QueueRepository = (*QueueRepositoryImpl)(nil)

type QueueRepositoryImpl struct {
	db *DB
}

func NewQueueRepository(db *DB) *QueueRepositoryImpl {
	return &QueueRepositoryImpl{db: db}
}

// SaveBuild persists a build run atomically: the previous queue for
// (date, kind) is replaced, and every consumed file is flagged queued.
// A failure anywhere rolls the whole build back, so a queue entry can
// never reference a file that was not marked.
func (r *QueueRepositoryImpl) SaveBuild(queue Queue, clients []QueueClient, consumedFileIDs []string, queueTime time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM queue_clients WHERE queue_date = ? AND kind = ?`,
		queue.QueueDate, string(queue.Kind))
	if err != nil {
		return fmt.Errorf("failed to clear previous client queues: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO queues (queue_date, kind, status, total_posts, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (queue_date, kind) DO UPDATE SET
			status = excluded.status,
			total_posts = excluded.total_posts,
			created_at = excluded.created_at
	`, queue.QueueDate, string(queue.Kind), queue.Status, queue.TotalPosts, queueTime)
	if err != nil {
		return fmt.Errorf("failed to upsert queue: %w", err)
	}

	for _, client := range clients {
		postsJSON, err := json.Marshal(client.Posts)
		if err != nil {
			return fmt.Errorf("failed to encode posts for %s: %w", client.ClientID, err)
		}

		_, err = tx.Exec(`
			INSERT INTO queue_clients (queue_date, kind, client_id, posts, processed)
			VALUES (?, ?, ?, ?, ?)
		`, queue.QueueDate, string(queue.Kind), client.ClientID, string(postsJSON), client.Processed)
		if err != nil {
			return fmt.Errorf("failed to insert client queue for %s: %w", client.ClientID, err)
		}
	}

	if len(consumedFileIDs) > 0 {
		placeholders := strings.Repeat("?,", len(consumedFileIDs))
		placeholders = placeholders[:len(placeholders)-1]

		args := make([]interface{}, 0, len(consumedFileIDs)+1)
		args = append(args, queueTime)
		for _, id := range consumedFileIDs {
			args = append(args, id)
		}

		_, err = tx.Exec(`
			UPDATE upload_files SET queued = 1, queue_time = ?
			WHERE id IN (`+placeholders+`)
		`, args...)
		if err != nil {
			return fmt.Errorf("failed to mark files as queued: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build: %w", err)
	}

	return nil
}

func (r *QueueRepositoryImpl) GetQueue(queueDate string, kind ContentKind) (*Queue, []QueueClient, error) {
	var queue Queue
	var kindStr string
	err := r.db.QueryRow(`
		SELECT queue_date, kind, status, total_posts, created_at
		FROM queues WHERE queue_date = ? AND kind = ?
	`, queueDate, string(kind)).Scan(&queue.QueueDate, &kindStr, &queue.Status, &queue.TotalPosts, &queue.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get queue: %w", err)
	}
	queue.Kind = ContentKind(kindStr)

	rows, err := r.db.Query(`
		SELECT client_id, posts, processed
		FROM queue_clients
		WHERE queue_date = ? AND kind = ?
		ORDER BY client_id
	`, queueDate, string(kind))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get client queues: %w", err)
	}
	defer rows.Close()

	var clients []QueueClient
	for rows.Next() {
		client := QueueClient{QueueDate: queueDate, Kind: kind}
		var postsJSON string
		if err := rows.Scan(&client.ClientID, &postsJSON, &client.Processed); err != nil {
			return nil, nil, fmt.Errorf("failed to scan client queue: %w", err)
		}

		var posts []schedule.Post
		if err := json.Unmarshal([]byte(postsJSON), &posts); err != nil {
			return nil, nil, fmt.Errorf("failed to decode posts for %s: %w", client.ClientID, err)
		}
		client.Posts = posts
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate client queues: %w", err)
	}

	return &queue, clients, nil
}

func (r *QueueRepositoryImpl) MarkClientProcessed(queueDate string, kind ContentKind, clientID string) error {
	result, err := r.db.Exec(`
		UPDATE queue_clients SET processed = 1
		WHERE queue_date = ? AND kind = ? AND client_id = ?
	`, queueDate, string(kind), clientID)
	if err != nil {
		return fmt.Errorf("failed to mark client processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no queue entry for client %s on %s", clientID, queueDate)
	}

	return nil
}

func (r *QueueRepositoryImpl) GetQueueCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM queues`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queues: %w", err)
	}
	return count, nil
}
