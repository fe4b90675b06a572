package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ UploadRepository = (*UploadRepositoryImpl)(nil)

type UploadRepositoryImpl struct {
	db *DB
}

func NewUploadRepository(db *DB) *UploadRepositoryImpl {
	return &UploadRepositoryImpl{db: db}
}

// CreateSession inserts a session with its files. Re-registering an
// existing (client, kind, session_id) replaces the file list but keeps
// queued flags of files that are already consumed.
func (r *UploadRepositoryImpl) CreateSession(session UploadSession) (string, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID string
	err = tx.QueryRow(`
		SELECT id FROM upload_sessions
		WHERE client_id = ? AND kind = ? AND session_id = ?
	`, session.ClientID, string(session.Kind), session.SessionID).Scan(&rowID)

	switch {
	case err == sql.ErrNoRows:
		rowID = uuid.NewString()
		_, err = tx.Exec(`
			INSERT INTO upload_sessions (id, client_id, kind, session_id, content_type, approved, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rowID, session.ClientID, string(session.Kind), session.SessionID,
			session.ContentType, session.Approved, time.Now().UTC())
		if err != nil {
			return "", fmt.Errorf("failed to insert session: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to look up session: %w", err)
	default:
		_, err = tx.Exec(`
			UPDATE upload_sessions SET content_type = ?, approved = ? WHERE id = ?
		`, session.ContentType, session.Approved, rowID)
		if err != nil {
			return "", fmt.Errorf("failed to update session: %w", err)
		}
	}

	for _, file := range session.Files {
		_, err = tx.Exec(`
			INSERT INTO upload_files (id, session_row_id, file_name, cdn_link, file_type, caption, is_thumbnail, time_bucket)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (session_row_id, file_name) DO UPDATE SET
				cdn_link = excluded.cdn_link,
				file_type = excluded.file_type,
				caption = excluded.caption,
				is_thumbnail = excluded.is_thumbnail,
				time_bucket = excluded.time_bucket
		`, uuid.NewString(), rowID, file.FileName, file.CDNLink, file.FileType,
			file.Caption, file.IsThumbnail, file.TimeBucket)
		if err != nil {
			return "", fmt.Errorf("failed to upsert file %s: %w", file.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit session: %w", err)
	}

	return rowID, nil
}

func (r *UploadRepositoryImpl) GetClientSessions(clientID string, kind ContentKind) ([]UploadSession, error) {
	rows, err := r.db.Query(`
		SELECT id, client_id, kind, session_id, content_type, approved, created_at
		FROM upload_sessions
		WHERE client_id = ? AND kind = ?
		ORDER BY session_id
	`, clientID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	defer rows.Close()

	var sessions []UploadSession
	for rows.Next() {
		var s UploadSession
		var kindStr string
		err := rows.Scan(&s.ID, &s.ClientID, &kindStr, &s.SessionID, &s.ContentType, &s.Approved, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.Kind = ContentKind(kindStr)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	for i := range sessions {
		files, err := r.getSessionFiles(sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Files = files
	}

	return sessions, nil
}

func (r *UploadRepositoryImpl) getSessionFiles(sessionRowID string) ([]UploadFile, error) {
	rows, err := r.db.Query(`
		SELECT id, session_row_id, file_name, cdn_link, file_type, caption, is_thumbnail, time_bucket, queued, queue_time
		FROM upload_files
		WHERE session_row_id = ?
		ORDER BY file_name
	`, sessionRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}
	defer rows.Close()

	var files []UploadFile
	for rows.Next() {
		var f UploadFile
		var queueTime sql.NullTime
		err := rows.Scan(&f.ID, &f.SessionRowID, &f.FileName, &f.CDNLink, &f.FileType,
			&f.Caption, &f.IsThumbnail, &f.TimeBucket, &f.Queued, &queueTime)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		if queueTime.Valid {
			t := queueTime.Time
			f.QueueTime = &t
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}

	return files, nil
}

func (r *UploadRepositoryImpl) ListClientIDs(kind ContentKind) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT client_id FROM upload_sessions WHERE kind = ? ORDER BY client_id
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list client ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan client id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate client ids: %w", err)
	}

	return ids, nil
}

func (r *UploadRepositoryImpl) CountSessions() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM upload_sessions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func (r *UploadRepositoryImpl) ResetQueuedFlags(clientID string, kind ContentKind) (int64, error) {
	query := `
		UPDATE upload_files SET queued = 0, queue_time = NULL
		WHERE queued = 1 AND session_row_id IN (
			SELECT id FROM upload_sessions WHERE kind = ?`
	args := []interface{}{string(kind)}

	if clientID != "" {
		query += ` AND client_id = ?`
		args = append(args, clientID)
	}
	query += `)`

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to reset queued flags: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}
