package db

import (
	"context"
	"database/sql"
	"fmt"

	"file-server/internal/server"
)

// DownloadLog writes download events to the downloads table.
type DownloadLog struct {
	db *sql.DB
}

// NewDownloadLog returns a recorder backed by db.
func NewDownloadLog(db *sql.DB) *DownloadLog {
	return &DownloadLog{db: db}
}

var _ server.DownloadRecorder = (*DownloadLog)(nil)

// RecordDownload implements server.DownloadRecorder.
func (l *DownloadLog) RecordDownload(ctx context.Context, ev server.DownloadEvent) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO downloads (id, file_name, status, bytes, client_ip, user_agent, request_id, downloaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		ev.ID,
		ev.FileName,
		ev.Status,
		ev.Bytes,
		ev.ClientIP,
		nullString(ev.UserAgent),
		nullString(ev.RequestID),
		ev.At,
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	return nil
}

// CountForFile returns how many successful downloads a file has had.
func (l *DownloadLog) CountForFile(ctx context.Context, name string) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM downloads WHERE file_name = $1 AND status < 300`, name,
	).Scan(&n)
	return n, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
