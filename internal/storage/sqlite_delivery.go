package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// AddDelivery appends a row to the journal. CreatedAt defaults to now.
func (s *SQLiteStore) AddDelivery(ctx context.Context, d Delivery) (int64, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO deliveries (request_id, chat_id, message_id, user_id, url, mode, outcome, decision,
			file_count, bytes, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		d.RequestID, d.ChatID, d.MessageID, d.UserID, d.URL, d.Mode, d.Outcome, d.Decision,
		d.FileCount, d.Bytes, d.DurationMs, d.Error, d.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	recordDelivery(d.Outcome)
	return res.LastInsertId()
}

// GetDeliveries returns the most recent rows first.
func (s *SQLiteStore) GetDeliveries(ctx context.Context, filter DeliveryFilter, limit int) ([]Delivery, error) {
	var where []string
	var args []interface{}
	if filter.ChatID != 0 {
		where = append(where, "chat_id = ?")
		args = append(args, filter.ChatID)
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	query := `SELECT id, request_id, chat_id, message_id, user_id, url, mode, outcome, decision,
		file_count, bytes, duration_ms, error, created_at FROM deliveries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var decision, errText sql.NullString
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.RequestID, &d.ChatID, &d.MessageID, &d.UserID, &d.URL, &d.Mode,
			&d.Outcome, &decision, &d.FileCount, &d.Bytes, &d.DurationMs, &errText, &createdAt); err != nil {
			return nil, err
		}
		d.Decision = decision.String
		d.Error = errText.String
		d.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetOutcomeCounts returns the number of journal rows per outcome.
func (s *SQLiteStore) GetOutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM deliveries GROUP BY outcome")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// CleanupDeliveries deletes rows created before olderThan and returns how many were removed.
func (s *SQLiteStore) CleanupDeliveries(ctx context.Context, olderThan time.Time) (int64, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, "DELETE FROM deliveries WHERE created_at < ?", olderThan.UnixMilli())
	if err != nil {
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	RecordCleanupDeleted("deliveries", deleted)
	RecordCleanupDuration("deliveries", time.Since(start).Seconds())
	return deleted, nil
}
