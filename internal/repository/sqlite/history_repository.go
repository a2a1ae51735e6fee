package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"image-enhancer/internal/domain"
	"image-enhancer/internal/repository"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Create(ctx context.Context, record *domain.HistoryRecord) (int64, error) {
	record.Timestamp = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO image_history (user_id, original_filename, enhanced_filename, filter_type, timestamp)
VALUES (?, ?, ?, ?, ?)`,
		record.UserID,
		record.OriginalFilename,
		record.EnhancedFilename,
		record.FilterType,
		record.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("insert history record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history last insert id: %w", err)
	}
	record.ID = id
	return id, nil
}

// ListByUser returns the user's records newest first. id breaks ties between equal timestamps.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID int64) ([]domain.HistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, original_filename, enhanced_filename, filter_type, timestamp
FROM image_history
WHERE user_id = ?
ORDER BY timestamp DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []domain.HistoryRecord{}
	for rows.Next() {
		var rec domain.HistoryRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.OriginalFilename,
			&rec.EnhancedFilename,
			&rec.FilterType,
			&rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
