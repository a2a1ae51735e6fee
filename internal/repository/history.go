package repository

import (
	"context"

	"image-enhancer/internal/domain"
)

// HistoryRepository persists the audit trail of completed transforms.
type HistoryRepository interface {
	Create(ctx context.Context, record *domain.HistoryRecord) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.HistoryRecord, error)
}
