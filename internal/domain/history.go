package domain

import "time"

// HistoryRecord links a user to one completed image transform. Rows are never mutated.
type HistoryRecord struct {
	ID               int64
	UserID           int64
	OriginalFilename string
	EnhancedFilename string
	FilterType       string
	Timestamp        time.Time
}
