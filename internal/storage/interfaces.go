package storage

import (
	"context"
	"time"
)

// DeliveryRepository handles the delivery journal.
type DeliveryRepository interface {
	AddDelivery(ctx context.Context, d Delivery) (int64, error)
	GetDeliveries(ctx context.Context, filter DeliveryFilter, limit int) ([]Delivery, error)
	GetOutcomeCounts(ctx context.Context) (map[string]int, error)
	CleanupDeliveries(ctx context.Context, olderThan time.Time) (int64, error)
}

// UserRepository handles user data operations.
type UserRepository interface {
	UpsertUser(user User) error
	CountUsers() (int, error)
}

// MaintenanceRepository handles database maintenance operations.
type MaintenanceRepository interface {
	GetDBSize() (int64, error)
	GetTableSizes() ([]TableSize, error)
}
