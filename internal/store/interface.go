package store

import (
	"context"
	"time"

	"arkdrop/internal/models"
)

// ItemStore is the persistence surface used by the server.
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	ListItems(ctx context.Context) ([]models.Item, error)
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ToggleFavorite(ctx context.Context, id int64) error
	DeleteItem(ctx context.Context, id int64) ([]string, error)
	Clean(ctx context.Context) ([]string, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, []string, error)
	Close() error
}

var _ ItemStore = (*Store)(nil)
