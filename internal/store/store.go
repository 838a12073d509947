package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/marketpartner/leadscout/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.Run, int, error)
}

// RunFilter narrows and paginates ListRuns.
type RunFilter struct {
	CompanyName string
	Page        int
	Limit       int
}
