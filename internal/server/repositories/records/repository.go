package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.Record, prefix string) (*models.Record, error)
	Update(ctx context.Context, r *models.Record) error
	Delete(ctx context.Context, table, id string) error
	ListChanged(ctx context.Context, table string, since time.Time) ([]*models.Record, error)
	ListAll(ctx context.Context, table string) ([]*models.Record, error)
}
