package port

import (
	"context"
	"errors"

	"github.com/garyjia/expense-screening/internal/domain/entity"
)

// ErrNotFound is returned when a stored entity does not exist
var ErrNotFound = errors.New("not found")

// RunRepository defines persistence operations for the screening-run ledger
type RunRepository interface {
	Create(ctx context.Context, run *entity.ScreeningRun) error
	GetByID(ctx context.Context, id string) (*entity.ScreeningRun, error)
	UpdateNotifyStatus(ctx context.Context, id, status string) error
	List(ctx context.Context, limit, offset int) ([]*entity.ScreeningRun, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
