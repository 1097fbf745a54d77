package ports

import (
	"context"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// ConnectionRepository keeps per-connection task progress. Delete ends the
// connection and discards its progress.
type ConnectionRepository interface {
	Open(ctx context.Context, account common.Address) error
	Completed(ctx context.Context, account common.Address) (domain.TaskCompletionSet, bool, error)
	SaveCompleted(ctx context.Context, account common.Address, set domain.TaskCompletionSet) error
	Delete(ctx context.Context, account common.Address) error
}

// MintHistory is append-only.
type MintHistory interface {
	Append(ctx context.Context, record domain.MintRecord) error
	List(ctx context.Context, account common.Address, limit int) ([]domain.MintRecord, error)
	Count(ctx context.Context, account common.Address) (int, error)
}
