package application

import (
	"context"
	"fmt"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// SessionStatusReader is the part of the session manager the resolver needs.
type SessionStatusReader interface {
	Status(ctx context.Context, account common.Address) (domain.SessionStatus, error)
}

type EligibilityResolver struct {
	balances  ports.BalanceOracle
	sessions  SessionStatusReader
	allowList domain.AllowList
	logger    log.Logger
}

func NewEligibilityResolver(balances ports.BalanceOracle, sessions SessionStatusReader, allowList domain.AllowList, logger log.Logger) *EligibilityResolver {
	if logger == nil {
		logger = log.Root()
	}

	return &EligibilityResolver{
		balances:  balances,
		sessions:  sessions,
		allowList: allowList,
		logger:    logger,
	}
}

// Resolve reads the balance and session state on every call. A failed
// balance read falls back to allow-list membership so a transient outage
// never revokes a granted badge.
func (r *EligibilityResolver) Resolve(ctx context.Context, account common.Address) (domain.EligibilityVerdict, error) {
	balance, err := r.balances.BalanceOf(ctx, account)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.EligibilityVerdict{}, ctxErr
		}
		r.logger.Warn("Balance read failed, falling back to allow-list", "account", account, "err", err)
		return r.resolveWithoutBalance(ctx, account)
	}

	tokens, overflow := uint256.FromBig(balance)
	if overflow {
		tokens = new(uint256.Int).SetAllOne()
	}
	verdict := domain.EligibilityVerdict{TokenBalance: tokens, BalanceKnown: true}

	if !tokens.IsZero() {
		verdict.Eligible = true
		verdict.Basis = domain.EligibilityBasisTokenBalance
		return verdict, nil
	}
	if r.allowList.Contains(account) {
		verdict.Eligible = true
		verdict.Basis = domain.EligibilityBasisAllowList
		return verdict, nil
	}

	status, err := r.sessions.Status(ctx, account)
	if err != nil {
		return domain.EligibilityVerdict{}, fmt.Errorf("read session status: %w", err)
	}
	if status.Active {
		verdict.Eligible = true
		verdict.Basis = domain.EligibilityBasisActiveSession
	}

	return verdict, nil
}

func (r *EligibilityResolver) resolveWithoutBalance(ctx context.Context, account common.Address) (domain.EligibilityVerdict, error) {
	verdict := domain.EligibilityVerdict{
		Basis:        domain.EligibilityBasisAllowList,
		TokenBalance: new(uint256.Int),
	}
	if r.allowList.Contains(account) {
		verdict.Eligible = true
		return verdict, nil
	}

	status, err := r.sessions.Status(ctx, account)
	if err != nil {
		return domain.EligibilityVerdict{}, fmt.Errorf("read session status: %w", err)
	}
	if status.Active {
		verdict.Eligible = true
		verdict.Basis = domain.EligibilityBasisActiveSession
	}

	return verdict, nil
}
