package application

import (
	"context"
	"fmt"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/paymaster"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

// ModeBacking checks that the eligibility a paymaster mode asserts holds
// for the account right now.
type ModeBacking struct {
	Balances  ports.BalanceOracle
	Sessions  SessionStatusReader
	AllowList domain.AllowList
}

// Check returns ErrModeMismatch when session mode lacks an active session or
// token mode lacks both a token balance and allow-list membership.
func (b ModeBacking) Check(ctx context.Context, account common.Address, mode domain.PaymasterMode) error {
	if !mode.Valid() {
		return fmt.Errorf("check paymaster mode: %w", domain.ErrUnknownMode)
	}

	switch mode.Basis() {
	case domain.EligibilityBasisActiveSession:
		status, err := b.Sessions.Status(ctx, account)
		if err != nil {
			return fmt.Errorf("read session status: %w", err)
		}
		if status.Active {
			return nil
		}
	default:
		if b.AllowList.Contains(account) {
			return nil
		}
		balance, err := b.Balances.BalanceOf(ctx, account)
		if err != nil {
			return fmt.Errorf("read token balance: %w", err)
		}
		if balance != nil && balance.Sign() > 0 {
			return nil
		}
	}

	return fmt.Errorf("%w: %s mode for %s", domain.ErrModeMismatch, mode, account.Hex())
}

// OperationService submits envelopes to the relayer against the canonical
// entry point.
type OperationService struct {
	assembler  *Assembler
	relayer    ports.Relayer
	entryPoint common.Address
	backing    ModeBacking
}

func NewOperationService(assembler *Assembler, relayer ports.Relayer, entryPoint common.Address, backing ModeBacking) *OperationService {
	return &OperationService{assembler: assembler, relayer: relayer, entryPoint: entryPoint, backing: backing}
}

func (s *OperationService) EntryPoint() common.Address {
	return s.entryPoint
}

func (s *OperationService) Build(ctx context.Context, call domain.Call, account common.Address, mode domain.PaymasterMode) (domain.OperationEnvelope, error) {
	if err := s.backing.Check(ctx, account, mode); err != nil {
		return domain.OperationEnvelope{}, fmt.Errorf("build user operation: %w", err)
	}
	return s.assembler.Assemble(ctx, call, account, mode)
}

// Send refuses unsigned envelopes, envelopes whose paymaster data does not
// decode, and envelopes whose mode the sender is not eligible for.
func (s *OperationService) Send(ctx context.Context, op domain.OperationEnvelope) (common.Hash, error) {
	if !op.Signed() {
		return common.Hash{}, fmt.Errorf("send user operation: envelope is not signed")
	}
	if len(op.PaymasterAndData) > 0 {
		decoded, err := paymaster.Decode(op.PaymasterAndData)
		if err != nil {
			return common.Hash{}, fmt.Errorf("send user operation: %w", err)
		}
		if decoded.Payer != op.Sender {
			return common.Hash{}, fmt.Errorf("send user operation: %w: payer %s is not sender %s", domain.ErrModeMismatch, decoded.Payer.Hex(), op.Sender.Hex())
		}
		if err := s.backing.Check(ctx, op.Sender, decoded.Mode); err != nil {
			return common.Hash{}, fmt.Errorf("send user operation: %w", err)
		}
	}

	hash, err := s.relayer.SendUserOperation(ctx, op, s.entryPoint)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send user operation: %w", err)
	}
	return hash, nil
}

func (s *OperationService) Lookup(ctx context.Context, hash common.Hash) (domain.OperationReceipt, error) {
	receipt, err := s.relayer.UserOperationByHash(ctx, hash)
	if err != nil {
		return domain.OperationReceipt{}, fmt.Errorf("get user operation %s: %w", hash.Hex(), err)
	}
	return receipt, nil
}

func (s *OperationService) Estimate(ctx context.Context, op domain.OperationEnvelope) (domain.GasEstimate, error) {
	estimate, err := s.relayer.EstimateUserOperationGas(ctx, op, s.entryPoint)
	if err != nil {
		return domain.GasEstimate{}, fmt.Errorf("estimate user operation gas: %w", err)
	}
	return estimate, nil
}
