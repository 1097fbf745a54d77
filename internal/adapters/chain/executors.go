package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

// TokenMinter is the self-paid path. The transactor's key pays both the
// mint price and the fee.
type TokenMinter struct {
	reader     *Reader
	transactor *Transactor
	nft        common.Address
}

func NewTokenMinter(reader *Reader, transactor *Transactor, nft common.Address) *TokenMinter {
	return &TokenMinter{reader: reader, transactor: transactor, nft: nft}
}

func (m *TokenMinter) MintPrice(ctx context.Context) (*big.Int, error) {
	return m.reader.MintPrice(ctx)
}

func (m *TokenMinter) Mint(ctx context.Context, account common.Address, value *big.Int) (common.Hash, error) {
	data, err := DemoNFTABI.Pack("mint", account)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack mint: %w", err)
	}
	return m.transactor.Send(ctx, domain.Call{To: m.nft, Value: value, Data: data})
}

// SponsorMinter routes mintForFree through the privileged signer service.
type SponsorMinter struct {
	signer ports.SignerService
	nft    common.Address
}

func NewSponsorMinter(signer ports.SignerService, nft common.Address) *SponsorMinter {
	return &SponsorMinter{signer: signer, nft: nft}
}

func (m *SponsorMinter) MintForFree(ctx context.Context, account common.Address) (common.Hash, error) {
	data, err := DemoNFTABI.Pack("mintForFree", account)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack mintForFree: %w", err)
	}
	return m.signer.Submit(ctx, domain.Call{To: m.nft, Data: data})
}

// SessionStore reads sessions from the paymaster contract and starts them
// through the privileged signer service.
type SessionStore struct {
	reader    *Reader
	signer    ports.SignerService
	paymaster common.Address
}

func NewSessionStore(reader *Reader, signer ports.SignerService, paymasterAddress common.Address) *SessionStore {
	return &SessionStore{reader: reader, signer: signer, paymaster: paymasterAddress}
}

func (s *SessionStore) StartSession(ctx context.Context, account common.Address, durationSeconds int64) error {
	data, err := PaymasterABI.Pack("startGasSession", account, big.NewInt(durationSeconds))
	if err != nil {
		return fmt.Errorf("pack startGasSession: %w", err)
	}
	if _, err := s.signer.Submit(ctx, domain.Call{To: s.paymaster, Data: data}); err != nil {
		return err
	}
	return nil
}

func (s *SessionStore) SessionExpiry(ctx context.Context, account common.Address) (time.Time, error) {
	return s.reader.SessionExpiry(ctx, account)
}

var (
	_ ports.BalanceOracle       = (*Reader)(nil)
	_ ports.FeeOracle           = (*Reader)(nil)
	_ ports.SequenceSource      = (*Reader)(nil)
	_ ports.TokenMintExecutor   = (*TokenMinter)(nil)
	_ ports.SponsorMintExecutor = (*SponsorMinter)(nil)
	_ ports.SessionStore        = (*SessionStore)(nil)
)
