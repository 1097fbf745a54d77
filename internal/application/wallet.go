package application

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// WalletService keeps hex private keys in the secret store under a
// reference.
type WalletService struct {
	store ports.SecretStore
}

func NewWalletService(store ports.SecretStore) *WalletService {
	return &WalletService{store: store}
}

func (s *WalletService) Import(ctx context.Context, ref, hexKey string) (common.Address, error) {
	if strings.TrimSpace(ref) == "" {
		return common.Address{}, fmt.Errorf("import wallet: empty key reference")
	}

	normalized := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("import wallet: parse private key: %w", err)
	}

	if err := s.store.Put(ctx, ref, normalized); err != nil {
		return common.Address{}, fmt.Errorf("import wallet: store key: %w", err)
	}

	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func (s *WalletService) LoadKey(ctx context.Context, ref string) (*ecdsa.PrivateKey, error) {
	raw, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load wallet %q: %w", ref, err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("load wallet %q: parse private key: %w", ref, err)
	}
	return key, nil
}

// Address derives the account address of the stored key.
func (s *WalletService) Address(ctx context.Context, ref string) (common.Address, error) {
	key, err := s.LoadKey(ctx, ref)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

