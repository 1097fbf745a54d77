// Package paymaster encodes and decodes the fixed-layout paymaster data
// consumed by the on-chain paymaster:
//
//	paymaster (20 bytes) || payer (20 bytes) || mode (1 byte)
//
// Fields are position dependent. Changing their order or width breaks the
// on-chain consumer.
package paymaster

import (
	"fmt"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

const (
	paymasterOffset = 0
	payerOffset     = paymasterOffset + common.AddressLength
	modeOffset      = payerOffset + common.AddressLength

	// Length is the exact size of an encoded value.
	Length = modeOffset + 1
)

func Encode(payer common.Address, mode domain.PaymasterMode, paymasterAddress common.Address) ([]byte, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("encode paymaster data: %w", domain.ErrUnknownMode)
	}

	data := make([]byte, 0, Length)
	data = append(data, paymasterAddress.Bytes()...)
	data = append(data, payer.Bytes()...)
	data = append(data, byte(mode))
	return data, nil
}

func Decode(data []byte) (domain.PaymasterData, error) {
	if len(data) != Length {
		return domain.PaymasterData{}, fmt.Errorf("%w: got %d bytes, want %d", domain.ErrMalformedLength, len(data), Length)
	}

	mode := domain.PaymasterMode(data[modeOffset])
	if !mode.Valid() {
		return domain.PaymasterData{}, fmt.Errorf("%w: 0x%02x", domain.ErrUnknownMode, data[modeOffset])
	}

	return domain.PaymasterData{
		Paymaster: common.BytesToAddress(data[paymasterOffset:payerOffset]),
		Payer:     common.BytesToAddress(data[payerOffset:modeOffset]),
		Mode:      mode,
	}, nil
}
