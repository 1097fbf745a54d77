package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PaymasterMode is the single mode byte appended to paymaster data.
type PaymasterMode uint8

const (
	PaymasterModeToken   PaymasterMode = 0x00
	PaymasterModeSession PaymasterMode = 0x01
)

func (m PaymasterMode) Valid() bool {
	return m == PaymasterModeToken || m == PaymasterModeSession
}

func (m PaymasterMode) String() string {
	switch m {
	case PaymasterModeToken:
		return "token"
	case PaymasterModeSession:
		return "session"
	default:
		return fmt.Sprintf("mode(0x%02x)", uint8(m))
	}
}

// ParsePaymasterMode accepts "token"/"nft" and "session".
func ParsePaymasterMode(raw string) (PaymasterMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "token", "nft":
		return PaymasterModeToken, nil
	case "session":
		return PaymasterModeSession, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

// Basis returns the eligibility basis a mode asserts to the paymaster.
func (m PaymasterMode) Basis() EligibilityBasis {
	if m == PaymasterModeSession {
		return EligibilityBasisActiveSession
	}
	return EligibilityBasisTokenBalance
}

type PaymasterData struct {
	Paymaster common.Address
	Payer     common.Address
	Mode      PaymasterMode
}
