package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress accepts a 0x-prefixed 20-byte hex address in any letter case.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) || !strings.HasPrefix(strings.ToLower(trimmed), "0x") {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	return common.HexToAddress(trimmed), nil
}

// SameAddress compares two textual addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
