package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type EligibilityBasis string

const (
	EligibilityBasisNone          EligibilityBasis = ""
	EligibilityBasisTokenBalance  EligibilityBasis = "token_balance"
	EligibilityBasisAllowList     EligibilityBasis = "allow_list"
	EligibilityBasisActiveSession EligibilityBasis = "active_session"
)

func (b EligibilityBasis) Label() string {
	switch b {
	case EligibilityBasisTokenBalance:
		return "token holder"
	case EligibilityBasisAllowList:
		return "allow-list"
	case EligibilityBasisActiveSession:
		return "active session"
	default:
		return "none"
	}
}

// EligibilityVerdict is derived on every request and never persisted.
type EligibilityVerdict struct {
	Eligible     bool
	Basis        EligibilityBasis
	TokenBalance *uint256.Int
	// BalanceKnown is false when the balance read failed and the verdict
	// fell back to the allow-list.
	BalanceKnown bool
}

// AllowList is a static, read-only set of addresses. Membership is
// case-insensitive on the hex form.
type AllowList struct {
	members map[string]struct{}
}

func NewAllowList(addresses ...string) AllowList {
	members := make(map[string]struct{}, len(addresses))
	for _, address := range addresses {
		trimmed := strings.ToLower(strings.TrimSpace(address))
		if trimmed == "" {
			continue
		}
		members[trimmed] = struct{}{}
	}

	return AllowList{members: members}
}

func (l AllowList) Contains(account common.Address) bool {
	_, ok := l.members[strings.ToLower(account.Hex())]
	return ok
}

func (l AllowList) Len() int {
	return len(l.members)
}
