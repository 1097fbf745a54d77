package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxMintAttempts bounds how often a sponsored mint is submitted.
const MaxMintAttempts = 3

type MintRecord struct {
	Account         common.Address
	Timestamp       time.Time
	TransactionHash common.Hash
	WasSponsored    bool
}

type MintResult struct {
	TransactionHash common.Hash
	WasSponsored    bool
	Attempts        int
}
