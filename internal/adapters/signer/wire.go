// Package signer isolates the privileged sponsor key behind an
// authenticated JSON-RPC service. Only the server side ever holds the key.
package signer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const Namespace = "signer"

// Error codes carried across the RPC boundary.
const (
	CodeSequenceConflict  = -32010
	CodeInsufficientFunds = -32011
	CodeNotAuthorized     = -32012
	CodeReverted          = -32013
)

type CallArgs struct {
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value,omitempty"`
	Data  hexutil.Bytes  `json:"data"`
}

func callArgs(call domain.Call) CallArgs {
	args := CallArgs{To: call.To, Data: call.Data}
	if call.Value != nil {
		args.Value = (*hexutil.Big)(new(big.Int).Set(call.Value))
	}
	return args
}

func (a CallArgs) call() domain.Call {
	call := domain.Call{To: a.To, Data: a.Data}
	if a.Value != nil {
		call.Value = new(big.Int).Set(a.Value.ToInt())
	}
	return call
}

type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string  { return e.msg }
func (e *codedError) ErrorCode() int { return e.code }

var codes = []struct {
	code     int
	sentinel error
}{
	{CodeSequenceConflict, domain.ErrSequenceNumberConflict},
	{CodeInsufficientFunds, domain.ErrInsufficientFunds},
	{CodeNotAuthorized, domain.ErrNotAuthorized},
	{CodeReverted, domain.ErrTransactionReverted},
}

func toRPCError(err error) error {
	for _, c := range codes {
		if errors.Is(err, c.sentinel) {
			return &codedError{code: c.code, msg: err.Error()}
		}
	}
	return err
}

// fromRPCError restores the domain sentinel of a coded server error. It
// returns nil when err carries none of the known codes.
func fromRPCError(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return nil
	}
	for _, c := range codes {
		if rpcErr.ErrorCode() == c.code {
			return fmt.Errorf("%w: %s", c.sentinel, rpcErr.Error())
		}
	}
	return nil
}
