// Package nodeerr maps node, relayer and transport errors onto the domain
// error taxonomy.
package nodeerr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/rpc"
)

var conflictMarkers = []string{
	"nonce too low",
	"replacement transaction underpriced",
	"already known",
}

var transportMarkers = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"unexpected eof",
}

// Classify wraps err with the matching domain sentinel.
// Cancellation and unrecognised errors pass through unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range conflictMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", domain.ErrSequenceNumberConflict, err)
		}
	}
	if strings.Contains(msg, "insufficient funds") {
		return fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, err)
	}

	var netErr net.Error
	var httpErr rpc.HTTPError
	if errors.As(err, &netErr) || errors.As(err, &httpErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
	}
	for _, marker := range transportMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
		}
	}

	return err
}
