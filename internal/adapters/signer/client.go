package signer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/gasmorph/internal/adapters/nodeerr"
	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang-jwt/jwt/v5"
)

// Client implements ports.SignerService against a remote signer.
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
}

func Dial(ctx context.Context, rawURL string, secret []byte, timeout time.Duration) (*Client, error) {
	if len(secret) == 0 {
		return nil, errors.New("dial signer: empty jwt secret")
	}

	client, err := rpc.DialOptions(ctx, rawURL, rpc.WithHTTPAuth(bearerAuth(secret, time.Now)))
	if err != nil {
		return nil, nodeerr.Classify(fmt.Errorf("dial signer %s: %w", rawURL, err))
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{rpc: client, timeout: timeout}, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) Submit(ctx context.Context, call domain.Call) (common.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, Namespace+"_submit", callArgs(call)); err != nil {
		return common.Hash{}, fmt.Errorf("signer submit: %w", mapError(err))
	}
	return hash, nil
}

func (c *Client) Address(ctx context.Context) (common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var address common.Address
	if err := c.rpc.CallContext(ctx, &address, Namespace+"_address"); err != nil {
		return common.Address{}, fmt.Errorf("signer address: %w", mapError(err))
	}
	return address, nil
}

func mapError(err error) error {
	if mapped := fromRPCError(err); mapped != nil {
		return mapped
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", domain.ErrNotAuthorized, err)
	}
	return nodeerr.Classify(err)
}

func bearerAuth(secret []byte, now func() time.Time) rpc.HTTPAuth {
	return func(h http.Header) error {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now()),
		})
		signed, err := token.SignedString(secret)
		if err != nil {
			return fmt.Errorf("sign bearer token: %w", err)
		}
		h.Set("Authorization", "Bearer "+signed)
		return nil
	}
}

var _ ports.SignerService = (*Client)(nil)
