package signer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang-jwt/jwt/v5"
)

// maxTokenAge bounds the clock skew accepted on the iat claim.
const maxTokenAge = 60 * time.Second

// Sender signs and sends calls with the privileged key.
type Sender interface {
	Send(ctx context.Context, call domain.Call) (common.Hash, error)
	From() common.Address
}

// Service is registered under the "signer" namespace. It refuses calls to
// contracts outside its allowed set.
type Service struct {
	sender  Sender
	allowed map[common.Address]struct{}
	logger  log.Logger
}

func NewService(sender Sender, allowedTargets []common.Address, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Root()
	}

	allowed := make(map[common.Address]struct{}, len(allowedTargets))
	for _, target := range allowedTargets {
		allowed[target] = struct{}{}
	}

	return &Service{sender: sender, allowed: allowed, logger: logger}
}

func (s *Service) Submit(ctx context.Context, args CallArgs) (common.Hash, error) {
	if _, ok := s.allowed[args.To]; !ok {
		s.logger.Warn("Rejected submission to unlisted target", "to", args.To)
		return common.Hash{}, toRPCError(fmt.Errorf("%w: target %s", domain.ErrNotAuthorized, args.To.Hex()))
	}

	hash, err := s.sender.Send(ctx, args.call())
	if err != nil {
		s.logger.Warn("Submission failed", "to", args.To, "err", err)
		return common.Hash{}, toRPCError(err)
	}

	s.logger.Info("Submission sent", "to", args.To, "tx", hash)
	return hash, nil
}

func (s *Service) Address() common.Address {
	return s.sender.From()
}

// NewHandler serves the service over HTTP JSON-RPC behind HS256 bearer
// authentication.
func NewHandler(service *Service, secret []byte) (http.Handler, func(), error) {
	if len(secret) == 0 {
		return nil, nil, errors.New("signer handler: empty jwt secret")
	}

	server := rpc.NewServer()
	if err := server.RegisterName(Namespace, service); err != nil {
		return nil, nil, fmt.Errorf("register signer service: %w", err)
	}

	return requireJWT(server, secret, time.Now), server.Stop, nil
}

func requireJWT(next http.Handler, secret []byte, now func() time.Time) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		if claims.IssuedAt == nil || now().Sub(claims.IssuedAt.Time).Abs() > maxTokenAge {
			http.Error(w, "stale bearer token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
