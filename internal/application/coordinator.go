package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxAttempts  = domain.MaxMintAttempts
	DefaultRetryBackoff = time.Second
)

// signerLocks serializes sponsored submissions per privileged signer across
// every coordinator in the process.
var signerLocks = newAddressLocks()

// TaskProgressReader is the part of the task service the coordinator needs.
type TaskProgressReader interface {
	Progress(ctx context.Context, account common.Address) (domain.TaskCompletionSet, error)
}

type CoordinatorOptions struct {
	// Signer identifies the privileged signer behind the sponsor executor.
	Signer       common.Address
	MaxAttempts  int
	RetryBackoff time.Duration
	Clock        ports.Clock
	Logger       log.Logger
	Tracer       trace.Tracer
}

// Coordinator executes mints on either the self-paid or the sponsored path
// and records exactly one MintRecord per successful mint.
type Coordinator struct {
	sessions SessionStatusReader
	tasks    TaskProgressReader
	tokens   ports.TokenMintExecutor
	sponsor  ports.SponsorMintExecutor
	history  ports.MintHistory

	signer      common.Address
	maxAttempts int
	backoff     time.Duration
	clock       ports.Clock
	logger      log.Logger
	tracer      trace.Tracer
}

func NewCoordinator(
	sessions SessionStatusReader,
	tasks TaskProgressReader,
	tokens ports.TokenMintExecutor,
	sponsor ports.SponsorMintExecutor,
	history ports.MintHistory,
	opts CoordinatorOptions,
) *Coordinator {
	if opts.MaxAttempts <= 0 || opts.MaxAttempts > domain.MaxMintAttempts {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Root()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/bnema/gasmorph/internal/application")
	}

	return &Coordinator{
		sessions:    sessions,
		tasks:       tasks,
		tokens:      tokens,
		sponsor:     sponsor,
		history:     history,
		signer:      opts.Signer,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.RetryBackoff,
		clock:       opts.Clock,
		logger:      opts.Logger,
		tracer:      opts.Tracer,
	}
}

func (c *Coordinator) Execute(ctx context.Context, account common.Address, intended domain.PaymasterMode) (result domain.MintResult, err error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.execute", trace.WithAttributes(
		attribute.String("account", account.Hex()),
		attribute.String("intended_mode", intended.String()),
	))
	defer func() {
		span.SetAttributes(
			attribute.Bool("sponsored", result.WasSponsored),
			attribute.Int("attempts", result.Attempts),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sponsored, err := c.shouldSponsor(ctx, account, intended)
	if err != nil {
		return domain.MintResult{}, err
	}
	c.logger.Debug("Sponsorship decided", "account", account, "intended", intended, "sponsored", sponsored)

	if sponsored {
		result, err = c.mintSponsored(ctx, account)
	} else {
		result, err = c.mintSelfPaid(ctx, account)
	}
	if err != nil {
		return result, err
	}

	record := domain.MintRecord{
		Account:         account,
		Timestamp:       c.clock.Now(),
		TransactionHash: result.TransactionHash,
		WasSponsored:    result.WasSponsored,
	}
	if err := c.history.Append(ctx, record); err != nil {
		return result, fmt.Errorf("record mint %s: %w", result.TransactionHash.Hex(), err)
	}

	c.logger.Info("Mint recorded", "account", account, "tx", result.TransactionHash, "sponsored", result.WasSponsored, "attempts", result.Attempts)
	return result, nil
}

func (c *Coordinator) shouldSponsor(ctx context.Context, account common.Address, intended domain.PaymasterMode) (bool, error) {
	if intended != domain.PaymasterModeSession {
		return false, nil
	}

	status, err := c.sessions.Status(ctx, account)
	if err != nil {
		return false, fmt.Errorf("read session status: %w", err)
	}
	if !status.Active {
		return false, nil
	}

	completed, err := c.tasks.Progress(ctx, account)
	if err != nil {
		return false, fmt.Errorf("read task progress: %w", err)
	}

	return completed.MeetsSponsorshipThreshold(), nil
}

// mintSelfPaid submits the user's own signed intent exactly once.
func (c *Coordinator) mintSelfPaid(ctx context.Context, account common.Address) (domain.MintResult, error) {
	price, err := c.tokens.MintPrice(ctx)
	if err != nil {
		return domain.MintResult{}, fmt.Errorf("read mint price: %w", err)
	}

	hash, err := c.tokens.Mint(ctx, account, price)
	if err != nil {
		return domain.MintResult{Attempts: 1}, fmt.Errorf("mint: %w", err)
	}

	return domain.MintResult{TransactionHash: hash, Attempts: 1}, nil
}

// mintSponsored holds the signer lock for the whole retry loop and retries
// only on sequence-number conflicts, with linear backoff.
func (c *Coordinator) mintSponsored(ctx context.Context, account common.Address) (domain.MintResult, error) {
	mu := signerLocks.forAddress(c.signer)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		hash, err := c.sponsor.MintForFree(ctx, account)
		if err == nil {
			return domain.MintResult{TransactionHash: hash, WasSponsored: true, Attempts: attempt}, nil
		}
		if !errors.Is(err, domain.ErrSequenceNumberConflict) {
			return domain.MintResult{Attempts: attempt}, fmt.Errorf("sponsored mint: %w", err)
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		delay := time.Duration(attempt) * c.backoff
		c.logger.Warn("Sequence conflict on sponsored mint, retrying", "account", account, "attempt", attempt, "delay", delay, "err", err)
		if err := sleepWithContext(ctx, delay); err != nil {
			return domain.MintResult{Attempts: attempt}, err
		}
	}

	return domain.MintResult{Attempts: c.maxAttempts}, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, c.maxAttempts, lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
