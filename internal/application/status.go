package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
)

const recentMintsLimit = 5

type AccountStatus struct {
	Account     common.Address
	Verdict     domain.EligibilityVerdict
	Session     domain.SessionStatus
	Completed   domain.TaskCompletionSet
	TaskTotal   int
	MintCount   int
	RecentMints []domain.MintRecord
	CapturedAt  time.Time
}

// CanSponsor reports whether a session-mode mint would be sponsored right
// now.
func (s AccountStatus) CanSponsor() bool {
	return s.Session.Active && s.Completed.MeetsSponsorshipThreshold()
}

type StatusService struct {
	resolver *EligibilityResolver
	sessions SessionStatusReader
	tasks    *TaskService
	history  ports.MintHistory
	clock    ports.Clock
}

func NewStatusService(resolver *EligibilityResolver, sessions SessionStatusReader, tasks *TaskService, history ports.MintHistory, clock ports.Clock) *StatusService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &StatusService{resolver: resolver, sessions: sessions, tasks: tasks, history: history, clock: clock}
}

func (s *StatusService) Get(ctx context.Context, account common.Address) (AccountStatus, error) {
	verdict, err := s.resolver.Resolve(ctx, account)
	if err != nil {
		return AccountStatus{}, fmt.Errorf("resolve eligibility: %w", err)
	}

	session, err := s.sessions.Status(ctx, account)
	if err != nil {
		return AccountStatus{}, fmt.Errorf("read session status: %w", err)
	}

	completed, err := s.tasks.Progress(ctx, account)
	if err != nil {
		return AccountStatus{}, err
	}

	count, err := s.history.Count(ctx, account)
	if err != nil {
		return AccountStatus{}, fmt.Errorf("count mints: %w", err)
	}

	recent, err := s.history.List(ctx, account, recentMintsLimit)
	if err != nil {
		return AccountStatus{}, fmt.Errorf("list mints: %w", err)
	}

	return AccountStatus{
		Account:     account,
		Verdict:     verdict,
		Session:     session,
		Completed:   completed,
		TaskTotal:   len(s.tasks.Catalog()),
		MintCount:   count,
		RecentMints: recent,
		CapturedAt:  s.clock.Now(),
	}, nil
}
