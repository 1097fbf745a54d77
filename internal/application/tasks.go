package application

import (
	"context"
	"fmt"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// TaskService tracks catalog task completion for the lifetime of an
// account's connection.
type TaskService struct {
	catalog []domain.Task
	repo    ports.ConnectionRepository
	logger  log.Logger
	locks   *addressLocks
}

func NewTaskService(catalog []domain.Task, repo ports.ConnectionRepository, logger log.Logger) *TaskService {
	if logger == nil {
		logger = log.Root()
	}

	return &TaskService{
		catalog: append([]domain.Task(nil), catalog...),
		repo:    repo,
		logger:  logger,
		locks:   newAddressLocks(),
	}
}

func (s *TaskService) Catalog() []domain.Task {
	return append([]domain.Task(nil), s.catalog...)
}

func (s *TaskService) Connect(ctx context.Context, account common.Address) error {
	if err := s.repo.Open(ctx, account); err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	return nil
}

// Disconnect ends the connection and resets its task progress.
func (s *TaskService) Disconnect(ctx context.Context, account common.Address) error {
	mu := s.locks.forAddress(account)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.Delete(ctx, account); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	s.logger.Debug("Connection closed", "account", account)
	return nil
}

// Complete marks id done. Completing the same task twice is a no-op and
// reports added=false.
func (s *TaskService) Complete(ctx context.Context, account common.Address, id domain.TaskID) (bool, domain.TaskCompletionSet, error) {
	if !s.known(id) {
		return false, domain.TaskCompletionSet{}, fmt.Errorf("%w: %d", domain.ErrUnknownTask, id)
	}

	mu := s.locks.forAddress(account)
	mu.Lock()
	defer mu.Unlock()

	set, connected, err := s.repo.Completed(ctx, account)
	if err != nil {
		return false, domain.TaskCompletionSet{}, fmt.Errorf("load task progress: %w", err)
	}
	if !connected {
		return false, domain.TaskCompletionSet{}, fmt.Errorf("complete task %d for %s: %w", id, account.Hex(), domain.ErrNotConnected)
	}

	if !set.Add(id) {
		return false, set, nil
	}
	if err := s.repo.SaveCompleted(ctx, account, set); err != nil {
		return false, domain.TaskCompletionSet{}, fmt.Errorf("save task progress: %w", err)
	}

	s.logger.Debug("Task completed", "account", account, "task", id, "completed", set.Size())
	return true, set, nil
}

// Progress returns the completed set. An account without an open
// connection has an empty set.
func (s *TaskService) Progress(ctx context.Context, account common.Address) (domain.TaskCompletionSet, error) {
	set, _, err := s.repo.Completed(ctx, account)
	if err != nil {
		return domain.TaskCompletionSet{}, fmt.Errorf("load task progress: %w", err)
	}
	return set, nil
}

func (s *TaskService) known(id domain.TaskID) bool {
	for _, task := range s.catalog {
		if task.ID == id {
			return true
		}
	}
	return false
}
