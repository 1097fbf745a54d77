// Package toml persists connection-scoped task progress in a TOML file.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	connectionsFileMode = 0o600
	connectionsDirMode  = 0o700
	tempFilePattern     = ".connections-*.toml.tmp"
)

type Repository struct {
	path  string
	mu    *sync.RWMutex
	clock ports.Clock
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.ConnectionRepository = (*Repository)(nil)

func NewRepository(path string, clock ports.Clock) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("connections path is empty")
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	normalized, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	return &Repository{path: normalized, mu: lockForPath(normalized), clock: clock}, nil
}

// Open records a connection. Reopening an open connection keeps its
// progress.
func (r *Repository) Open(ctx context.Context, account common.Address) error {
	return r.update(ctx, func(file *fileSchema) {
		if find(file, account) >= 0 {
			return
		}
		file.Connections = append(file.Connections, connectionSchema{
			Account:        key(account),
			ConnectedAt:    r.clock.Now().UTC(),
			CompletedTasks: []int{},
		})
	})
}

func (r *Repository) Completed(ctx context.Context, account common.Address) (domain.TaskCompletionSet, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.TaskCompletionSet{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.TaskCompletionSet{}, false, err
	}

	i := find(&file, account)
	if i < 0 {
		return domain.NewTaskCompletionSet(), false, nil
	}

	ids := make([]domain.TaskID, 0, len(file.Connections[i].CompletedTasks))
	for _, id := range file.Connections[i].CompletedTasks {
		ids = append(ids, domain.TaskID(id))
	}
	return domain.NewTaskCompletionSet(ids...), true, nil
}

func (r *Repository) SaveCompleted(ctx context.Context, account common.Address, set domain.TaskCompletionSet) error {
	var missing bool
	err := r.update(ctx, func(file *fileSchema) {
		i := find(file, account)
		if i < 0 {
			missing = true
			return
		}
		ids := make([]int, 0, set.Size())
		for _, id := range set.IDs() {
			ids = append(ids, int(id))
		}
		file.Connections[i].CompletedTasks = ids
	})
	if err != nil {
		return err
	}
	if missing {
		return domain.ErrNotConnected
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, account common.Address) error {
	return r.update(ctx, func(file *fileSchema) {
		i := find(file, account)
		if i < 0 {
			return
		}
		file.Connections = append(file.Connections[:i], file.Connections[i+1:]...)
	})
}

func (r *Repository) update(ctx context.Context, mutate func(*fileSchema)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	mutate(&file)

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func find(file *fileSchema, account common.Address) int {
	for i := range file.Connections {
		if strings.EqualFold(file.Connections[i].Account, key(account)) {
			return i
		}
	}
	return -1
}

func key(account common.Address) string {
	return strings.ToLower(account.Hex())
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read connections file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode connections file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve connections path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.path), connectionsDirMode); err != nil {
		return fmt.Errorf("create connections directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode connections file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp connections file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp connections file: %w", err)
	}
	if err := tempFile.Chmod(connectionsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp connections file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp connections file: %w", err)
	}

	if err := os.Rename(tempName, r.path); err != nil {
		return fmt.Errorf("replace connections file: %w", err)
	}
	cleanup = false

	return nil
}
