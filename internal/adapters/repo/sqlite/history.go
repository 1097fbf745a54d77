// Package sqlite keeps the append-only mint history.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/bnema/gasmorph/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS mints (
	id         TEXT PRIMARY KEY,
	account    TEXT NOT NULL,
	tx_hash    TEXT NOT NULL,
	sponsored  INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS mints_account_created ON mints (account, created_at DESC);
`

// History stores MintRecords. Rows are only ever inserted.
type History struct {
	sqlDB *sql.DB
}

var _ ports.MintHistory = (*History)(nil)

func Open(path string) (*History, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	return &History{sqlDB: sqlDB}, nil
}

func (h *History) Close() error {
	if h == nil || h.sqlDB == nil {
		return nil
	}
	return h.sqlDB.Close()
}

func (h *History) Append(ctx context.Context, record domain.MintRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	_, err := h.sqlDB.ExecContext(ctx, `
INSERT INTO mints (id, account, tx_hash, sponsored, created_at)
VALUES (?, ?, ?, ?, ?)
`,
		uuid.NewString(),
		accountKey(record.Account),
		record.TransactionHash.Hex(),
		record.WasSponsored,
		record.Timestamp.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append mint record: %w", err)
	}
	return nil
}

// List returns newest-first records. limit <= 0 returns everything.
func (h *History) List(ctx context.Context, account common.Address, limit int) ([]domain.MintRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.sqlDB.QueryContext(ctx, `
SELECT tx_hash, sponsored, created_at
FROM mints
WHERE account = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, accountKey(account), limit)
	if err != nil {
		return nil, fmt.Errorf("list mint records: %w", err)
	}
	defer rows.Close()

	var records []domain.MintRecord
	for rows.Next() {
		var (
			txHash    string
			sponsored bool
			createdAt int64
		)
		if err := rows.Scan(&txHash, &sponsored, &createdAt); err != nil {
			return nil, fmt.Errorf("scan mint record: %w", err)
		}
		records = append(records, domain.MintRecord{
			Account:         account,
			Timestamp:       time.UnixMilli(createdAt).UTC(),
			TransactionHash: common.HexToHash(txHash),
			WasSponsored:    sponsored,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mint records: %w", err)
	}
	return records, nil
}

func (h *History) Count(ctx context.Context, account common.Address) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int
	if err := h.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM mints WHERE account = ?`, accountKey(account)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count mint records: %w", err)
	}
	return count, nil
}

func accountKey(account common.Address) string {
	return strings.ToLower(account.Hex())
}
