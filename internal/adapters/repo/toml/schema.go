package toml

import (
	"fmt"
	"time"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version     int                `toml:"version"`
	Connections []connectionSchema `toml:"connections"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported connections schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type connectionSchema struct {
	Account        string    `toml:"account"`
	ConnectedAt    time.Time `toml:"connected_at"`
	CompletedTasks []int     `toml:"completed_tasks"`
}
