package config

import (
	_ "embed"
	"fmt"

	"github.com/bnema/gasmorph/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed tasks.yaml
var defaultTasksYAML []byte

type taskEntry struct {
	ID          int    `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Kind        string `yaml:"kind"`
}

// TaskCatalog returns the built-in social task catalog.
func TaskCatalog() ([]domain.Task, error) {
	return parseTaskCatalog(defaultTasksYAML)
}

func parseTaskCatalog(data []byte) ([]domain.Task, error) {
	var doc struct {
		Tasks []taskEntry `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode task catalog: %w", err)
	}

	seen := make(map[int]struct{}, len(doc.Tasks))
	tasks := make([]domain.Task, 0, len(doc.Tasks))
	for _, entry := range doc.Tasks {
		if entry.ID <= 0 {
			return nil, fmt.Errorf("task catalog: invalid id %d", entry.ID)
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("task catalog: duplicate id %d", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		tasks = append(tasks, domain.Task{
			ID:          domain.TaskID(entry.ID),
			Title:       entry.Title,
			Description: entry.Description,
			Kind:        entry.Kind,
		})
	}
	if len(tasks) < domain.MinTasksForSponsorship {
		return nil, fmt.Errorf("task catalog: %d tasks, need at least %d", len(tasks), domain.MinTasksForSponsorship)
	}
	return tasks, nil
}
