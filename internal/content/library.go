package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/scribblestars/scribble-engine/internal/models"
	"github.com/scribblestars/scribble-engine/internal/storage"
)

// Library holds the static level content: ordered target words per level.
// Content is loaded once at startup and read-only afterwards.
type Library struct {
	mu     sync.RWMutex
	levels map[int]*models.Level
}

type contentFile struct {
	Levels []levelEntry `yaml:"levels"`
}

type levelEntry struct {
	LevelID int      `yaml:"level_id"`
	Tasks   []string `yaml:"tasks"`
}

// NewLibrary creates an empty level library
func NewLibrary() *Library {
	return &Library{levels: make(map[int]*models.Level)}
}

// LoadFromFile loads level content from a YAML file
func (l *Library) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read content file: %w", err)
	}

	var file contentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse content file: %w", err)
	}

	if len(file.Levels) == 0 {
		return fmt.Errorf("content file %s defines no levels", path)
	}

	levels := make(map[int]*models.Level, len(file.Levels))
	for _, entry := range file.Levels {
		if entry.LevelID < 1 {
			return fmt.Errorf("invalid level id %d", entry.LevelID)
		}
		if _, dup := levels[entry.LevelID]; dup {
			return fmt.Errorf("duplicate level id %d", entry.LevelID)
		}
		if len(entry.Tasks) == 0 {
			return fmt.Errorf("level %d has no tasks", entry.LevelID)
		}

		tasks := make([]string, len(entry.Tasks))
		for i, word := range entry.Tasks {
			word = strings.ToUpper(strings.TrimSpace(word))
			if word == "" {
				return fmt.Errorf("level %d has an empty task at index %d", entry.LevelID, i)
			}
			tasks[i] = word
		}

		levels[entry.LevelID] = &models.Level{ID: entry.LevelID, Tasks: tasks}
	}

	l.mu.Lock()
	l.levels = levels
	l.mu.Unlock()

	slog.Info("level content loaded", "file", path, "levels", len(levels))
	return nil
}

// Get returns a level by id
func (l *Library) Get(levelID int) (*models.Level, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	level, ok := l.levels[levelID]
	return level, ok
}

// List returns all levels ordered by id
func (l *Library) List() []*models.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Level, 0, len(l.levels))
	for _, level := range l.levels {
		result = append(result, level)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Seed writes every level into the levels collection. Writes use merge set
// semantics so reseeding on every startup is safe.
func (l *Library) Seed(ctx context.Context, store storage.Store) error {
	for _, level := range l.List() {
		doc, err := storage.Encode(level)
		if err != nil {
			return err
		}
		id := strconv.Itoa(level.ID)
		if err := store.Set(ctx, storage.CollectionLevels, id, doc, true); err != nil {
			return fmt.Errorf("failed to seed level %d: %w", level.ID, err)
		}
	}

	slog.Info("level content seeded", "levels", len(l.levels))
	return nil
}
