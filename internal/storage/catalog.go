package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/model"
)

// DefaultCategories is the taxonomy used until the user saves their own.
var DefaultCategories = []string{
	"Development",
	"Meeting",
	"Planning",
	"Research",
	"Communication",
	"Documentation",
	"Review",
	"Admin",
}

const (
	categoriesFile   = "categories.json"
	goalsFile        = "goals.json"
	deliverablesFile = "deliverables.json"
)

// loadList decodes a JSON array file into []T. A missing file yields nil.
// Elements that fail to decode are skipped with a warning.
func loadList[T any](s *Store, key, name string) ([]T, error) {
	path := filepath.Join(s.base, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage error reading %s: %w", path, err)
	}
	if kind := jsonKind(data); kind != "array" {
		if kind == "null" || kind == "empty" {
			return nil, nil
		}
		return nil, &DataShapeError{Key: key, Path: path, Want: "array", Got: kind}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("corrupt JSON in %s: %w", path, err)
	}
	out := make([]T, 0, len(elems))
	for i, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			s.log.Warn("skipping undecodable element",
				zap.String("key", key), zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func saveList[T any](s *Store, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}
	return writeAtomic(filepath.Join(s.base, name), data)
}

// Categories returns the user's category taxonomy, or DefaultCategories
// when none is stored. A malformed file degrades to the defaults.
func (s *Store) Categories() ([]string, error) {
	cats, err := loadList[string](s, "categories", categoriesFile)
	if err != nil {
		if IsDataShape(err) {
			s.log.Warn("using default categories", zap.Error(err))
			return append([]string(nil), DefaultCategories...), nil
		}
		return nil, err
	}
	if len(cats) == 0 {
		return append([]string(nil), DefaultCategories...), nil
	}
	return cats, nil
}

// SaveCategories stores the ordered category list, dropping blanks and
// case-insensitive duplicates.
func (s *Store) SaveCategories(cats []string) error {
	seen := map[string]bool{}
	var out []string
	for _, c := range cats {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return saveList(s, categoriesFile, out)
}

// Goals returns all stored goals.
func (s *Store) Goals() ([]model.Goal, error) {
	goals, err := loadList[model.Goal](s, "goals", goalsFile)
	if IsDataShape(err) {
		s.log.Warn("ignoring malformed goals", zap.Error(err))
		return nil, nil
	}
	return goals, err
}

// SaveGoals replaces the stored goals.
func (s *Store) SaveGoals(goals []model.Goal) error {
	return saveList(s, goalsFile, goals)
}

// Deliverables returns all stored deliverables.
func (s *Store) Deliverables() ([]model.Deliverable, error) {
	ds, err := loadList[model.Deliverable](s, "deliverables", deliverablesFile)
	if IsDataShape(err) {
		s.log.Warn("ignoring malformed deliverables", zap.Error(err))
		return nil, nil
	}
	return ds, err
}

// SaveDeliverables replaces the stored deliverables.
func (s *Store) SaveDeliverables(ds []model.Deliverable) error {
	return saveList(s, deliverablesFile, ds)
}
