package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/ttt-insights/internal/model"
)

// DataShapeError reports stored data that does not have the expected
// array/object shape.
type DataShapeError struct {
	Key  string // logical key, e.g. "timeEntries" or "goals"
	Path string
	Want string
	Got  string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("data shape error in %s (%s): expected %s, got %s", e.Key, e.Path, e.Want, e.Got)
}

// IsDataShape reports whether err is (or wraps) a DataShapeError.
func IsDataShape(err error) bool {
	var shapeErr *DataShapeError
	return errors.As(err, &shapeErr)
}

// Store is the file-backed persistent store rooted at a base directory.
// Time entries live in one JSON file per calendar day; categories, goals and
// deliverables in one JSON list each.
type Store struct {
	base string
	log  *zap.Logger
}

// New returns a Store rooted at base. A nil logger discards warnings.
func New(base string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{base: base, log: log}
}

// Base returns the root data directory.
func (s *Store) Base() string { return s.base }

// BaseDir returns the default root data directory (~/.ttt).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".ttt"), nil
}

// dayFilePath returns the path for the given date's JSON file.
func (s *Store) dayFilePath(t time.Time) string {
	return filepath.Join(s.base, t.Format("2006"), t.Format("01"), t.Format("02")+".json")
}

// DateKey is the key under which entries for t are stored.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// jsonKind describes the top-level JSON value in data.
func jsonKind(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "empty"
	}
	switch trimmed[0] {
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	}
	return "number"
}

// LoadDay loads the DayFile for the given date. Returns an empty DayFile if
// not found. A file with valid JSON of the wrong shape or with wrong-typed
// fields yields a *DataShapeError and is left in place; only malformed JSON
// is backed up and reported.
func (s *Store) LoadDay(t time.Time) (model.DayFile, error) {
	path := s.dayFilePath(t)
	empty := model.DayFile{Date: DateKey(t), Entries: []model.Entry{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return empty, nil
	}
	if err != nil {
		return model.DayFile{}, fmt.Errorf("storage error reading %s: %w", path, err)
	}

	var raw struct {
		Date    json.RawMessage `json:"date"`
		Entries json.RawMessage `json:"entries"`
	}
	if kind := jsonKind(data); kind != "object" {
		return empty, &DataShapeError{Key: "timeEntries", Path: path, Want: "object", Got: kind}
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		// Back up corrupt file and abort.
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return model.DayFile{}, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}

	df := model.DayFile{Date: DateKey(t), Entries: []model.Entry{}}
	switch kind := jsonKind(raw.Date); kind {
	case "empty", "null":
	case "string":
		var date string
		if err := json.Unmarshal(raw.Date, &date); err == nil && date != "" {
			df.Date = date
		}
	default:
		return empty, &DataShapeError{Key: "timeEntries", Path: path, Want: "string date", Got: kind}
	}
	if len(raw.Entries) == 0 || jsonKind(raw.Entries) == "null" {
		return df, nil
	}
	if kind := jsonKind(raw.Entries); kind != "array" {
		return empty, &DataShapeError{Key: "timeEntries", Path: path, Want: "array", Got: kind}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw.Entries, &elems); err != nil {
		return empty, &DataShapeError{Key: "timeEntries", Path: path, Want: "array", Got: "malformed array"}
	}
	for i, elem := range elems {
		var e model.Entry
		if kind := jsonKind(elem); kind != "object" {
			s.log.Warn("skipping time entry with unexpected shape",
				zap.String("path", path), zap.Int("index", i), zap.String("got", kind))
			continue
		}
		if err := json.Unmarshal(elem, &e); err != nil {
			s.log.Warn("skipping undecodable time entry",
				zap.String("path", path), zap.Int("index", i), zap.Error(err))
			continue
		}
		df.Entries = append(df.Entries, e)
	}
	return df, nil
}

// SaveDay atomically writes a DayFile for the given date.
func (s *Store) SaveDay(t time.Time, df model.DayFile) error {
	path := s.dayFilePath(t)
	if df.Entries == nil {
		df.Entries = []model.Entry{}
	}
	data, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes to a temp file then renames it into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

// FindActiveEntry searches the last seven day files (most recent first) for
// a running entry. It returns the entry and the date it was found on.
func (s *Store) FindActiveEntry(now time.Time) (*model.Entry, time.Time, error) {
	for i := 0; i < 7; i++ {
		day := now.AddDate(0, 0, -i)
		df, err := s.LoadDay(day)
		if err != nil {
			if IsDataShape(err) {
				s.log.Warn("ignoring malformed day file", zap.Error(err))
				continue
			}
			return nil, time.Time{}, err
		}
		for j := len(df.Entries) - 1; j >= 0; j-- {
			if df.Entries[j].Active() {
				return &df.Entries[j], day, nil
			}
		}
	}
	return nil, time.Time{}, nil
}

// UpdateEntry replaces or appends an entry in the DayFile for the given date.
func (s *Store) UpdateEntry(day time.Time, entry model.Entry) error {
	df, err := s.LoadDay(day)
	if err != nil {
		return err
	}
	for i, e := range df.Entries {
		if e.ID == entry.ID {
			df.Entries[i] = entry
			return s.SaveDay(day, df)
		}
	}
	df.Entries = append(df.Entries, entry)
	return s.SaveDay(day, df)
}

// DeleteEntry removes the entry with the given ID from the day's file.
// It reports whether an entry was removed.
func (s *Store) DeleteEntry(day time.Time, id string) (bool, error) {
	df, err := s.LoadDay(day)
	if err != nil {
		return false, err
	}
	for i, e := range df.Entries {
		if e.ID == id {
			df.Entries = append(df.Entries[:i], df.Entries[i+1:]...)
			return true, s.SaveDay(day, df)
		}
	}
	return false, nil
}

// LoadRange loads all entries in [from, to] inclusive. Day files with an
// unexpected shape are logged and skipped.
func (s *Store) LoadRange(from, to time.Time) ([]model.Entry, error) {
	entries := []model.Entry{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		df, err := s.LoadDay(d)
		if err != nil {
			if IsDataShape(err) {
				s.log.Warn("skipping malformed day file", zap.Error(err))
				continue
			}
			return nil, err
		}
		entries = append(entries, df.Entries...)
	}
	return entries, nil
}
