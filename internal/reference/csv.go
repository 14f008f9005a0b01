package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrMissingColumn is returned when the CSV header lacks job_title or skill.
var ErrMissingColumn = errors.New("reference csv missing required column")

// Parse reads a CSV with a header row containing job_title and skill columns.
// Other columns are ignored.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewTable(nil), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	titleCol, skillCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "job_title":
			titleCol = i
		case "skill":
			skillCol = i
		}
	}
	if titleCol < 0 || skillCol < 0 {
		return nil, fmt.Errorf("%w: header %v", ErrMissingColumn, header)
	}

	var pairs []Pair
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if titleCol >= len(record) || skillCol >= len(record) {
			continue
		}
		pairs = append(pairs, Pair{Title: record[titleCol], Skill: record[skillCol]})
	}
	return NewTable(pairs), nil
}

// CSVSource loads a Table from a file path and reuses the parsed table until
// the file's size or modification time changes.
type CSVSource struct {
	path string

	mu      sync.Mutex
	cached  *Table
	modTime time.Time
	size    int64
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Path() string { return s.path }

// Load returns the current table, re-parsing the file only when it changed.
func (s *CSVSource) Load(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat reference csv: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.cached, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open reference csv: %w", err)
	}
	defer f.Close()

	table, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.cached = table
	s.modTime = info.ModTime()
	s.size = info.Size()
	return table, nil
}

// StaticSource serves a fixed table.
type StaticSource struct {
	Table *Table
}

func (s StaticSource) Load(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Table, nil
}
