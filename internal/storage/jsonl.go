package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"u3relay/internal/model"
)

// ErrNotFound is returned when no authorization has the requested id.
var ErrNotFound = errors.New("authorization not found")

const maxLineSize = 1 << 20

// JsonlStorage writes authorizations to a JSONL file and relay results to a sibling
// "<name>.relays.jsonl" file.
type JsonlStorage struct {
	path        string
	resultsPath string
	mu          sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path, resultsPath: resultsPathFor(path)}
}

// Path returns the authorization file path.
func (s *JsonlStorage) Path() string {
	return s.path
}

// ResultsPath returns the relay result file path.
func (s *JsonlStorage) ResultsPath() string {
	return s.resultsPath
}

// PutAuthorizations appends a batch of authorization records as JSON lines.
func (s *JsonlStorage) PutAuthorizations(records []model.AuthorizationRecord) error {
	if len(records) == 0 {
		return nil
	}
	items := make([]interface{}, 0, len(records))
	for _, record := range records {
		items = append(items, record)
	}
	return s.appendLines(s.path, items)
}

// PutRelayResult appends one relay result.
func (s *JsonlStorage) PutRelayResult(result model.RelayResult) error {
	return s.appendLines(s.resultsPath, []interface{}{result})
}

// UpsertAuthorizations appends records; readers resolve duplicates by keeping the last line.
func (s *JsonlStorage) UpsertAuthorizations(_ context.Context, records []model.AuthorizationRecord) error {
	return s.PutAuthorizations(records)
}

// SaveRelayResult appends result.
func (s *JsonlStorage) SaveRelayResult(_ context.Context, result model.RelayResult) error {
	return s.PutRelayResult(result)
}

// ReadAuthorizations loads every authorization record in the file. A missing file yields none.
func (s *JsonlStorage) ReadAuthorizations() ([]model.AuthorizationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ReadAuthorizations(s.path)
}

// FindAuthorization returns the last record written with id.
func (s *JsonlStorage) FindAuthorization(id string) (model.AuthorizationRecord, error) {
	records, err := s.ReadAuthorizations()
	if err != nil {
		return model.AuthorizationRecord{}, err
	}
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].ID == id {
			return records[i], nil
		}
	}
	return model.AuthorizationRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ReadAuthorizations reads authorization records from a JSONL file. Blank lines are skipped.
func ReadAuthorizations(path string) ([]model.AuthorizationRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open authorization file: %w", err)
	}
	defer file.Close()

	var records []model.AuthorizationRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var record model.AuthorizationRecord
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read authorization file: %w", err)
	}
	return records, nil
}

func (s *JsonlStorage) appendLines(path string, items []interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

func resultsPathFor(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".relays" + ext
}
