package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// JSONStore keeps the ledger in a single historico.json document.
type JSONStore struct {
	path string
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Load(_ context.Context) (*Ledger, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return nil, oops.Errorf("failed to read ledger file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Empty(), nil
	}

	var l Ledger
	if err = json.Unmarshal(data, &l); err != nil {
		slog.Error("Corrupt ledger file, starting empty", "path", s.path, "error", err)
		return Empty(), nil
	}

	return l.normalize(), nil
}

func (s *JSONStore) Save(_ context.Context, l *Ledger) error {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return oops.Errorf("failed to encode ledger: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return oops.Errorf("failed to create ledger directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return oops.Errorf("failed to write ledger file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return oops.Errorf("failed to replace ledger file: %w", err)
	}

	return nil
}

func (s *JSONStore) Close() error {
	return nil
}
