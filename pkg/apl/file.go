package apl

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileAPL persists auth records in a single JSON file keyed by Saleor API
// URL. Meant for local development of a single-instance app; writes go
// through a temp file + rename so a crash never leaves a half-written store.
type FileAPL struct {
	path string
	mu   sync.Mutex
}

func NewFileAPL(path string) *FileAPL {
	return &FileAPL{path: path}
}

func (f *FileAPL) load() (map[string]AuthData, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]AuthData{}, nil
	}
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	if len(raw) == 0 {
		return map[string]AuthData{}, nil
	}
	records := map[string]AuthData{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &CorruptionError{Key: f.path, Err: err}
	}
	return records, nil
}

func (f *FileAPL) save(records map[string]AuthData) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (f *FileAPL) Get(ctx context.Context, saleorAPIURL string) (*AuthData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return nil, err
	}
	if d, ok := records[saleorAPIURL]; ok {
		return &d, nil
	}
	return nil, nil
}

func (f *FileAPL) Set(ctx context.Context, data AuthData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return err
	}
	records[data.SaleorAPIURL] = data
	return f.save(records)
}

func (f *FileAPL) Delete(ctx context.Context, saleorAPIURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := records[saleorAPIURL]; !ok {
		return nil
	}
	delete(records, saleorAPIURL)
	return f.save(records)
}

func (f *FileAPL) GetAll(ctx context.Context) ([]AuthData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]AuthData, 0, len(records))
	for _, d := range records {
		out = append(out, d)
	}
	return out, nil
}

func (f *FileAPL) IsReady(ctx context.Context) ReadyResult {
	if f.path == "" {
		return ReadyResult{Ready: false, Missing: []string{"fileName"}}
	}
	// The directory must exist; the file itself is created on first write.
	if _, err := os.Stat(filepath.Dir(f.path)); err != nil {
		return ReadyResult{Ready: false, Missing: []string{"fileName"}}
	}
	return ReadyResult{Ready: true}
}

func (f *FileAPL) IsConfigured(ctx context.Context) ConfiguredResult {
	if r := f.IsReady(ctx); !r.Ready {
		return ConfiguredResult{Configured: false, Err: &NotConfiguredError{Missing: r.Missing}}
	}
	return ConfiguredResult{Configured: true}
}
