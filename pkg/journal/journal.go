// Package journal keeps an on-disk audit trail of submitted transactions.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TxRecord captures one state-changing command and its outcome.
type TxRecord struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Command   string            `json:"command"`
	Instance  string            `json:"instance"`
	Amm       string            `json:"amm,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Hash      string            `json:"hash,omitempty"`
	Mined     bool              `json:"mined"`
	Error     string            `json:"error,omitempty"`
}

// Writer persists records to a directory as JSON files, one per record.
type Writer struct {
	mu    sync.Mutex
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// Dir returns the directory records are written to.
func (w *Writer) Dir() string { return w.dir }

// Write stores rec in a timestamped file and returns its path. Missing
// timestamps and ids are filled in.
func (w *Writer) Write(rec *TxRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	w.seq++
	// The id keeps names unique across processes writing to the same dir.
	name := fmt.Sprintf("tx_%s_%05d_%s.json", rec.Timestamp.UTC().Format("20060102_150405"), w.seq, rec.ID)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("journal: create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("journal: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("journal: close %s: %w", path, err)
	}
	return path, nil
}

// ReadAll loads every record in dir ordered by timestamp.
func ReadAll(dir string) ([]TxRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "tx_*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]TxRecord, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("journal: read %s: %w", p, err)
		}
		var rec TxRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("journal: decode %s: %w", p, err)
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
