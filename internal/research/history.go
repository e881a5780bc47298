package research

import (
	"context"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"codewiki/internal/corerr"
)

// HistoryRecord is one persisted research session (spec §4.7 "Persistence
// of history").
type HistoryRecord struct {
	SessionID string    `yaml:"session_id"`
	Topic     string    `yaml:"topic"`
	Context   Context   `yaml:"context"`
	Status    Status    `yaml:"status"`
	StartedAt time.Time `yaml:"started_at"`
	Summary   string    `yaml:"summary,omitempty"`
	UserID    string    `yaml:"user_id,omitempty"`
}

// HistoryStore stores research sessions (spec §4.7 "Research History
// Storage interface"); FileHistory keeps them across process restarts,
// MemoryHistory only for the life of the process. Access control is
// enforced by the caller, not the store.
type HistoryStore interface {
	Save(ctx context.Context, record HistoryRecord) error
	Load(ctx context.Context, sessionID string) (HistoryRecord, error)
	List(ctx context.Context, ownerID string) ([]HistoryRecord, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemoryHistory is the in-process HistoryStore adapter.
type MemoryHistory struct {
	mu      sync.RWMutex
	records map[string]HistoryRecord
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{records: make(map[string]HistoryRecord)}
}

func (h *MemoryHistory) Save(_ context.Context, r HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[r.SessionID] = r
	return nil
}

func (h *MemoryHistory) Load(_ context.Context, sessionID string) (HistoryRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.records[sessionID]
	if !ok {
		return HistoryRecord{}, corerr.NotFound("research session %s not found", sessionID)
	}
	return r, nil
}

func (h *MemoryHistory) List(_ context.Context, ownerID string) ([]HistoryRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryRecord, 0, len(h.records))
	for _, r := range h.records {
		if ownerID != "" && r.UserID != ownerID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (h *MemoryHistory) Delete(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.records[sessionID]; !ok {
		return corerr.NotFound("research session %s not found", sessionID)
	}
	delete(h.records, sessionID)
	return nil
}

var _ HistoryStore = (*MemoryHistory)(nil)

// FileHistory is a YAML-file-backed HistoryStore adapter (spec §4.7
// "file-based or DB-backed"), one document containing the full record set,
// rewritten atomically on every Save/Delete.
type FileHistory struct {
	mu   sync.Mutex
	path string
}

func NewFileHistory(path string) *FileHistory {
	return &FileHistory{path: path}
}

type fileHistoryDoc struct {
	Records map[string]HistoryRecord `yaml:"records"`
}

func (f *FileHistory) read() (fileHistoryDoc, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return fileHistoryDoc{Records: make(map[string]HistoryRecord)}, nil
	}
	if err != nil {
		return fileHistoryDoc{}, corerr.Wrap(corerr.KindStorage, "read research history file", err)
	}
	var doc fileHistoryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fileHistoryDoc{}, corerr.Wrap(corerr.KindStorage, "parse research history file", err)
	}
	if doc.Records == nil {
		doc.Records = make(map[string]HistoryRecord)
	}
	return doc, nil
}

func (f *FileHistory) write(doc fileHistoryDoc) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return corerr.Wrap(corerr.KindInternal, "marshal research history", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return corerr.Wrap(corerr.KindStorage, "write research history file", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return corerr.Wrap(corerr.KindStorage, "replace research history file", err)
	}
	return nil
}

func (f *FileHistory) Save(_ context.Context, r HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.Records[r.SessionID] = r
	return f.write(doc)
}

func (f *FileHistory) Load(_ context.Context, sessionID string) (HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return HistoryRecord{}, err
	}
	r, ok := doc.Records[sessionID]
	if !ok {
		return HistoryRecord{}, corerr.NotFound("research session %s not found", sessionID)
	}
	return r, nil
}

func (f *FileHistory) List(_ context.Context, ownerID string) ([]HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make([]HistoryRecord, 0, len(doc.Records))
	for _, r := range doc.Records {
		if ownerID != "" && r.UserID != ownerID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *FileHistory) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := doc.Records[sessionID]; !ok {
		return corerr.NotFound("research session %s not found", sessionID)
	}
	delete(doc.Records, sessionID)
	return f.write(doc)
}

var _ HistoryStore = (*FileHistory)(nil)
