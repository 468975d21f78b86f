package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"bp-tracker/internal/common"
	"bp-tracker/internal/logging"
	"bp-tracker/internal/model"
	"bp-tracker/internal/query"
)

// Memory keeps records in a map. With a state file it reloads on start and
// rewrites a snapshot after every mutation.
type Memory struct {
	mu      sync.RWMutex
	records map[int64]model.Record
	seq     *seqGenerator

	stateFile string
	persistMu sync.Mutex

	now func() time.Time
	log logging.Logger
}

func NewMemory(opts Options) *Memory {
	opts = opts.withDefaults()
	m := &Memory{
		records:   make(map[int64]model.Record),
		seq:       newSeqGenerator(),
		stateFile: opts.StateFile,
		now:       opts.Now,
		log:       opts.Logger.With("store", DriverMemory),
	}

	if m.stateFile != "" {
		if err := m.loadFromFile(m.stateFile); err != nil {
			m.log.Error(context.Background(), "records persistence: load failed", "file", m.stateFile, "err", err)
		}
	}
	return m
}

type persistedRecordsFile struct {
	Version int            `json:"version"`
	LastID  int64          `json:"lastId"`
	Records []model.Record `json:"records"`
	SavedAt string         `json:"savedAt"`
}

func (m *Memory) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedRecordsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported records state version")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq.observe(file.LastID)
	for _, r := range file.Records {
		if r.ID <= 0 || r.Date == "" {
			continue
		}
		m.records[r.ID] = r
		m.seq.observe(r.ID)
	}
	return nil
}

func (m *Memory) snapshotLocked() persistedRecordsFile {
	result := make([]model.Record, 0, len(m.records))
	for _, r := range m.records {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	m.seq.mu.Lock()
	last := m.seq.last
	m.seq.mu.Unlock()
	return persistedRecordsFile{Version: 1, LastID: last, Records: result}
}

func (m *Memory) persistSnapshot(ctx context.Context, file persistedRecordsFile) {
	path := m.stateFile
	if path == "" {
		return
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		m.log.Error(ctx, "records persistence: mkdir failed", "dir", dir, "err", err)
		return
	}

	file.SavedAt = model.FormatDate(m.now())
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		m.log.Error(ctx, "records persistence: marshal failed", "err", err)
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		m.log.Error(ctx, "records persistence: create temp failed", "err", err)
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		m.log.Error(ctx, "records persistence: chmod temp failed", "err", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		m.log.Error(ctx, "records persistence: write temp failed", "err", err)
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		m.log.Error(ctx, "records persistence: sync temp failed", "err", err)
		return
	}
	if err := tmp.Close(); err != nil {
		m.log.Error(ctx, "records persistence: close temp failed", "err", err)
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		m.log.Error(ctx, "records persistence: rename failed", "err", err)
	}
}

func matches(r model.Record, f query.Filter) bool {
	if f.Start != "" && r.Date < f.Start {
		return false
	}
	if f.End != "" && r.Date > f.End {
		return false
	}
	if f.Name != "" && r.Name != f.Name {
		return false
	}
	return true
}

func (m *Memory) List(ctx context.Context, q query.List) ([]model.Record, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	m.mu.RLock()
	matched := make([]model.Record, 0, len(m.records))
	for _, r := range m.records {
		if matches(r, q.Filter) {
			matched = append(matched, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Date != matched[j].Date {
			return matched[i].Date > matched[j].Date
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := q.Page.Offset()
	if start >= len(matched) {
		return []model.Record{}, total, nil
	}
	end := start + q.Page.Size
	if end > len(matched) {
		end = len(matched)
	}
	page := make([]model.Record, end-start)
	copy(page, matched[start:end])
	return page, total, nil
}

func (m *Memory) Create(ctx context.Context, in model.RecordInput) (model.Record, error) {
	if err := in.Validate(); err != nil {
		return model.Record{}, err
	}
	r := model.Record{
		Systolic:  *in.Systolic,
		Diastolic: *in.Diastolic,
		Name:      *in.Name,
	}
	if in.Pulse != nil {
		p := *in.Pulse
		r.Pulse = &p
	}

	m.mu.Lock()
	r.ID = m.seq.next()
	r.Date = model.FormatDate(m.now())
	m.records[r.ID] = r
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.persistSnapshot(ctx, snapshot)
	return r, nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	if _, ok := m.records[id]; !ok {
		m.mu.Unlock()
		return common.ErrNotFound
	}
	delete(m.records, id)
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.persistSnapshot(ctx, snapshot)
	return nil
}

func (m *Memory) Names(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	seen := make(map[string]struct{})
	for _, r := range m.records {
		if r.Name != "" {
			seen[r.Name] = struct{}{}
		}
	}
	m.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Close() error { return nil }
