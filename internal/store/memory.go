package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spec-kit/bank-crm/internal/config"
)

var errSessionClosed = errors.New("session closed")

type memEntry struct {
	body     map[string]any
	revision int64
}

type memoryData struct {
	mu      sync.RWMutex
	entries map[Collection]map[string]*memEntry
	order   map[Collection][]string
}

// MemoryConnector is a process-local document store. Every session it hands out
// shares the same data, so reconnects do not lose documents.
type MemoryConnector struct {
	ns   Namespace
	data *memoryData
}

// NewMemoryConnector returns an empty in-memory store.
func NewMemoryConnector(ns Namespace) *MemoryConnector {
	return &MemoryConnector{
		ns: ns,
		data: &memoryData{
			entries: map[Collection]map[string]*memEntry{Customers: {}, Tickets: {}},
			order:   map[Collection][]string{},
		},
	}
}

func (m *MemoryConnector) Name() string         { return config.DriverMemory }
func (m *MemoryConnector) Namespace() Namespace { return m.ns }

func (m *MemoryConnector) Connect(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("connect", KindTimeout, err)
	}
	return &memorySession{data: m.data}, nil
}

// Seed stores body under key, overwriting any previous document.
func (m *MemoryConnector) Seed(c Collection, key string, body map[string]any) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	if _, exists := m.data.entries[c][key]; !exists {
		m.data.order[c] = append(m.data.order[c], key)
	}
	m.data.entries[c][key] = &memEntry{body: deepCopy(body).(map[string]any), revision: 1}
}

type seedFile struct {
	Customers []map[string]any `json:"customers"`
	Tickets   []map[string]any `json:"tickets"`
}

// LoadSeedFile seeds customers and tickets from a JSON file shaped as
// {"customers": [...], "tickets": [...]}. Documents are keyed by customer_id and ticket_id.
func (m *MemoryConnector) LoadSeedFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}
	count := 0
	for _, doc := range seed.Customers {
		key, _ := doc["customer_id"].(string)
		if key == "" {
			return count, errors.New("seed customer without customer_id")
		}
		m.Seed(Customers, key, doc)
		count++
	}
	for _, doc := range seed.Tickets {
		key, _ := doc["ticket_id"].(string)
		if key == "" {
			return count, errors.New("seed ticket without ticket_id")
		}
		m.Seed(Tickets, key, doc)
		count++
	}
	return count, nil
}

type memorySession struct {
	data   *memoryData
	closed atomic.Bool
}

func (s *memorySession) check(op string) error {
	if s.closed.Load() {
		return NewError(op, KindConnection, errSessionClosed)
	}
	return nil
}

func (s *memorySession) Ping(ctx context.Context) error {
	if err := s.check("ping"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return NewError("ping", KindTimeout, err)
	}
	return nil
}

func (s *memorySession) Get(_ context.Context, c Collection, key string) (*Document, error) {
	if err := s.check("get"); err != nil {
		return nil, err
	}
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()
	entry, ok := s.data.entries[c][key]
	if !ok {
		return nil, NewError("get", KindNotFound, fmt.Errorf("%s/%s", c, key))
	}
	return entry.document(key), nil
}

func (s *memorySession) Find(_ context.Context, q Query) ([]Document, error) {
	if err := s.check("find"); err != nil {
		return nil, err
	}
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	var docs []Document
	for _, key := range s.data.order[q.Collection] {
		entry := s.data.entries[q.Collection][key]
		if entry == nil || !matches(entry.body, q.Filters) {
			continue
		}
		docs = append(docs, *entry.document(key))
	}

	if q.SortField != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			a := fmt.Sprint(lookupPath(docs[i].Body, q.SortField))
			b := fmt.Sprint(lookupPath(docs[j].Body, q.SortField))
			if q.SortDesc {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

func (s *memorySession) Count(_ context.Context, c Collection) (int64, error) {
	if err := s.check("count"); err != nil {
		return 0, err
	}
	s.data.mu.RLock()
	defer s.data.mu.RUnlock()
	return int64(len(s.data.entries[c])), nil
}

func (s *memorySession) Insert(_ context.Context, c Collection, key string, body map[string]any) (*Document, error) {
	if err := s.check("insert"); err != nil {
		return nil, err
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	if _, exists := s.data.entries[c][key]; exists {
		return nil, NewError("insert", KindConflict, fmt.Errorf("%s/%s already exists", c, key))
	}
	entry := &memEntry{body: deepCopy(body).(map[string]any), revision: 1}
	s.data.entries[c][key] = entry
	s.data.order[c] = append(s.data.order[c], key)
	return entry.document(key), nil
}

func (s *memorySession) Replace(_ context.Context, c Collection, key string, body map[string]any, revision int64) (*Document, error) {
	if err := s.check("replace"); err != nil {
		return nil, err
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	entry, ok := s.data.entries[c][key]
	if !ok {
		return nil, NewError("replace", KindNotFound, fmt.Errorf("%s/%s", c, key))
	}
	if entry.revision != revision {
		return nil, NewError("replace", KindConflict, fmt.Errorf("revision %d is stale, current %d", revision, entry.revision))
	}
	entry.body = deepCopy(body).(map[string]any)
	entry.revision++
	return entry.document(key), nil
}

func (s *memorySession) Close(context.Context) error {
	s.closed.Store(true)
	return nil
}

func (e *memEntry) document(key string) *Document {
	return &Document{Key: key, Body: deepCopy(e.body).(map[string]any), Revision: e.revision}
}

func matches(body map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v := lookupPath(body, f.Field)
		if v == nil || fmt.Sprint(v) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

func lookupPath(body map[string]any, path string) any {
	var cur any = body
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return val
	}
}
