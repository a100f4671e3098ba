package social

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// ============================================================================
// Key-value persistence
// ============================================================================

// KV is the local persistence abstraction for user preferences.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryKV is a goroutine-safe in-memory KV.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileKV is a KV persisted as a flat TOML table. Every write rewrites the file.
type FileKV struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenFileKV loads path, treating a missing file as empty.
func OpenFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kv, nil
		}
		return nil, fmt.Errorf("cannot read preferences: %w", err)
	}
	if err := toml.Unmarshal(data, &kv.values); err != nil {
		return nil, fmt.Errorf("cannot parse preferences: %w", err)
	}
	return kv, nil
}

func (f *FileKV) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	f.values[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	if !had {
		return nil
	}
	delete(f.values, key)
	if err := f.flush(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

// Keys returns every stored key, sorted.
func (f *FileKV) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *FileKV) flush() error {
	data, err := toml.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("cannot marshal preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("cannot create preferences directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write preferences: %w", err)
	}
	return nil
}

// ============================================================================
// Preferences
// ============================================================================

const (
	PrefNotificationSound = "notifications.sound"
	PrefAuthDeclined      = "auth.declined"
	PrefCustomRooms       = "rooms.custom"
	PrefLastTab           = "hub.last_tab"
)

// Preferences is a typed view over a KV.
type Preferences struct {
	kv KV
}

// NewPreferences wraps kv; nil means an in-memory store.
func NewPreferences(kv KV) *Preferences {
	if kv == nil {
		kv = NewMemoryKV()
	}
	return &Preferences{kv: kv}
}

// SoundEnabled defaults to true.
func (p *Preferences) SoundEnabled() bool {
	return p.boolOr(PrefNotificationSound, true)
}

func (p *Preferences) SetSoundEnabled(on bool) error {
	return p.kv.Set(PrefNotificationSound, strconv.FormatBool(on))
}

// AuthDeclined reports whether the player dismissed the account link prompt.
func (p *Preferences) AuthDeclined() bool {
	return p.boolOr(PrefAuthDeclined, false)
}

func (p *Preferences) SetAuthDeclined(declined bool) error {
	return p.kv.Set(PrefAuthDeclined, strconv.FormatBool(declined))
}

// CustomRooms returns the player's saved room ids.
func (p *Preferences) CustomRooms() []string {
	raw, ok := p.kv.Get(PrefCustomRooms)
	if !ok || raw == "" {
		return nil
	}
	var rooms []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			rooms = append(rooms, r)
		}
	}
	return rooms
}

func (p *Preferences) SetCustomRooms(rooms []string) error {
	return p.kv.Set(PrefCustomRooms, strings.Join(rooms, ","))
}

// AddCustomRoom appends a room id unless already saved.
func (p *Preferences) AddCustomRoom(id string) error {
	id = strings.TrimSpace(id)
	rooms := p.CustomRooms()
	for _, r := range rooms {
		if r == id {
			return nil
		}
	}
	return p.SetCustomRooms(append(rooms, id))
}

// LastTab returns the last viewed tab, TabFriends by default.
func (p *Preferences) LastTab() Tab {
	if v, ok := p.kv.Get(PrefLastTab); ok && Tab(v).Valid() {
		return Tab(v)
	}
	return TabFriends
}

func (p *Preferences) SetLastTab(t Tab) error {
	return p.kv.Set(PrefLastTab, string(t))
}

func (p *Preferences) boolOr(key string, def bool) bool {
	v, ok := p.kv.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
