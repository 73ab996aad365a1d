package exporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Fragment file name prefixes.
const (
	identityPrefix = "network_identity_"
	animatorPrefix = "network_animator_"
	sceneIDPrefix  = "scene_id_"
	managerFile    = "network_manager.json"
	fragmentExt    = ".json"
)

func identityFile(id uint64) string {
	return identityPrefix + strconv.FormatUint(id, 10) + fragmentExt
}

func animatorFile(assetID uint32) string {
	return animatorPrefix + strconv.FormatUint(uint64(assetID), 10) + fragmentExt
}

func sceneIDFile(id string) string {
	return sceneIDPrefix + id + fragmentExt
}

// FragmentStore reads and writes the per-object fragment files of a work
// directory. Reads go through an LRU cache that writes keep current.
type FragmentStore struct {
	dir   string
	cache *lru.Cache[string, []byte]
}

func NewFragmentStore(dir string, size int) (*FragmentStore, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("fragment cache: %w", err)
	}
	return &FragmentStore{dir: dir, cache: cache}, nil
}

// Dir is the work directory the store writes to.
func (s *FragmentStore) Dir() string {
	return s.dir
}

// WriteRaw replaces the fragment name with data.
func (s *FragmentStore) WriteRaw(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		s.cache.Remove(name)
		return fmt.Errorf("write fragment %s: %w", name, err)
	}
	s.cache.Add(name, append([]byte(nil), data...))
	return nil
}

// Write stores v as indented JSON.
func (s *FragmentStore) Write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fragment %s: %w", name, err)
	}
	return s.WriteRaw(name, data)
}

// ReadRaw returns the fragment's bytes. ok is false when it does not exist.
func (s *FragmentStore) ReadRaw(name string) (data []byte, ok bool, err error) {
	if data, ok := s.cache.Get(name); ok {
		return data, true, nil
	}
	data, err = os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read fragment %s: %w", name, err)
	}
	s.cache.Add(name, data)
	return data, true, nil
}

// Read decodes the JSON fragment name into v.
func (s *FragmentStore) Read(name string, v any) (bool, error) {
	data, ok, err := s.ReadRaw(name)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode fragment %s: %w", name, err)
	}
	return true, nil
}

// Glob lists fragment names matching pattern, sorted.
func (s *FragmentStore) Glob(pattern string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); ok {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Purge drops every cached fragment.
func (s *FragmentStore) Purge() {
	s.cache.Purge()
}
