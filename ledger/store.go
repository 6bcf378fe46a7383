package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/cnosuke/rigil-proxy/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Drivers accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open builds the persister for driver and loads a Ledger from it.
func Open(driver, path string) (*Ledger, error) {
	var (
		store Persister
		err   error
	)
	switch driver {
	case DriverJSON, "":
		store, err = NewJSONFile(path)
	case DriverSQLite:
		store, err = NewSQLite(path)
	case DriverMemory:
		store = NewMemory()
	default:
		return nil, errors.Newf("unknown ledger driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	zap.S().Infow("ledger opened", "driver", driver, "path", path)
	l, err := New(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return l, nil
}

// jsonDocument is the on-disk layout of JSONFile.
type jsonDocument struct {
	Keys map[string]types.KeyData `json:"keys"`
}

// JSONFile keeps every key in one JSON document that is rewritten whole
// on each change.
type JSONFile struct {
	path string
	keys map[string]types.KeyData
}

// NewJSONFile opens path, which need not exist yet.
func NewJSONFile(path string) (*JSONFile, error) {
	if path == "" {
		return nil, errors.New("json ledger requires a path")
	}
	return &JSONFile{path: path, keys: map[string]types.KeyData{}}, nil
}

func (s *JSONFile) Load() ([]types.KeyData, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.path)
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.path)
	}

	out := make([]types.KeyData, 0, len(doc.Keys))
	for key, rec := range doc.Keys {
		if rec.Key == "" {
			rec.Key = key
		}
		s.keys[rec.Key] = rec
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *JSONFile) Upsert(rec types.KeyData) error {
	prev, existed := s.keys[rec.Key]
	s.keys[rec.Key] = rec
	if err := s.flush(); err != nil {
		if existed {
			s.keys[rec.Key] = prev
		} else {
			delete(s.keys, rec.Key)
		}
		return err
	}
	return nil
}

func (s *JSONFile) Delete(key string) error {
	prev, existed := s.keys[key]
	if !existed {
		return nil
	}
	delete(s.keys, key)
	if err := s.flush(); err != nil {
		s.keys[key] = prev
		return err
	}
	return nil
}

func (s *JSONFile) Close() error { return nil }

// flush writes to a temporary file in the same directory and renames it
// over the target.
func (s *JSONFile) flush() error {
	data, err := json.MarshalIndent(jsonDocument{Keys: s.keys}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode api keys")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "replace %s", s.path)
	}
	return nil
}

// Memory is a Persister that keeps nothing; the Ledger's own map is the
// only copy.
type Memory struct{}

func NewMemory() *Memory { return &Memory{} }

func (Memory) Load() ([]types.KeyData, error) { return nil, nil }
func (Memory) Upsert(types.KeyData) error     { return nil }
func (Memory) Delete(string) error            { return nil }
func (Memory) Close() error                   { return nil }
