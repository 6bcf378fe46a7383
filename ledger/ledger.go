package ledger

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cnosuke/rigil-proxy/types"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrKeyNotFound = errors.New("api key not found")
	ErrKeyExists   = errors.New("api key already exists")
)

// GeneratedKeyPrefix starts every key the ledger generates itself.
const GeneratedKeyPrefix = "api_key_"

// Persister stores key records. Implementations need not be safe for
// concurrent use; the Ledger serializes every call.
type Persister interface {
	Load() ([]types.KeyData, error)
	Upsert(types.KeyData) error
	Delete(key string) error
	Close() error
}

// Ledger tracks per-key usage in memory and writes every change through
// to its Persister before the lock is released.
type Ledger struct {
	mu    sync.RWMutex
	keys  map[string]*types.KeyData
	store Persister
	now   func() time.Time
}

// New loads all records from store.
func New(store Persister) (*Ledger, error) {
	records, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load api keys")
	}

	l := &Ledger{
		keys:  make(map[string]*types.KeyData, len(records)),
		store: store,
		now:   time.Now,
	}
	for i := range records {
		rec := records[i]
		l.keys[rec.Key] = &rec
	}

	zap.S().Infow("ledger loaded", "keys", len(l.keys))
	return l, nil
}

// ValidateKey reports whether key is registered.
func (l *Ledger) ValidateKey(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok
}

// RecordUsage adds one processed document to the counters of key. The
// counters are kept in memory even when persisting them fails.
func (l *Ledger) RecordUsage(key string, originalBytes, processedBytes int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, ok := l.keys[key]
	if !ok {
		return errors.Wrapf(ErrKeyNotFound, "record usage for %q", key)
	}

	now := l.now().UTC()
	data.TotalBytesProcessed += originalBytes
	data.TotalOriginalBytes += originalBytes
	data.TotalProcessedBytes += processedBytes
	data.CompressionCount++
	data.LastUsed = &now

	if err := l.store.Upsert(*data); err != nil {
		return errors.Wrap(err, "failed to persist usage")
	}
	return nil
}

// CreateKey registers key, generating one when key is empty.
func (l *Ledger) CreateKey(key string) (types.KeyData, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = GeneratedKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.keys[key]; ok {
		return types.KeyData{}, errors.Wrapf(ErrKeyExists, "create %q", key)
	}

	data := types.KeyData{Key: key, CreatedAt: l.now().UTC()}
	if err := l.store.Upsert(data); err != nil {
		return types.KeyData{}, errors.Wrap(err, "failed to persist new key")
	}
	l.keys[key] = &data

	zap.S().Infow("api key created", "key", redact(key))
	return data, nil
}

// DeleteKey removes key and its counters.
func (l *Ledger) DeleteKey(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.keys[key]; !ok {
		return errors.Wrapf(ErrKeyNotFound, "delete %q", key)
	}
	if err := l.store.Delete(key); err != nil {
		return errors.Wrap(err, "failed to delete key from store")
	}
	delete(l.keys, key)

	zap.S().Infow("api key deleted", "key", redact(key))
	return nil
}

// Usage returns a copy of the counters of key.
func (l *Ledger) Usage(key string) (types.KeyData, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	data, ok := l.keys[key]
	if !ok {
		return types.KeyData{}, false
	}
	return *data, true
}

// List returns all keys ordered by creation time.
func (l *Ledger) List() []types.KeyData {
	l.mu.RLock()
	out := make([]types.KeyData, 0, len(l.keys))
	for _, data := range l.keys {
		out = append(out, *data)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stats sums the counters of every key.
func (l *Ledger) Stats() types.LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := types.LedgerStats{KeyCount: len(l.keys)}
	for _, data := range l.keys {
		stats.TotalBytesProcessed += data.TotalBytesProcessed
		stats.TotalOriginalBytes += data.TotalOriginalBytes
		stats.TotalProcessedBytes += data.TotalProcessedBytes
		stats.CompressionCount += data.CompressionCount
	}
	return stats
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Close()
}

// redact keeps keys out of logs.
func redact(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "****"
}
