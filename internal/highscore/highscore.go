// internal/highscore/highscore.go
//
// High-score persistence collaborator for the game engine.
// Responsibilities:
//   - Define a tiny key-value contract (KV) the engine's storage sits on.
//   - Keeper: read/write the best score under the fixed key
//     "woodenBlocksHighScore", serialised as a decimal string.
//
// Notes:
//   - A missing value loads as 0. An unparsable value also loads as 0 but is
//     reported (ErrCorrupt) so the caller can log it.
//   - Keeper satisfies game.HighScores; each call is a short blocking
//     round-trip bounded by a timeout.

package highscore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Key is the storage key of the best score.
const Key = "woodenBlocksHighScore"

const defaultTimeout = 2 * time.Second

// ErrCorrupt means a stored value was not a non-negative decimal integer.
var ErrCorrupt = errors.New("highscore: corrupt stored value")

// KV is a string key-value store.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Keeper loads and saves the best score through a KV.
type Keeper struct {
	kv      KV
	timeout time.Duration
}

// NewKeeper binds a Keeper to kv.
func NewKeeper(kv KV) *Keeper {
	return &Keeper{kv: kv, timeout: defaultTimeout}
}

// Load returns the stored best score, or 0 when none is stored.
func (k *Keeper) Load() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	v, ok, err := k.kv.Get(ctx, Key)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", Key, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrCorrupt, v)
	}
	return n, nil
}

// Save stores score as the best score.
func (k *Keeper) Save(score int) error {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	if err := k.kv.Set(ctx, Key, strconv.Itoa(score)); err != nil {
		return fmt.Errorf("save %s: %w", Key, err)
	}
	return nil
}

// ------------------------------- memory KV ---------------------------------

// memoryKV is a map-backed KV, safe for concurrent use.
type memoryKV struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryKV returns an empty in-process KV.
func NewMemoryKV() KV {
	return &memoryKV{m: make(map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[key]
	return v, ok, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = value
	return nil
}
