package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/punchamoorthee/paysync/internal/store"
)

const (
	replayKeyPrefix = "idempotency:"
	replayIndexKey  = "idempotency-index"

	DefaultReplayTTL  = 24 * time.Hour
	DefaultMaxReplays = 1000
)

var (
	ErrIdempotencyConflict = errors.New("request with this idempotency key is in progress")
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different payload")
)

// Replay is the stored outcome of a submitted payment.
type Replay struct {
	RequestHash    string          `json:"request_hash"`
	ResponseStatus int             `json:"response_status"`
	ResponseBody   json.RawMessage `json:"response_body"`
	StoredAt       time.Time       `json:"stored_at"`
}

type indexEntry struct {
	Key string    `json:"key"`
	At  time.Time `json:"at"`
}

// Replays remembers successful submissions by Idempotency-Key so a client
// retrying a send gets the first answer instead of a second payment.
// Records expire after TTL and at most Max are kept; an index key lists
// what is stored so old records can be deleted.
type Replays struct {
	kv  store.Store
	TTL time.Duration
	Max int
	now func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewReplays(kv store.Store) *Replays {
	return &Replays{
		kv:       kv,
		TTL:      DefaultReplayTTL,
		Max:      DefaultMaxReplays,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (r *Replays) expired(at time.Time) bool {
	return r.TTL > 0 && r.now().Sub(at) > r.TTL
}

// Begin returns a stored replay for key, or reserves key for the caller.
// A reserved key must be released with Finish or Abandon. Expired records
// count as absent.
func (r *Replays) Begin(ctx context.Context, key, requestHash string) (*Replay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.inFlight[key]; busy {
		return nil, ErrIdempotencyConflict
	}

	raw, ok, err := r.kv.Get(ctx, replayKeyPrefix+key)
	if err != nil {
		return nil, fmt.Errorf("load idempotency record: %w", err)
	}
	if ok {
		var rep Replay
		if err := json.Unmarshal([]byte(raw), &rep); err != nil {
			return nil, fmt.Errorf("decode idempotency record: %w", err)
		}
		if !r.expired(rep.StoredAt) {
			if rep.RequestHash != requestHash {
				return nil, ErrIdempotencyMismatch
			}
			return &rep, nil
		}
	}

	r.inFlight[key] = struct{}{}
	return nil, nil
}

// Finish stores the response for key, prunes expired and surplus records,
// and releases key.
func (r *Replays) Finish(ctx context.Context, key string, rep Replay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer delete(r.inFlight, key)

	rep.StoredAt = r.now()
	data, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, replayKeyPrefix+key, string(data)); err != nil {
		return fmt.Errorf("save idempotency record: %w", err)
	}
	return r.prune(ctx, key, rep.StoredAt)
}

// prune adds key to the index and deletes records past TTL or beyond Max,
// oldest first. Caller holds mu.
func (r *Replays) prune(ctx context.Context, key string, at time.Time) error {
	var index []indexEntry
	raw, ok, err := r.kv.Get(ctx, replayIndexKey)
	if err != nil {
		return fmt.Errorf("load idempotency index: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &index); err != nil {
			return fmt.Errorf("decode idempotency index: %w", err)
		}
	}

	kept := make([]indexEntry, 0, len(index)+1)
	for _, e := range index {
		if e.Key != key {
			kept = append(kept, e)
		}
	}
	kept = append(kept, indexEntry{Key: key, At: at})
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].At.Before(kept[j].At) })

	drop := 0
	for drop < len(kept) && r.expired(kept[drop].At) {
		drop++
	}
	if r.Max > 0 && len(kept)-drop > r.Max {
		drop = len(kept) - r.Max
	}
	for _, e := range kept[:drop] {
		if err := r.kv.Delete(ctx, replayKeyPrefix+e.Key); err != nil {
			return fmt.Errorf("delete idempotency record: %w", err)
		}
	}
	kept = kept[drop:]

	data, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, replayIndexKey, string(data)); err != nil {
		return fmt.Errorf("save idempotency index: %w", err)
	}
	return nil
}

// Abandon releases key without storing anything, so a failed send can be
// retried with the same key.
func (r *Replays) Abandon(key string) {
	r.mu.Lock()
	delete(r.inFlight, key)
	r.mu.Unlock()
}
