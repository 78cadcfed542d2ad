// Package cache holds payments the user has just submitted so the dashboard
// can show them before the upstream API confirms them.
//
// Temporary entries are never reconciled with their confirmed counterpart.
// A sent payment may therefore be listed twice, once as a temporary entry and
// once from server history, until the temporary entry ages out.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/punchamoorthee/paysync/internal/domain"
	"github.com/punchamoorthee/paysync/internal/store"
)

const (
	DefaultKey        = "starling_temp_payments"
	DefaultMaxEntries = 10
	DefaultHorizon    = time.Hour

	TempPrefix = "temp_"
)

// IsTemporaryID reports whether id was assigned by the cache.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

type Options struct {
	Key        string
	MaxEntries int
	Horizon    time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// LocalCache keeps at most MaxEntries temporary payments, newest first,
// under a single key of the backing store.
type LocalCache struct {
	kv         store.KV
	key        string
	maxEntries int
	horizon    time.Duration
	now        func() time.Time
	logger     *slog.Logger

	// The whole list is read, changed and written back on every call.
	mu sync.Mutex
}

func New(kv store.KV, opts Options) *LocalCache {
	c := &LocalCache{
		kv:         kv,
		key:        opts.Key,
		maxEntries: opts.MaxEntries,
		horizon:    opts.Horizon,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if c.key == "" {
		c.key = DefaultKey
	}
	if c.maxEntries <= 0 {
		c.maxEntries = DefaultMaxEntries
	}
	if c.horizon <= 0 {
		c.horizon = DefaultHorizon
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// AddTemporary records draft as a pending payment with a temp_ id and
// returns it. The oldest entries are dropped beyond MaxEntries.
func (c *LocalCache) AddTemporary(ctx context.Context, draft domain.PaymentDraft) (domain.Payment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return domain.Payment{}, err
	}

	now := c.now().UTC()
	typ := draft.Type
	if typ == "" {
		typ = domain.TypeSent
	}
	p := domain.Payment{
		ID:          c.nextID(now, entries),
		Recipient:   draft.Recipient,
		Amount:      draft.Amount,
		Currency:    strings.ToUpper(draft.Currency),
		Status:      domain.StatusPending,
		Type:        typ,
		Timestamp:   now,
		Reference:   draft.Reference,
		Method:      draft.Method,
		Description: draft.Description,
	}

	entries = append([]domain.Payment{p}, entries...)
	if len(entries) > c.maxEntries {
		entries = entries[:c.maxEntries]
	}

	if err := c.save(ctx, entries); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

// ListCombined prunes expired temporary entries and returns the remaining
// ones ahead of server history.
func (c *LocalCache) ListCombined(ctx context.Context, server []domain.Payment) ([]domain.Payment, error) {
	temps, err := c.prune(ctx)
	if err != nil {
		return nil, err
	}
	combined := make([]domain.Payment, 0, len(temps)+len(server))
	combined = append(combined, temps...)
	combined = append(combined, server...)
	return combined, nil
}

// Temporary returns the unexpired temporary entries, newest first.
func (c *LocalCache) Temporary(ctx context.Context) ([]domain.Payment, error) {
	return c.prune(ctx)
}

// Get returns the unexpired temporary entry with the given id.
func (c *LocalCache) Get(ctx context.Context, id string) (domain.Payment, bool, error) {
	temps, err := c.prune(ctx)
	if err != nil {
		return domain.Payment{}, false, err
	}
	for _, p := range temps {
		if p.ID == id {
			return p, true, nil
		}
	}
	return domain.Payment{}, false, nil
}

func (c *LocalCache) prune(ctx context.Context) ([]domain.Payment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := c.now().Add(-c.horizon)
	kept := make([]domain.Payment, 0, len(entries))
	for _, p := range entries {
		if p.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, p)
	}

	if len(kept) != len(entries) {
		c.logger.Debug("pruned expired temporary payments", "removed", len(entries)-len(kept))
		if err := c.save(ctx, kept); err != nil {
			return nil, err
		}
	}
	return kept, nil
}

// nextID derives the id from the epoch millis, stepping forward past any id
// already in use.
func (c *LocalCache) nextID(now time.Time, entries []domain.Payment) string {
	taken := make(map[string]bool, len(entries))
	for _, p := range entries {
		taken[p.ID] = true
	}
	ms := now.UnixMilli()
	for {
		id := TempPrefix + strconv.FormatInt(ms, 10)
		if !taken[id] {
			return id
		}
		ms++
	}
}

func (c *LocalCache) load(ctx context.Context) ([]domain.Payment, error) {
	raw, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("read temporary payments: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var entries []domain.Payment
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		c.logger.Warn("discarding unreadable temporary payments", "key", c.key, "error", err)
		return nil, nil
	}
	return entries, nil
}

func (c *LocalCache) save(ctx context.Context, entries []domain.Payment) error {
	if entries == nil {
		entries = []domain.Payment{}
	}
	body, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, c.key, string(body)); err != nil {
		return fmt.Errorf("write temporary payments: %w", err)
	}
	return nil
}
