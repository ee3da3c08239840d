// Package console keeps the operator console's state in step with the backend:
// the configuration edit buffer, the latest status snapshot, and the actions
// that change them.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/presim/internal/model"
)

// DefaultPollInterval is the status refresh cadence when none is configured.
const DefaultPollInterval = 5 * time.Second

// Backend is the subset of the REST contract the console consumes.
type Backend interface {
	Entities(ctx context.Context) ([]model.EntityRef, error)
	Config(ctx context.Context) (model.ConfigPayload, error)
	SaveConfig(ctx context.Context, cfg model.Configuration) (json.RawMessage, error)
	Status(ctx context.Context) (model.StatusSnapshot, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// Journal records dispatched actions. Failures to record never fail the action.
type Journal interface {
	InsertAction(ctx context.Context, rec model.ActionRecord) (int64, error)
}

// RefreshError reports a write the backend accepted whose follow-up status
// refresh then failed. The write itself stands.
type RefreshError struct {
	Op  string
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s succeeded, but status refresh failed: %v", e.Op, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// State is the application state the views project from.
type State struct {
	Config   model.Configuration
	Entities []EntityOption
	Loaded   bool

	Status    *model.StatusSnapshot
	StatusErr error
	StatusAt  time.Time
	InFlight  int
}

// Controller owns the configuration store and the latest status snapshot.
type Controller struct {
	backend Backend
	store   *Store
	journal Journal
	logger  *zap.Logger
	now     func() time.Time
	onApply func(model.StatusSnapshot)

	mu        sync.Mutex
	status    *model.StatusSnapshot
	statusErr error
	statusAt  time.Time
	issued    uint64
	applied   uint64
	inFlight  int
}

// Option configures a Controller.
type Option func(*Controller)

// WithJournal records dispatched actions and saves.
func WithJournal(j Journal) Option {
	return func(c *Controller) {
		c.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithOnApply registers fn to receive every snapshot Refresh applies, in apply
// order. fn runs with the controller locked and must not call back into it.
func WithOnApply(fn func(model.StatusSnapshot)) Option {
	return func(c *Controller) {
		c.onApply = fn
	}
}

// New creates a controller for the given backend.
func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		store:   NewStore(backend),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store exposes the configuration store.
func (c *Controller) Store() *Store {
	return c.store
}

// Load populates the edit buffer and the entity options from the backend.
func (c *Controller) Load(ctx context.Context) error {
	if _, _, err := c.store.Load(ctx); err != nil {
		c.logger.Warn("config load failed", zap.Error(err))
		return err
	}
	return nil
}

// Save persists the form and then refreshes status so scheduling changes show up at once.
func (c *Controller) Save(ctx context.Context, form Form) (json.RawMessage, error) {
	started := c.now()
	_, ack, err := c.store.Save(ctx, form)
	c.record(ctx, "save", started, err)
	if err != nil {
		return nil, err
	}
	if _, err := c.Refresh(ctx); err != nil {
		return ack, &RefreshError{Op: "save", Err: err}
	}
	return ack, nil
}

// Dispatch fires an action and, once it succeeds, refreshes status out of band
// before returning.
func (c *Controller) Dispatch(ctx context.Context, action Action) (json.RawMessage, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	started := c.now()
	ack, err := c.backend.Post(ctx, action.Path(), nil)
	c.record(ctx, string(action), started, err)
	if err != nil {
		return nil, err
	}
	if _, err := c.Refresh(ctx); err != nil {
		return ack, &RefreshError{Op: string(action), Err: err}
	}
	return ack, nil
}

// Refresh fetches one status snapshot. Each call takes a sequence number when
// issued; a result is applied only if no later-issued fetch has been applied
// already, so overlapping fetches cannot roll the display back. A failed fetch
// keeps the last good snapshot and is recorded only when nothing newer has
// landed. The returned bool reports whether this call's snapshot was applied.
func (c *Controller) Refresh(ctx context.Context) (bool, error) {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.inFlight++
	c.mu.Unlock()

	snap, err := c.backend.Status(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	if seq <= c.applied {
		c.logger.Debug("discarding stale status", zap.Uint64("seq", seq), zap.Uint64("applied", c.applied))
		return false, err
	}
	if err != nil {
		// A failure never advances the applied sequence, so an older fetch
		// that succeeds afterwards still lands.
		c.statusErr = err
		return false, err
	}
	c.applied = seq
	c.status = &snap
	c.statusErr = nil
	c.statusAt = c.now()
	if c.onApply != nil {
		c.onApply(snap)
	}
	return true, nil
}

// Run refreshes status immediately and then on every tick until ctx is done.
// Ticks do not wait for in-flight fetches, and a failed fetch never stops the loop.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	poll := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("status poll failed", zap.Error(err))
			}
		}()
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			poll()
		}
	}
}

// Snapshot returns a copy of the application state.
func (c *Controller) Snapshot() State {
	st := State{
		Config:   c.store.Buffer(),
		Entities: c.store.Options(),
		Loaded:   c.store.Loaded(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != nil {
		snap := *c.status
		st.Status = &snap
	}
	st.StatusErr = c.statusErr
	st.StatusAt = c.statusAt
	st.InFlight = c.inFlight
	return st
}

func (c *Controller) record(ctx context.Context, action string, started time.Time, err error) {
	if c.journal == nil {
		return
	}
	rec := model.ActionRecord{
		Action:     action,
		IssuedAt:   started,
		OK:         err == nil,
		DurationMs: c.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if _, jerr := c.journal.InsertAction(context.WithoutCancel(ctx), rec); jerr != nil {
		c.logger.Warn("failed to journal action", zap.String("action", action), zap.Error(jerr))
	}
}
