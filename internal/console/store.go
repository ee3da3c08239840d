package console

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/verte-zerg/presim/internal/model"
)

// EntityOption is one entry of the entity selection control.
type EntityOption struct {
	model.EntityRef
	Selected bool
	// Missing marks a configured entity the registry no longer lists.
	Missing bool
}

// Store holds the configuration edit buffer. The backend stays authoritative:
// the buffer is replaced wholesale on load and on a successful save.
type Store struct {
	backend Backend

	mu      sync.Mutex
	buffer  model.Configuration
	options []EntityOption
	loaded  bool
}

// NewStore creates a store with the documented defaults as its initial buffer.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		buffer:  model.DefaultConfiguration(),
	}
}

// Load fetches the configuration and the entity registry, filling documented
// defaults for absent fields and pre-selecting configured entities.
func (s *Store) Load(ctx context.Context) (model.Configuration, []EntityOption, error) {
	payload, err := s.backend.Config(ctx)
	if err != nil {
		return model.Configuration{}, nil, err
	}
	cfg := payload.Resolve()
	refs, err := s.backend.Entities(ctx)
	if err != nil {
		return model.Configuration{}, nil, err
	}
	options := buildOptions(refs, cfg.Entities)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = cfg
	s.options = options
	s.loaded = true
	return cfg.Clone(), cloneOptions(options), nil
}

// Save coerces the form and posts it as the complete configuration. The buffer
// only changes when the backend accepts the save.
func (s *Store) Save(ctx context.Context, form Form) (model.Configuration, json.RawMessage, error) {
	cfg, err := form.Configuration()
	if err != nil {
		return model.Configuration{}, nil, err
	}
	ack, err := s.backend.SaveConfig(ctx, cfg)
	if err != nil {
		return model.Configuration{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = cfg
	s.options = reselect(s.options, cfg.Entities)
	return cfg.Clone(), ack, nil
}

// Buffer returns a copy of the current edit buffer.
func (s *Store) Buffer() model.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Clone()
}

// Options returns a copy of the entity selection options.
func (s *Store) Options() []EntityOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOptions(s.options)
}

// Loaded reports whether a load has completed.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func buildOptions(refs []model.EntityRef, selected []string) []EntityOption {
	want := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		want[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(refs))
	options := make([]EntityOption, 0, len(refs)+len(selected))
	for _, ref := range refs {
		if _, dup := seen[ref.EntityID]; dup {
			continue
		}
		seen[ref.EntityID] = struct{}{}
		_, ok := want[ref.EntityID]
		options = append(options, EntityOption{EntityRef: ref, Selected: ok})
	}
	for _, id := range selected {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		options = append(options, EntityOption{
			EntityRef: model.EntityRef{EntityID: id, Name: id},
			Selected:  true,
			Missing:   true,
		})
	}
	return options
}

func reselect(options []EntityOption, selected []string) []EntityOption {
	refs := make([]model.EntityRef, 0, len(options))
	for _, opt := range options {
		if opt.Missing {
			continue
		}
		refs = append(refs, opt.EntityRef)
	}
	return buildOptions(refs, selected)
}

func cloneOptions(options []EntityOption) []EntityOption {
	return append([]EntityOption(nil), options...)
}

// OptionLabel renders an option the way the selection control shows it.
func OptionLabel(opt EntityOption) string {
	if opt.Missing {
		return fmt.Sprintf("%s (not in registry)", opt.EntityID)
	}
	name := opt.Name
	if name == "" {
		name = opt.EntityID
	}
	return fmt.Sprintf("%s (%s)", name, opt.EntityID)
}
