package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/verte-zerg/presim/internal/model"
)

// Backend paths.
const (
	PathEntities = "/api/entities"
	PathConfig   = "/api/config"
	PathStatus   = "/api/status"
	PathTrain    = "/api/train"
	PathStart    = "/api/start"
	PathStop     = "/api/stop"
	PathStep     = "/api/step"
)

type configEnvelope struct {
	Config model.ConfigPayload `json:"config"`
}

// Entities lists the registry entities that can be simulated.
func (c *Client) Entities(ctx context.Context) ([]model.EntityRef, error) {
	raw, err := c.Get(ctx, PathEntities)
	if err != nil {
		return nil, err
	}
	var refs []model.EntityRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, fmt.Errorf("failed to decode entities: %w", err)
	}
	return refs, nil
}

// Config fetches the stored configuration as sent, without defaults applied.
func (c *Client) Config(ctx context.Context) (model.ConfigPayload, error) {
	raw, err := c.Get(ctx, PathConfig)
	if err != nil {
		return model.ConfigPayload{}, err
	}
	var env configEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.ConfigPayload{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return env.Config, nil
}

// SaveConfig posts the full configuration and returns the acknowledgement.
func (c *Client) SaveConfig(ctx context.Context, cfg model.Configuration) (json.RawMessage, error) {
	if cfg.Entities == nil {
		cfg.Entities = []string{}
	}
	return c.Post(ctx, PathConfig, cfg)
}

// Status fetches the current status snapshot.
func (c *Client) Status(ctx context.Context) (model.StatusSnapshot, error) {
	raw, err := c.Get(ctx, PathStatus)
	if err != nil {
		return model.StatusSnapshot{}, err
	}
	var st model.StatusSnapshot
	if err := json.Unmarshal(raw, &st); err != nil {
		return model.StatusSnapshot{}, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

// Train asks the backend to rebuild the presence model.
func (c *Client) Train(ctx context.Context) (json.RawMessage, error) {
	return c.Post(ctx, PathTrain, nil)
}

// Start starts the simulation scheduler.
func (c *Client) Start(ctx context.Context) (json.RawMessage, error) {
	return c.Post(ctx, PathStart, nil)
}

// Stop stops the simulation scheduler.
func (c *Client) Stop(ctx context.Context) (json.RawMessage, error) {
	return c.Post(ctx, PathStop, nil)
}

// Step runs a single simulation tick immediately.
func (c *Client) Step(ctx context.Context) (json.RawMessage, error) {
	return c.Post(ctx, PathStep, nil)
}
