/*
Copyright 2025 The Meridian Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package redis implements the checkout run registry on Redis, for
// cross-process observability of in-flight and recent runs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/checkout"
	"github.com/meridianerp/finance-core/metadata"
)

const (
	defaultKeyPrefix = "checkout:run:"
	defaultTTL       = 24 * time.Hour
)

type redisMetadata struct {
	Host      string        `json:"redisHost" mapstructure:"redisHost"`
	Password  string        `json:"redisPassword" mapstructure:"redisPassword"`
	DB        int           `json:"redisDB" mapstructure:"redisDB"`
	KeyPrefix string        `json:"keyPrefix" mapstructure:"keyPrefix"`
	TTL       time.Duration `json:"ttl" mapstructure:"ttl"`
}

func (m *redisMetadata) InitWithMetadata(meta metadata.Base) error {
	m.Host = ""
	m.Password = ""
	m.DB = 0
	m.KeyPrefix = defaultKeyPrefix
	m.TTL = defaultTTL

	err := metadata.DecodeMetadata(meta.Properties, &m)
	if err != nil {
		return err
	}

	if m.Host == "" {
		return errors.New("metadata property redisHost is empty")
	}
	return nil
}

// Registry stores checkout runs as JSON values with a TTL.
type Registry struct {
	logger   logger.Logger
	metadata redisMetadata
	client   *redis.Client
}

// NewRegistry returns an uninitialized Redis run registry.
func NewRegistry(logger logger.Logger) *Registry {
	return &Registry{
		logger: logger,
	}
}

// Init connects to Redis. Recognized properties: redisHost (required),
// redisPassword, redisDB, keyPrefix, ttl.
func (r *Registry) Init(ctx context.Context, meta metadata.Base) error {
	err := r.metadata.InitWithMetadata(meta)
	if err != nil {
		return err
	}

	r.client = redis.NewClient(&redis.Options{
		Addr:     r.metadata.Host,
		Password: r.metadata.Password,
		DB:       r.metadata.DB,
	})

	err = r.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("error connecting to Redis: %w", err)
	}
	return nil
}

func (r *Registry) key(runID string) string {
	return r.metadata.KeyPrefix + runID
}

// Save implements checkout.Registry.
func (r *Registry) Save(ctx context.Context, run *checkout.Result) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.RunID, err)
	}
	err = r.client.Set(ctx, r.key(run.RunID), raw, r.metadata.TTL).Err()
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

// Get implements checkout.Registry.
func (r *Registry) Get(ctx context.Context, runID string) (*checkout.Result, error) {
	raw, err := r.client.Get(ctx, r.key(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", checkout.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var run checkout.Result
	err = json.Unmarshal(raw, &run)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &run, nil
}

// Close releases the Redis connection.
func (r *Registry) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
