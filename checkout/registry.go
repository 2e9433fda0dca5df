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

package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrRunNotFound is returned by Registry.Get for unknown run IDs.
var ErrRunNotFound = errors.New("checkout run not found")

// Registry persists checkout runs after every step transition, so the
// progress of a run is observable from outside the orchestrating process.
type Registry interface {
	Save(ctx context.Context, run *Result) error
	Get(ctx context.Context, runID string) (*Result, error)
}

// InMemoryRegistry keeps runs in a concurrent map. Runs are stored as
// JSON so readers never alias the orchestrator's live Result.
type InMemoryRegistry struct {
	runs *xsync.MapOf[string, []byte]
}

// NewInMemoryRegistry returns an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		runs: xsync.NewMapOf[string, []byte](),
	}
}

func (r *InMemoryRegistry) Save(_ context.Context, run *Result) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.RunID, err)
	}
	r.runs.Store(run.RunID, raw)
	return nil
}

func (r *InMemoryRegistry) Get(_ context.Context, runID string) (*Result, error) {
	raw, ok := r.runs.Load(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	var run Result
	err := json.Unmarshal(raw, &run)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &run, nil
}

// WaitForRun polls the registry until the run reaches a terminal state or
// ctx is done.
func WaitForRun(ctx context.Context, registry Registry, runID string, pollInterval time.Duration) (*Result, error) {
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		run, err := registry.Get(ctx, runID)
		if err != nil && !errors.Is(err, ErrRunNotFound) {
			return nil, err
		}
		if run != nil && run.Finished() {
			return run, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return run, ctx.Err()
		}
	}
}
