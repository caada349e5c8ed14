// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package api

import (
	"sort"
	"sync"

	"github.com/flowatlas/flowatlas/internal/derived"
)

// Registry holds the ingested datasets with their built engines. Engines
// are immutable once published, so readers never see a half-built one;
// publishing under the same ID is last-write-wins, which also settles
// racing rebuilds: whichever build publishes last is the one served.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*derived.Engine
}

// NewRegistry returns an empty dataset registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*derived.Engine)}
}

// Put publishes an engine under its dataset ID, replacing any previous
// engine for that ID.
func (r *Registry) Put(engine *derived.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[engine.Dataset().ID] = engine
}

// Get returns the engine for a dataset ID.
func (r *Registry) Get(id string) (*derived.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[id]
	return engine, ok
}

// Remove drops a dataset; returns whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.engines[id]
	delete(r.engines, id)
	return ok
}

// IDs lists the registered dataset IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered datasets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}
