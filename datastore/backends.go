/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// RegisterBackend makes an Opener available under name.
func RegisterBackend(name string, open Opener) error {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if open == nil {
		return fmt.Errorf("backend %q has a nil opener", name)
	}
	if _, exists := backends[name]; exists {
		return fmt.Errorf("backend with name %q already registered", name)
	}
	backends[name] = open
	return nil
}

// Open connects to the named backend.
func Open(ctx context.Context, name string, opts Options) (Client, error) {
	backendsMu.RLock()
	open, exists := backends[name]
	backendsMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("backend with name %q not found", name)
	}
	return open(ctx, opts)
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for k := range backends {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
