// Package registry is a build-time plugin registry for block store backends.
//
// A backend registers itself in init(); a binary enables it with a blank
// import. Flag registration is centralized so each binary can do single-pass
// flag parsing (Go's flag package rejects unknown flags).
package registry

import (
	"flag"
	"fmt"
	"sort"
	"sync"

	"github.com/macterra/artx-market/storage"
)

// Usage restricts which programs accept a given backend.
type Usage uint8

const (
	// UsageCLI marks backends for short-lived CLI programs.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends for long-running daemons (archiverd, casd).
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }

// Backend describes one openable block store implementation.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds backend-specific flags to fs.
	// It must be safe to call exactly once per process.
	RegisterFlags func(fs *flag.FlagSet)

	// Open constructs the store using values parsed into the registered
	// flags, optionally overridden by config (keys mirror flag names).
	// It returns an optional close function.
	Open func(config map[string]string) (storage.BlockStore, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("registry: backend name is required")
	}
	if b.RegisterFlags == nil {
		return fmt.Errorf("registry: backend %q missing RegisterFlags", b.Name)
	}
	if b.Open == nil {
		return fmt.Errorf("registry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("registry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("registry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RegisterFlags registers flags for all backends matching usage.
func RegisterFlags(fs *flag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

// Open opens the named backend if it exists and matches usage.
func Open(name string, usage Usage) (storage.BlockStore, func() error, error) {
	return OpenWithConfig(name, usage, nil)
}

// OpenWithConfig opens the named backend with explicit config values,
// bypassing or overriding flag-sourced configuration.
func OpenWithConfig(name string, usage Usage, config map[string]string) (storage.BlockStore, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("backend %q not supported in this binary", name)
	}
	return b.Open(config)
}
