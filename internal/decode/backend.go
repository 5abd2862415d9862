// Package decode abstracts the symbol-decoding capability behind an
// explicit Backend interface. Implementations are held in a Registry and
// resolved once at startup from a ranked list of names, replacing the old
// import-time probing of whatever native library happened to be installed.
package decode

import (
	"fmt"
	"image"
	"log/slog"
	"strings"
)

// Symbol is one decoded symbol: its payload bytes and the bounding
// rectangle in the coordinates of the image that was decoded.
type Symbol struct {
	Bytes []byte
	Rect  image.Rectangle
}

// Backend decodes up to maxSymbols symbols from a grayscale image. A nil
// slice with a nil error means the image held no decodable symbol; errors
// are advisory and treated the same way by callers.
type Backend interface {
	Decode(img image.Image, maxSymbols int) ([]Symbol, error)
}

// Factory constructs a backend, failing if its underlying capability is
// unavailable.
type Factory func() (Backend, error)

// Registry holds the available backend implementations by name.
type Registry struct {
	names     []string
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named backend. Later registrations of the same name win.
func (r *Registry) Register(name string, f Factory) {
	if _, exists := r.factories[name]; !exists {
		r.names = append(r.names, name)
	}
	r.factories[name] = f
}

// Names lists the registered backends in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Resolve returns the first backend from the ranked list that can be
// constructed, along with its name.
func (r *Registry) Resolve(ranked ...string) (Backend, string, error) {
	if len(ranked) == 0 {
		ranked = r.names
	}
	var errs []string
	for _, name := range ranked {
		factory, ok := r.factories[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: not registered", name))
			continue
		}
		backend, err := factory()
		if err != nil {
			slog.Warn("decode backend unavailable", "backend", name, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		slog.Info("decode backend selected", "backend", name)
		return backend, name, nil
	}
	return nil, "", fmt.Errorf("no decode backend available: %s", strings.Join(errs, "; "))
}

// DefaultRegistry returns a registry with the built-in ZXing backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(BackendZXing, func() (Backend, error) { return NewZXingBackend(), nil })
	r.Register(BackendZXingSweep, func() (Backend, error) { return NewZXingSweepBackend(), nil })
	return r
}
