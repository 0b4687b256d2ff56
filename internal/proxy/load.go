package proxy

import (
	"fmt"
	"sync"

	"github.com/dgallion1/docpane/internal/host"
)

// Load is a pending property read. Its values become available once the
// commit carrying it resolves; until then every accessor returns ErrNotLoaded.
type Load struct {
	handle host.Handle
	props  []string
	index  int

	once   sync.Once
	done   chan struct{}
	values map[string]any
	err    error
}

func newLoad(h host.Handle, props []string) *Load {
	return &Load{
		handle: h,
		props:  append([]string(nil), props...),
		done:   make(chan struct{}),
	}
}

// Handle is the object this load reads from.
func (l *Load) Handle() host.Handle { return l.handle }

// Done is closed when the commit resolves or rejects.
func (l *Load) Done() <-chan struct{} { return l.done }

// Err is ErrNotLoaded while pending, the commit error after a rejection,
// and nil after success.
func (l *Load) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return ErrNotLoaded
	}
}

func (l *Load) resolve(values map[string]any) {
	l.once.Do(func() {
		l.values = values
		close(l.done)
	})
}

func (l *Load) reject(err error) {
	l.once.Do(func() {
		l.err = err
		close(l.done)
	})
}

// Value returns the raw loaded value of prop.
func (l *Load) Value(prop string) (any, error) {
	if err := l.Err(); err != nil {
		return nil, err
	}
	v, ok := l.values[prop]
	if !ok {
		return nil, fmt.Errorf("%w: %s was not requested on %s", ErrNotLoaded, prop, l.handle)
	}
	return v, nil
}

// String returns prop as a string.
func (l *Load) String(prop string) (string, error) {
	v, err := l.Value(prop)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: want string, host returned %T", prop, v)
	}
	return s, nil
}

// Bool returns prop as a bool.
func (l *Load) Bool(prop string) (bool, error) {
	v, err := l.Value(prop)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: want bool, host returned %T", prop, v)
	}
	return b, nil
}

// Float64 returns prop as a float64.
func (l *Load) Float64(prop string) (float64, error) {
	v, err := l.Value(prop)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%s: want number, host returned %T", prop, v)
	}
}

// Handles returns prop as a list of handles, as produced for "items".
func (l *Load) Handles(prop string) ([]host.Handle, error) {
	v, err := l.Value(prop)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	hs, ok := v.([]host.Handle)
	if !ok {
		return nil, fmt.Errorf("%s: want handles, host returned %T", prop, v)
	}
	return hs, nil
}
