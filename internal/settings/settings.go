// Package settings holds application-wide UI settings behind an explicit
// lifecycle. Readers call Get or Subscribe; writers go through Set.
package settings

import (
	"errors"
	"fmt"
	"sync"

	"salesplan-dashboard/internal/models"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var ErrClosed = errors.New("settings context closed")

type Settings struct {
	Theme  Theme                      `json:"theme"`
	Year   int                        `json:"year"`
	Export models.ExportConfiguration `json:"export"`
}

func Defaults(year int) Settings {
	return Settings{
		Theme:  ThemeLight,
		Year:   year,
		Export: models.DefaultExportConfiguration(),
	}
}

func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("unknown theme %q", s.Theme)
	}
	if s.Year < 2000 || s.Year > 2100 {
		return fmt.Errorf("year %d out of range", s.Year)
	}
	return s.Export.Validate()
}

// Context owns the current settings and fans changes out to subscribers.
// Each subscriber sees the latest value; intermediate updates may be skipped.
type Context struct {
	mu     sync.RWMutex
	cur    Settings
	subs   map[int]chan Settings
	nextID int
	closed bool
}

func Init(defaults Settings) (*Context, error) {
	defaults.Export = defaults.Export.Normalize()
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default settings: %w", err)
	}
	return &Context{
		cur:  defaults,
		subs: make(map[int]chan Settings),
	}, nil
}

func (c *Context) Get() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Set applies fn to a copy of the current settings and publishes the result if
// it validates. The stored value is unchanged on error.
func (c *Context) Set(fn func(*Settings)) (Settings, error) {
	return c.Update(func(s *Settings) error {
		fn(s)
		return nil
	})
}

// Update is Set for edits that can fail part way, such as decoding a request
// body. Nothing is committed or published when fn returns an error.
func (c *Context) Update(fn func(*Settings) error) (Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.cur, ErrClosed
	}
	next := c.cur
	if err := fn(&next); err != nil {
		return c.cur, err
	}
	next.Export = next.Export.Normalize()
	if err := next.Validate(); err != nil {
		return c.cur, err
	}
	c.cur = next
	for _, ch := range c.subs {
		publish(ch, next)
	}
	return next, nil
}

func publish(ch chan Settings, s Settings) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- s
}

// Subscribe returns a channel primed with the current settings. The channel is
// closed by cancel or Close.
func (c *Context) Subscribe() (<-chan Settings, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Settings, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.cur

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

func (c *Context) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Close ends every subscription. Further Set calls fail with ErrClosed.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}
