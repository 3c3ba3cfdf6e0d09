package settings

import (
	"errors"
	"testing"

	"salesplan-dashboard/internal/models"
)

func newContext(t *testing.T) *Context {
	t.Helper()
	c, err := Init(Defaults(2026))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestInit_RejectsInvalidDefaults(t *testing.T) {
	s := Defaults(2026)
	s.Theme = "neon"
	if _, err := Init(s); err == nil {
		t.Error("expected error for unknown theme")
	}
}

func TestContext_SetAndGet(t *testing.T) {
	c := newContext(t)

	got, err := c.Set(func(s *Settings) {
		s.Theme = ThemeDark
		s.Export.Orientation = models.Landscape
	})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got.Theme != ThemeDark || c.Get().Export.Orientation != models.Landscape {
		t.Errorf("settings not applied: %+v", c.Get())
	}
}

func TestContext_SetInvalidKeepsValue(t *testing.T) {
	c := newContext(t)
	before := c.Get()

	if _, err := c.Set(func(s *Settings) { s.Export.Scale = 3.5 }); err == nil {
		t.Fatal("expected validation error")
	}
	if c.Get() != before {
		t.Error("invalid Set changed the stored settings")
	}
}

func TestContext_UpdateErrorDiscardsPartialEdit(t *testing.T) {
	c := newContext(t)
	ch, cancel := c.Subscribe()
	defer cancel()
	<-ch

	boom := errors.New("decode failed")
	_, err := c.Update(func(s *Settings) error {
		s.Theme = ThemeDark
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want %v", err, boom)
	}
	if c.Get().Theme != ThemeLight {
		t.Error("failed Update committed a partial edit")
	}
	select {
	case s := <-ch:
		t.Errorf("failed Update published %+v", s)
	default:
	}
}

func TestContext_Subscribe(t *testing.T) {
	c := newContext(t)
	ch, cancel := c.Subscribe()
	defer cancel()

	if first := <-ch; first.Theme != ThemeLight {
		t.Errorf("initial value theme = %s", first.Theme)
	}

	c.Set(func(s *Settings) { s.Theme = ThemeDark })
	c.Set(func(s *Settings) { s.Export.PageSize = models.PageLegal })

	latest := <-ch
	if latest.Theme != ThemeDark || latest.Export.PageSize != models.PageLegal {
		t.Errorf("subscriber should see the latest value, got %+v", latest)
	}
}

func TestContext_CancelAndClose(t *testing.T) {
	c, err := Init(Defaults(2026))
	if err != nil {
		t.Fatal(err)
	}
	ch1, cancel1 := c.Subscribe()
	ch2, _ := c.Subscribe()
	<-ch1
	<-ch2

	cancel1()
	cancel1()
	if _, ok := <-ch1; ok {
		t.Error("cancelled channel should be closed")
	}
	if c.Subscribers() != 1 {
		t.Errorf("subscribers = %d, want 1", c.Subscribers())
	}

	c.Close()
	if _, ok := <-ch2; ok {
		t.Error("Close should close remaining subscriptions")
	}
	if _, err := c.Set(func(s *Settings) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close = %v, want ErrClosed", err)
	}
	if ch, _ := c.Subscribe(); ch != nil {
		if _, ok := <-ch; ok {
			t.Error("Subscribe after Close should return a closed channel")
		}
	}
}
