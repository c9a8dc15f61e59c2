// Package browsertest provides a scripted browser.Session for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"jobpilot/internal/browser"
)

type Element struct {
	Text     string
	HTML     string
	Attrs    map[string]string
	Disabled bool
}

type Page struct {
	Elements map[string]Element
	BodyText string
	// Late elements are invisible to Exists until a WaitAny finds nothing
	// present, after which they render.
	Late map[string]Element
}

type Navigation struct {
	URL  string
	Wait browser.WaitStrategy
}

// Session serves pages keyed by URL. Clicking a selector runs its OnClick
// hook, which typically moves the session to another page.
type Session struct {
	mu sync.Mutex

	Pages   map[string]*Page
	current string

	OnClick      map[string]func(s *Session) error
	NavigateFunc func(url string, wait browser.WaitStrategy) error
	EvalFunc     func(js string) (any, error)

	Navigations []Navigation
	Clicks      []string
	Typed       map[string]string
	Screenshots []string
	CloseCount  int
}

func New() *Session {
	return &Session{
		Pages:   map[string]*Page{},
		OnClick: map[string]func(*Session) error{},
		Typed:   map[string]string{},
	}
}

func (s *Session) SetPage(url string, p *Page) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Elements == nil {
		p.Elements = map[string]Element{}
	}
	s.Pages[url] = p
	return s
}

// Goto switches the current page without recording a navigation, the way a
// click-driven page change would.
func (s *Session) Goto(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = url
}

func (s *Session) page() *Page {
	if p, ok := s.Pages[s.current]; ok {
		return p
	}
	return &Page{Elements: map[string]Element{}}
}

func (s *Session) Navigate(_ context.Context, url string, wait browser.WaitStrategy) error {
	s.mu.Lock()
	s.Navigations = append(s.Navigations, Navigation{URL: url, Wait: wait})
	fn := s.NavigateFunc
	s.mu.Unlock()
	if fn != nil {
		if err := fn(url, wait); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.current = url
	s.mu.Unlock()
	return nil
}

func (s *Session) element(sel string) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.page().Elements[sel]
	if !ok {
		return Element{}, fmt.Errorf("%w: %s", browser.ErrNotFound, sel)
	}
	return el, nil
}

func (s *Session) Exists(_ context.Context, sel string) (bool, error) {
	_, err := s.element(sel)
	return err == nil, nil
}

func (s *Session) WaitAny(ctx context.Context, sels []string, _ time.Duration) (string, error) {
	if sel, ok := s.firstPresent(ctx, sels); ok {
		return sel, nil
	}
	if s.renderLate() {
		if sel, ok := s.firstPresent(ctx, sels); ok {
			return sel, nil
		}
	}
	return "", fmt.Errorf("%w: none of %v", browser.ErrNotFound, sels)
}

func (s *Session) firstPresent(ctx context.Context, sels []string) (string, bool) {
	for _, sel := range sels {
		if ok, _ := s.Exists(ctx, sel); ok {
			return sel, true
		}
	}
	return "", false
}

func (s *Session) renderLate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Pages[s.current]
	if !ok || len(p.Late) == 0 {
		return false
	}
	for sel, el := range p.Late {
		p.Elements[sel] = el
	}
	p.Late = nil
	return true
}

func (s *Session) Text(_ context.Context, sel string) (string, error) {
	el, err := s.element(sel)
	return el.Text, err
}

func (s *Session) HTML(_ context.Context, sel string) (string, error) {
	el, err := s.element(sel)
	return el.HTML, err
}

func (s *Session) BodyText(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page().BodyText, nil
}

func (s *Session) Attr(_ context.Context, sel, name string) (string, bool, error) {
	el, err := s.element(sel)
	if err != nil {
		return "", false, nil
	}
	v, ok := el.Attrs[name]
	return v, ok, nil
}

func (s *Session) Disabled(_ context.Context, sel string) (bool, error) {
	el, err := s.element(sel)
	return el.Disabled, err
}

func (s *Session) Click(_ context.Context, sel string) error {
	if _, err := s.element(sel); err != nil {
		return err
	}
	s.mu.Lock()
	s.Clicks = append(s.Clicks, sel)
	hook := s.OnClick[sel]
	s.mu.Unlock()
	if hook != nil {
		return hook(s)
	}
	return nil
}

func (s *Session) Type(_ context.Context, sel, text string) error {
	if _, err := s.element(sel); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Typed[sel] = text
	return nil
}

func (s *Session) Evaluate(_ context.Context, js string, out any) error {
	s.mu.Lock()
	fn := s.EvalFunc
	s.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("evaluate not scripted")
	}
	v, err := fn(js)
	if err != nil || out == nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (s *Session) URL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *Session) Screenshot(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Screenshots = append(s.Screenshots, path)
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCount++
	return nil
}

// Launcher hands out sessions built by New, counting launches.
type Launcher struct {
	mu       sync.Mutex
	New      func() *Session
	Err      error
	Launched []*Session
}

func (l *Launcher) Launch(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	var s *Session
	if l.New != nil {
		s = l.New()
	} else {
		s = New()
	}
	l.Launched = append(l.Launched, s)
	return s, nil
}
