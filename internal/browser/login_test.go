package browser_test

import (
	"context"
	"testing"
	"time"

	"jobpilot/internal/browser"
	"jobpilot/internal/browser/browsertest"
	"jobpilot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cwjobs(t *testing.T) config.Board {
	t.Helper()
	cat, err := config.LoadBoards("")
	require.NoError(t, err)
	b, err := cat.Get("cwjobs")
	require.NoError(t, err)
	return b
}

var creds = config.Credentials{Email: "me@example.com", Password: "secret"}

func TestLogin_AlreadySignedIn(t *testing.T) {
	b := cwjobs(t)
	s := browsertest.New()
	s.SetPage(b.LoginURL, &browsertest.Page{Elements: map[string]browsertest.Element{
		b.Selectors.CookieConsent: {},
		b.Selectors.MyAccount:     {},
	}})

	require.NoError(t, browser.Login(context.Background(), s, b, creds, time.Second))
	assert.Equal(t, []string{b.Selectors.CookieConsent}, s.Clicks)
	assert.Empty(t, s.Typed)
	require.Len(t, s.Navigations, 1)
	assert.Equal(t, browser.Load, s.Navigations[0].Wait)
}

func TestLogin_SubmitsCredentials(t *testing.T) {
	b := cwjobs(t)
	s := browsertest.New()
	s.SetPage(b.LoginURL, &browsertest.Page{Elements: map[string]browsertest.Element{
		b.Selectors.Email:    {},
		b.Selectors.Password: {},
		b.Selectors.SignIn:   {},
	}})
	s.SetPage("https://www.cwjobs.co.uk/", &browsertest.Page{Elements: map[string]browsertest.Element{
		b.Selectors.MyAccount: {},
	}})
	s.OnClick[b.Selectors.SignIn] = func(s *browsertest.Session) error {
		s.Goto("https://www.cwjobs.co.uk/")
		return nil
	}

	require.NoError(t, browser.Login(context.Background(), s, b, creds, time.Second))
	assert.Equal(t, "me@example.com", s.Typed[b.Selectors.Email])
	assert.Equal(t, "secret", s.Typed[b.Selectors.Password])
}

func TestLogin_Failures(t *testing.T) {
	b := cwjobs(t)

	t.Run("no credentials", func(t *testing.T) {
		s := browsertest.New()
		err := browser.Login(context.Background(), s, b, config.Credentials{}, time.Second)
		assert.ErrorIs(t, err, browser.ErrLoginFailed)
	})

	t.Run("account link never appears", func(t *testing.T) {
		s := browsertest.New()
		s.SetPage(b.LoginURL, &browsertest.Page{Elements: map[string]browsertest.Element{
			b.Selectors.Email:    {},
			b.Selectors.Password: {},
			b.Selectors.SignIn:   {},
		}})
		err := browser.Login(context.Background(), s, b, creds, time.Second)
		assert.ErrorIs(t, err, browser.ErrLoginFailed)
		assert.ErrorContains(t, err, "account link")
	})

	t.Run("form missing", func(t *testing.T) {
		s := browsertest.New()
		err := browser.Login(context.Background(), s, b, creds, time.Second)
		assert.ErrorIs(t, err, browser.ErrLoginFailed)
	})
}
