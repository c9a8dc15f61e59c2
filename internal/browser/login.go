package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobpilot/internal/config"
)

var ErrLoginFailed = errors.New("login failed")

const consentWait = 3 * time.Second

// DismissConsent clicks the cookie banner when it shows up within a few
// seconds. A missing banner is not an error.
func DismissConsent(ctx context.Context, s Session, sel string) (bool, error) {
	if strings.TrimSpace(sel) == "" {
		return false, nil
	}
	if _, err := s.WaitAny(ctx, []string{sel}, consentWait); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	if err := s.Click(ctx, sel); err != nil {
		return false, fmt.Errorf("click cookie consent: %w", err)
	}
	return true, nil
}

// Login makes sure s is signed in to board b. It is a no-op when the board's
// account affordance is already visible. Any failure wraps ErrLoginFailed.
func Login(ctx context.Context, s Session, b config.Board, creds config.Credentials, wait time.Duration) error {
	target := strings.TrimSpace(b.LoginURL)
	if target == "" {
		target = strings.TrimSpace(b.BaseURL)
	}
	if target == "" {
		return fmt.Errorf("%w: board %s has no login or base url", ErrLoginFailed, b.Name)
	}
	if err := s.Navigate(ctx, target, Load); err != nil {
		return fmt.Errorf("%w: %s: open %s: %v", ErrLoginFailed, b.Name, target, err)
	}
	if _, err := DismissConsent(ctx, s, b.Selectors.CookieConsent); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLoginFailed, b.Name, err)
	}

	account := b.Selectors.MyAccount
	if account != "" {
		if ok, _ := s.Exists(ctx, account); ok {
			return nil
		}
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return fmt.Errorf("%w: %s: no credentials configured", ErrLoginFailed, b.Name)
	}

	sel := b.Selectors
	if sel.Email == "" || sel.Password == "" || sel.SignIn == "" {
		return fmt.Errorf("%w: %s: sign-in selectors missing", ErrLoginFailed, b.Name)
	}
	if err := s.Type(ctx, sel.Email, creds.Email); err != nil {
		return fmt.Errorf("%w: %s: email: %v", ErrLoginFailed, b.Name, err)
	}
	if err := s.Type(ctx, sel.Password, creds.Password); err != nil {
		return fmt.Errorf("%w: %s: password: %v", ErrLoginFailed, b.Name, err)
	}
	if err := s.Click(ctx, sel.SignIn); err != nil {
		return fmt.Errorf("%w: %s: submit: %v", ErrLoginFailed, b.Name, err)
	}
	if account == "" {
		return nil
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	if _, err := s.WaitAny(ctx, []string{account}, wait); err != nil {
		return fmt.Errorf("%w: %s: account link did not appear: %v", ErrLoginFailed, b.Name, err)
	}
	return nil
}
