package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type evalFunc func(ctx context.Context, js string, out any) error

// domOps implements the read-only Session queries on top of script
// evaluation, so every driver answers them the same way.
type domOps struct {
	eval         evalFunc
	pollInterval time.Duration
}

type found struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func elementScript(sel, body string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return {found: false, value: ""};
	return {found: true, value: String(%s)};
})()`, quote(sel), body)
}

func (d domOps) query(ctx context.Context, sel, body string) (string, error) {
	var f found
	if err := d.eval(ctx, elementScript(sel, body), &f); err != nil {
		return "", err
	}
	if !f.Found {
		return "", fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	return f.Value, nil
}

func (d domOps) Exists(ctx context.Context, sel string) (bool, error) {
	var ok bool
	if err := d.eval(ctx, fmt.Sprintf(`document.querySelector(%s) !== null`, quote(sel)), &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (d domOps) Text(ctx context.Context, sel string) (string, error) {
	return d.query(ctx, sel, `(el.innerText || el.textContent || "").trim()`)
}

func (d domOps) HTML(ctx context.Context, sel string) (string, error) {
	return d.query(ctx, sel, `el.innerHTML`)
}

func (d domOps) BodyText(ctx context.Context) (string, error) {
	var s string
	if err := d.eval(ctx, `document.body ? (document.body.innerText || "") : ""`, &s); err != nil {
		return "", err
	}
	return s, nil
}

func (d domOps) Attr(ctx context.Context, sel, name string) (string, bool, error) {
	var f found
	js := fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el || !el.hasAttribute(%s)) return {found: false, value: ""};
	return {found: true, value: el.getAttribute(%s) || ""};
})()`, quote(sel), quote(name), quote(name))
	if err := d.eval(ctx, js, &f); err != nil {
		return "", false, err
	}
	return f.Value, f.Found, nil
}

func (d domOps) Disabled(ctx context.Context, sel string) (bool, error) {
	v, err := d.query(ctx, sel, `el.disabled === true || el.hasAttribute("disabled") || el.getAttribute("aria-disabled") === "true"`)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (d domOps) WaitAny(ctx context.Context, sels []string, timeout time.Duration) (string, error) {
	return PollAny(ctx, sels, timeout, d.pollInterval, func(ctx context.Context, sel string) (bool, error) {
		return d.Exists(ctx, sel)
	})
}

// PollAny checks sels in order every interval until one exists or timeout
// elapses. Evaluation errors while the page is changing are ignored.
func PollAny(ctx context.Context, sels []string, timeout, interval time.Duration, exists func(context.Context, string) (bool, error)) (string, error) {
	if len(sels) == 0 {
		return "", fmt.Errorf("%w: no selectors", ErrNotFound)
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ctx, cancel := withOpTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, sel := range sels {
			if sel == "" {
				continue
			}
			ok, err := exists(ctx, sel)
			if err == nil && ok {
				return sel, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: none of %v within %s", ErrNotFound, sels, timeout)
		case <-ticker.C:
		}
	}
}

// chromeErrorScript returns the net error code when the tab shows Chrome's
// network error page.
const chromeErrorScript = `(() => {
	if (!String(location.href).startsWith("chrome-error://")) return "";
	const el = document.querySelector(".error-code");
	return el ? el.innerText.trim() : "ERR_FAILED";
})()`
