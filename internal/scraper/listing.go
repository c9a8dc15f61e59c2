package scraper

import (
	"encoding/json"
	"net/url"
	"strings"

	"jobpilot/internal/config"
	"jobpilot/internal/domain/job"
)

// listing is one card as read from a results page.
type listing struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	URL      string `json:"url"`
	Salary   string `json:"salary"`
	Posted   string `json:"posted"`
}

const listingScript = `(() => {
  const sel = %s;
  const text = (root, s) => {
    if (!s) return "";
    const el = root.querySelector(s);
    return el ? (el.innerText || el.textContent || "").trim() : "";
  };
  const link = (card) => {
    let el = sel.link ? card.querySelector(sel.link) : null;
    if (!el && sel.title) {
      const t = card.querySelector(sel.title);
      if (t) el = t.closest("a") || t.querySelector("a");
    }
    if (!el) el = card.querySelector("a[href]");
    return el ? (el.href || el.getAttribute("href") || "") : "";
  };
  return Array.from(document.querySelectorAll(sel.card)).map(card => ({
    title: text(card, sel.title),
    company: text(card, sel.company),
    location: text(card, sel.location),
    url: link(card),
    salary: text(card, sel.salary),
    posted: text(card, sel.posted),
  }));
})()`

// listingJS renders the extraction script for a board's selectors.
func listingJS(s config.Selectors) string {
	b, _ := json.Marshal(map[string]string{
		"card":     s.Card,
		"title":    s.Title,
		"company":  s.Company,
		"location": s.Location,
		"link":     s.Link,
		"salary":   s.Salary,
		"posted":   s.Posted,
	})
	return strings.Replace(listingScript, "%s", string(b), 1)
}

// toRaw cleans up scraped cards. Cards without a title or a resolvable URL
// are dropped.
func toRaw(b config.Board, items []listing) []job.Raw {
	out := make([]job.Raw, 0, len(items))
	for _, it := range items {
		title := squash(it.Title)
		u := absoluteURL(b.BaseURL, it.URL, b.StripQuery)
		if title == "" || u == "" {
			continue
		}
		out = append(out, job.Raw{
			Title:    title,
			Company:  squash(it.Company),
			Location: squash(it.Location),
			URL:      u,
			Salary:   optional(it.Salary),
			Posted:   optional(it.Posted),
		})
	}
	return out
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func optional(s string) *string {
	s = squash(s)
	if s == "" {
		return nil
	}
	return &s
}

// absoluteURL resolves href against base and drops the fragment, plus the
// query when stripQuery is set.
func absoluteURL(base, href string, stripQuery bool) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		b, err := url.Parse(strings.TrimSpace(base))
		if err != nil || b.Host == "" {
			return ""
		}
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	if stripQuery {
		ref.RawQuery = ""
	}
	return ref.String()
}
