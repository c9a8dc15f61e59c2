package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed boards.yaml
var defaultBoards []byte

var ErrUnknownBoard = errors.New("unknown job board")

const (
	BoardKindBrowser = "browser"
	BoardKindHTTP    = "http"
)

type Selectors struct {
	CookieConsent    string `yaml:"cookie_consent"`
	MyAccount        string `yaml:"my_account"`
	Email            string `yaml:"email"`
	Password         string `yaml:"password"`
	SignIn           string `yaml:"sign_in"`
	ResultsReady     string `yaml:"results_ready"`
	NoResults        string `yaml:"no_results"`
	Card             string `yaml:"card"`
	Title            string `yaml:"title"`
	Company          string `yaml:"company"`
	Location         string `yaml:"location"`
	Link             string `yaml:"link"`
	Salary           string `yaml:"salary"`
	Posted           string `yaml:"posted"`
	Content          string `yaml:"content"`
	ApplyButton      string `yaml:"apply_button"`
	AppliedButton    string `yaml:"applied_button"`
	Review           string `yaml:"review"`
	Send             string `yaml:"send"`
	ContinueExternal string `yaml:"continue_external"`
}

type Board struct {
	Name                string    `yaml:"name"`
	Kind                string    `yaml:"kind"`
	BaseURL             string    `yaml:"base_url"`
	SearchURL           string    `yaml:"search_url"`
	LoginURL            string    `yaml:"login_url"`
	RequiresLogin       bool      `yaml:"requires_login"`
	AllowedDomains      []string  `yaml:"allowed_domains"`
	StripQuery          bool      `yaml:"strip_query"`
	Selectors           Selectors `yaml:"selectors"`
	AlreadyAppliedLabel string    `yaml:"already_applied_label"`
	UnavailablePhrases  []string  `yaml:"unavailable_phrases"`
}

// SearchParams feeds a board's search_url template.
type SearchParams struct {
	Keywords string
	Location string
	// TownName overrides the town derived from Location.
	TownName string
	Radius   int
}

func (p SearchParams) KeywordsSlug() string {
	return strings.Join(strings.Fields(strings.ToLower(p.Keywords)), "-")
}

func (p SearchParams) KeywordsQuery() string { return url.QueryEscape(p.Keywords) }

func (p SearchParams) LocationQuery() string { return url.QueryEscape(p.Location) }

// Town is TownName or the first comma separated segment of the location,
// lower-cased and dashed.
func (p SearchParams) Town() string {
	town := p.TownName
	if strings.TrimSpace(town) == "" {
		town, _, _ = strings.Cut(p.Location, ",")
	}
	return strings.Join(strings.Fields(strings.ToLower(town)), "-")
}

// BuildSearchURL renders the board search URL for the given parameters.
func (b Board) BuildSearchURL(p SearchParams) (string, error) {
	if strings.TrimSpace(b.SearchURL) == "" {
		return "", fmt.Errorf("board %s has no search_url", b.Name)
	}
	tpl, err := template.New(b.Name).Option("missingkey=error").Parse(b.SearchURL)
	if err != nil {
		return "", fmt.Errorf("parse search_url for %s: %w", b.Name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render search_url for %s: %w", b.Name, err)
	}
	return buf.String(), nil
}

// Owns reports whether rawURL points at this board.
func (b Board) Owns(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range b.AllowedDomains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsUnavailable reports whether page text carries one of the board's
// "listing gone" phrases.
func (b Board) IsUnavailable(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range b.UnavailablePhrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

type Catalogue struct {
	Boards []Board `yaml:"boards"`
}

func (c Catalogue) Get(name string) (Board, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, b := range c.Boards {
		if strings.ToLower(b.Name) == name {
			return b, nil
		}
	}
	return Board{}, fmt.Errorf("%w: %s", ErrUnknownBoard, name)
}

// ForURL returns the board whose domains own rawURL.
func (c Catalogue) ForURL(rawURL string) (Board, bool) {
	for _, b := range c.Boards {
		if b.Owns(rawURL) {
			return b, true
		}
	}
	return Board{}, false
}

func (c Catalogue) Names() []string {
	out := make([]string, 0, len(c.Boards))
	for _, b := range c.Boards {
		out = append(out, b.Name)
	}
	return out
}

// LoadBoards reads the board catalogue from path, or the built-in catalogue
// when path is empty.
func LoadBoards(path string) (Catalogue, error) {
	data := defaultBoards
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return Catalogue{}, fmt.Errorf("read boards file %s: %w", p, err)
		}
		data = b
	}
	return ParseBoards(data)
}

func ParseBoards(data []byte) (Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalogue{}, fmt.Errorf("parse boards: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Boards))
	for i, b := range c.Boards {
		name := strings.ToLower(strings.TrimSpace(b.Name))
		if name == "" {
			return Catalogue{}, fmt.Errorf("board #%d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return Catalogue{}, fmt.Errorf("duplicate board %s", name)
		}
		seen[name] = struct{}{}
		switch b.Kind {
		case "":
			c.Boards[i].Kind = BoardKindBrowser
		case BoardKindBrowser, BoardKindHTTP:
		default:
			return Catalogue{}, fmt.Errorf("board %s: unsupported kind %q", name, b.Kind)
		}
		c.Boards[i].Name = name
	}
	return c, nil
}
