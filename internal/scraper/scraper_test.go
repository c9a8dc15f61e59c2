package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobpilot/internal/browser"
	"jobpilot/internal/browser/browsertest"
	"jobpilot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBoard(t *testing.T, name string) config.Board {
	t.Helper()
	cat, err := config.LoadBoards("")
	require.NoError(t, err)
	b, err := cat.Get(name)
	require.NoError(t, err)
	return b
}

func TestToRaw_NormalizesAndDrops(t *testing.T) {
	b := testBoard(t, "linkedin")
	items := []listing{
		{Title: "  Frontend \n Developer ", Company: " Acme ", URL: "/jobs/view/123?trk=abc#top", Salary: "  "},
		{Title: "", URL: "https://www.linkedin.com/jobs/view/1"},
		{Title: "No link", URL: ""},
		{Title: "Script", URL: "javascript:void(0)"},
		{Title: "React Engineer", URL: "https://www.linkedin.com/jobs/view/456?refId=x", Posted: "2 days ago"},
	}

	got := toRaw(b, items)
	require.Len(t, got, 2)
	assert.Equal(t, "Frontend Developer", got[0].Title)
	assert.Equal(t, "Acme", got[0].Company)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/123", got[0].URL)
	assert.Nil(t, got[0].Salary)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/456", got[1].URL)
	require.NotNil(t, got[1].Posted)
	assert.Equal(t, "2 days ago", *got[1].Posted)
}

func TestAbsoluteURL_KeepsQueryUnlessStripped(t *testing.T) {
	assert.Equal(t, "https://uk.indeed.com/rc/clk?jk=abc", absoluteURL("https://uk.indeed.com", "/rc/clk?jk=abc", false))
	assert.Equal(t, "https://uk.indeed.com/rc/clk", absoluteURL("https://uk.indeed.com", "/rc/clk?jk=abc", true))
	assert.Equal(t, "", absoluteURL("", "/relative", false))
	assert.Equal(t, "", absoluteURL("https://x.test", "mailto:a@b.c", false))
}

func TestListingJS_EmbedsSelectors(t *testing.T) {
	js := listingJS(config.Selectors{Card: `article[data-testid="job-item"]`, Title: "h2 a"})
	assert.Contains(t, js, `"card":"article[data-testid=\"job-item\"]"`)
	assert.Contains(t, js, `"title":"h2 a"`)
	assert.NotContains(t, js, "%s")
}

func newCWJobsSession(b config.Board, searchURL string, cards []map[string]any) *browsertest.Session {
	s := browsertest.New()
	s.SetPage(searchURL, &browsertest.Page{Elements: map[string]browsertest.Element{
		b.Selectors.CookieConsent: {},
		b.Selectors.ResultsReady:  {},
	}})
	s.EvalFunc = func(js string) (any, error) {
		if !strings.Contains(js, "querySelectorAll(sel.card)") {
			return nil, fmt.Errorf("unexpected script")
		}
		return cards, nil
	}
	return s
}

func TestBrowserAdapter_FetchJobs(t *testing.T) {
	b := testBoard(t, "cwjobs")
	p := config.SearchParams{Keywords: "Frontend Developer", Location: "London, UK", Radius: 10}
	searchURL, err := b.BuildSearchURL(p)
	require.NoError(t, err)

	session := newCWJobsSession(b, searchURL, []map[string]any{
		{"title": "React Developer", "company": "Acme", "location": "London", "url": "/job/react-developer/acme-job1", "salary": "£50,000", "posted": "1 day ago"},
		{"title": "Ruby Engineer", "company": "Gem", "location": "London", "url": "https://www.cwjobs.co.uk/job/ruby/gem-job2"},
	})
	l := &browsertest.Launcher{New: func() *browsertest.Session { return session }}

	a, err := New(b, p, Options{Launcher: l, WaitTimeout: time.Second, SnapshotDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "cwjobs", a.Name())

	ctx := context.Background()
	require.NoError(t, a.Init(ctx))
	jobs, err := a.FetchJobs(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	require.Len(t, jobs, 2)
	assert.Equal(t, "https://www.cwjobs.co.uk/job/react-developer/acme-job1", jobs[0].URL)
	require.NotNil(t, jobs[0].Salary)
	assert.Equal(t, "£50,000", *jobs[0].Salary)
	assert.Equal(t, []string{b.Selectors.CookieConsent}, session.Clicks)
	require.Len(t, session.Navigations, 1)
	assert.Equal(t, browser.DOMContentLoaded, session.Navigations[0].Wait)
	assert.Equal(t, 1, session.CloseCount)
}

func TestBrowserAdapter_NoResults(t *testing.T) {
	b := testBoard(t, "cwjobs")
	p := config.SearchParams{Keywords: "Cobol", Location: "Leeds"}
	searchURL, _ := b.BuildSearchURL(p)

	s := browsertest.New()
	s.SetPage(searchURL, &browsertest.Page{Elements: map[string]browsertest.Element{
		b.Selectors.NoResults: {Text: "No jobs found"},
	}})
	a := NewBrowserAdapter(b, searchURL, Options{Launcher: &browsertest.Launcher{New: func() *browsertest.Session { return s }}})

	require.NoError(t, a.Init(context.Background()))
	defer a.Close()
	jobs, err := a.FetchJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestBrowserAdapter_NoResultsFromBodyText(t *testing.T) {
	b := testBoard(t, "cwjobs")
	s := browsertest.New()
	s.SetPage("https://example.test/search", &browsertest.Page{BodyText: "Sorry, no jobs found for that search"})
	a := NewBrowserAdapter(b, "https://example.test/search", Options{Launcher: &browsertest.Launcher{New: func() *browsertest.Session { return s }}})

	require.NoError(t, a.Init(context.Background()))
	jobs, err := a.FetchJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestBrowserAdapter_ResultsMissingIsAdapterError(t *testing.T) {
	b := testBoard(t, "cwjobs")
	s := browsertest.New()
	s.SetPage("https://example.test/search", &browsertest.Page{BodyText: "Access denied"})
	dir := t.TempDir()
	a := NewBrowserAdapter(b, "https://example.test/search", Options{
		Launcher:    &browsertest.Launcher{New: func() *browsertest.Session { return s }},
		SnapshotDir: dir,
	})

	require.NoError(t, a.Init(context.Background()))
	_, err := a.FetchJobs(context.Background())
	require.Error(t, err)

	var ae *AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "cwjobs", ae.Source)
	assert.Equal(t, "wait for results", ae.Op)
	assert.ErrorIs(t, err, browser.ErrNotFound)
	require.Len(t, s.Screenshots, 1)
	assert.True(t, strings.HasPrefix(s.Screenshots[0], dir))
}

func TestBrowserAdapter_FetchBeforeInit(t *testing.T) {
	a := NewBrowserAdapter(testBoard(t, "cwjobs"), "https://example.test", Options{})
	_, err := a.FetchJobs(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, a.Close())
}

func TestBrowserAdapter_LaunchFailure(t *testing.T) {
	l := &browsertest.Launcher{Err: errors.New("no chrome")}
	a := NewBrowserAdapter(testBoard(t, "linkedin"), "https://example.test", Options{Launcher: l})
	err := a.Init(context.Background())
	var ae *AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "launch", ae.Op)
}

func TestBrowserAdapter_LoginWithCredentials(t *testing.T) {
	b := testBoard(t, "linkedin")
	s := browsertest.New()
	s.SetPage(b.LoginURL, &browsertest.Page{Elements: map[string]browsertest.Element{
		b.Selectors.Email:    {},
		b.Selectors.Password: {},
		b.Selectors.SignIn:   {},
	}})
	s.SetPage("https://www.linkedin.com/feed/", &browsertest.Page{Elements: map[string]browsertest.Element{
		b.Selectors.MyAccount: {},
	}})
	s.OnClick[b.Selectors.SignIn] = func(s *browsertest.Session) error {
		s.Goto("https://www.linkedin.com/feed/")
		return nil
	}

	a := NewBrowserAdapter(b, "https://www.linkedin.com/jobs/search/", Options{
		Launcher:    &browsertest.Launcher{New: func() *browsertest.Session { return s }},
		Credentials: config.CredentialsConfig{LinkedIn: config.Credentials{Email: "me@example.com", Password: "pw"}},
	})
	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, "me@example.com", s.Typed[b.Selectors.Email])
	assert.Equal(t, "pw", s.Typed[b.Selectors.Password])
}

const indeedPage = `<html><body>
<div id="mosaic-provider-jobcards">
  <div class="job_seen_beacon">
    <h2 class="jobTitle"><a href="/rc/clk?jk=111"><span title="Frontend Developer">Frontend Developer</span></a></h2>
    <span data-testid="company-name">Acme</span>
    <div data-testid="text-location">London</div>
    <div data-testid="attribute_snippet_testid">£45,000 a year</div>
  </div>
  <div class="job_seen_beacon">
    <h2 class="jobTitle"><a href="/rc/clk?jk=222"><span title="Java Engineer">Java Engineer</span></a></h2>
    <span data-testid="company-name">Beans</span>
  </div>
</div>
</body></html>`

func TestCollyAdapter_FetchJobs(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "en-GB,en;q=0.9", r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(indeedPage))
	}))
	defer srv.Close()

	b := testBoard(t, "indeed")
	a := NewCollyAdapter(b, srv.URL+"/jobs?q=frontend&l=London", Options{})
	require.NoError(t, a.Init(context.Background()))
	defer a.Close()

	jobs, err := a.FetchJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Frontend Developer", jobs[0].Title)
	assert.Equal(t, "Acme", jobs[0].Company)
	assert.Equal(t, "London", jobs[0].Location)
	assert.Equal(t, srv.URL+"/rc/clk?jk=111", jobs[0].URL)
	require.NotNil(t, jobs[0].Salary)
	assert.Equal(t, "£45,000 a year", *jobs[0].Salary)
	assert.Equal(t, "Java Engineer", jobs[1].Title)

	_, err = a.FetchJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
}

func TestCollyAdapter_HTTPErrorIsAdapterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewCollyAdapter(testBoard(t, "indeed"), srv.URL+"/jobs", Options{})
	require.NoError(t, a.Init(context.Background()))
	_, err := a.FetchJobs(context.Background())
	var ae *AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "indeed", ae.Source)
}

func TestNewForBoards(t *testing.T) {
	cat, err := config.LoadBoards("")
	require.NoError(t, err)
	l := &browsertest.Launcher{}
	adapters, err := NewForBoards(cat, []string{"cwjobs", " ", "indeed"}, config.SearchParams{Keywords: "react", Location: "London"}, Options{Launcher: l})
	require.NoError(t, err)
	require.Len(t, adapters, 2)
	assert.IsType(t, &BrowserAdapter{}, adapters[0])
	assert.IsType(t, &CollyAdapter{}, adapters[1])

	_, err = NewForBoards(cat, []string{"monster"}, config.SearchParams{}, Options{Launcher: l})
	assert.ErrorIs(t, err, config.ErrUnknownBoard)

	_, err = New(testBoard(t, "cwjobs"), config.SearchParams{Keywords: "x"}, Options{})
	assert.Error(t, err)
}
