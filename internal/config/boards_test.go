package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogue(t *testing.T) {
	c, err := LoadBoards("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cwjobs", "linkedin", "indeed"}, c.Names())

	cw, err := c.Get("CWJobs")
	require.NoError(t, err)
	assert.Equal(t, "#JobAdContent", cw.Selectors.Content)
	assert.True(t, cw.RequiresLogin)

	_, err = c.Get("monster")
	assert.ErrorIs(t, err, ErrUnknownBoard)
}

func TestBuildSearchURL(t *testing.T) {
	c, err := LoadBoards("")
	require.NoError(t, err)

	p := SearchParams{Keywords: "Frontend  Developer", Location: "London, UK", Radius: 10}

	tests := []struct {
		board string
		want  string
	}{
		{"cwjobs", "https://www.cwjobs.co.uk/jobs/frontend-developer/in-london?radius=10"},
		{"linkedin", "https://www.linkedin.com/jobs/search/?keywords=Frontend++Developer&location=London%2C+UK"},
		{"indeed", "https://uk.indeed.com/jobs?q=Frontend++Developer&l=London%2C+UK"},
	}
	for _, tt := range tests {
		t.Run(tt.board, func(t *testing.T) {
			b, err := c.Get(tt.board)
			require.NoError(t, err)
			got, err := b.BuildSearchURL(p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoardOwnsAndUnavailable(t *testing.T) {
	c, err := LoadBoards("")
	require.NoError(t, err)

	b, ok := c.ForURL("https://www.cwjobs.co.uk/job/frontend-developer/acme-job123")
	require.True(t, ok)
	assert.Equal(t, "cwjobs", b.Name)

	_, ok = c.ForURL("https://example.com/job/1")
	assert.False(t, ok)
	_, ok = c.ForURL("not a url")
	assert.False(t, ok)

	assert.True(t, b.IsUnavailable("Sorry, This Job Has Expired."))
	assert.False(t, b.IsUnavailable("Apply now"))
}

func TestParseBoardsValidation(t *testing.T) {
	_, err := ParseBoards([]byte("boards:\n  - name: a\n  - name: A\n"))
	assert.ErrorContains(t, err, "duplicate board")

	_, err = ParseBoards([]byte("boards:\n  - name: a\n    kind: ftp\n"))
	assert.ErrorContains(t, err, "unsupported kind")

	c, err := ParseBoards([]byte("boards:\n  - name: Mine\n"))
	require.NoError(t, err)
	assert.Equal(t, BoardKindBrowser, c.Boards[0].Kind)
	assert.Equal(t, "mine", c.Boards[0].Name)
}
