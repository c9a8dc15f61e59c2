package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	lastModel string
	lastCfg   *genai.GenerateContentConfig
	lastText  string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	f.lastModel = model
	f.lastCfg = cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.lastText = contents[0].Parts[0].Text
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return nil, nil
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGenerateJSON_JoinsPartsAndStripsFences(t *testing.T) {
	m := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("```json", `{"score": 0.8}`, "```")}}
	g := newGenerator(m, "", 1)

	out, err := g.GenerateJSON(context.Background(), "  rate this  ")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 0.8}`, out)
	assert.Equal(t, defaultModel, m.lastModel)
	assert.Equal(t, "rate this", m.lastText)
	require.NotNil(t, m.lastCfg)
	assert.Equal(t, "application/json", m.lastCfg.ResponseMIMEType)
}

func TestGenerateJSON_RetriesThenFails(t *testing.T) {
	boom := errors.New("503 unavailable")
	m := &fakeModels{errs: []error{boom, boom, boom}}
	g := newGenerator(m, "gemini-test", 3)
	g.backoff = time.Millisecond

	_, err := g.GenerateJSON(context.Background(), "prompt")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, m.calls)
}

func TestGenerateJSON_RecoversOnSecondAttempt(t *testing.T) {
	m := &fakeModels{
		errs:      []error{errors.New("timeout"), nil},
		responses: []*genai.GenerateContentResponse{nil, textResponse(`{"ok":true}`)},
	}
	g := newGenerator(m, "gemini-test", 2)
	g.backoff = time.Millisecond

	out, err := g.GenerateJSON(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "gemini-test", g.Model())
}

func TestGenerateJSON_EmptyResponse(t *testing.T) {
	m := &fakeModels{responses: []*genai.GenerateContentResponse{textResponse("  ")}}
	_, err := newGenerator(m, "", 1).GenerateJSON(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = newGenerator(m, "", 1).GenerateJSON(context.Background(), " ")
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                        `{"a":1}`,
		"```json\n{\"a\":1}\n```":        `{"a":1}`,
		"```\n{\"a\":1}```":              `{"a":1}`,
		"Here you go: {\"a\":1} thanks.": `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractJSON(in), in)
	}
}

func TestNewGenerator_RequiresKey(t *testing.T) {
	_, err := NewGenerator(context.Background(), " ", "", 0)
	assert.Error(t, err)
}
