package application

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses() {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("withdrawn")
	assert.Error(t, err)
}

func TestMetaMerge(t *testing.T) {
	base := Meta{MetaNote: "seen", MetaScore: 0.4}
	merged := base.Merge(Meta{MetaScore: 0.9, MetaError: "timeout"})

	assert.Equal(t, 0.9, merged[MetaScore])
	assert.Equal(t, "seen", merged.String(MetaNote))
	assert.Equal(t, 0.4, base[MetaScore])

	b, err := json.Marshal(Meta(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))
}
