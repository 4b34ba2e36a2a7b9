package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := New()
		assert.Len(t, s, 26)
		assert.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
	}
}

func TestNew_Sortable(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}
	assert.True(t, sort.StringsAreSorted(ids), "ids generated in sequence should sort in sequence")
}

func TestParse(t *testing.T) {
	before := time.Now().UTC().Truncate(time.Millisecond)
	s := New()
	ts, err := Parse(s)
	require.NoError(t, err)
	assert.False(t, ts.Before(before), "embedded time %s before generation time %s", ts, before)
	assert.True(t, time.Since(ts) < time.Minute)
}

func TestParse_Errors(t *testing.T) {
	for _, bad := range []string{"", "not-an-id", "0000000000000000000000000!"} {
		_, err := Parse(bad)
		assert.Error(t, err, "expected error for %q", bad)
		assert.False(t, Valid(bad))
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(New()))
}
