package main

import (
	"flag"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFlags(t *testing.T) {
	var ff filterFlags
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	ff.register(fs)

	require.NoError(t, fs.Parse([]string{"-db", "Finance 2026", "-exclude", "rent, travel,", "-start", "2026-01-01", "-end", "2026-03-31"}))

	f, err := ff.filter()
	require.NoError(t, err)
	assert.Equal(t, "Finance 2026", ff.db)
	assert.True(t, f.Excluded("rent"))
	assert.True(t, f.Excluded("travel"))
	assert.False(t, f.Excluded(""))
	require.NotNil(t, f.Start)
	assert.Equal(t, time.March, f.End.Month())

	tags := excludedTags(f.ExcludedTags)
	sort.Strings(tags)
	assert.Equal(t, []string{"rent", "travel"}, tags)
}

func TestFilterFlags_Invalid(t *testing.T) {
	ff := filterFlags{start: "01/02/2026"}
	_, err := ff.filter()
	assert.ErrorContains(t, err, "invalid start date")
}

func TestFilterFlags_Empty(t *testing.T) {
	var ff filterFlags
	f, err := ff.filter()
	require.NoError(t, err)
	assert.Nil(t, f.Start)
	assert.Nil(t, f.End)
	assert.Empty(t, excludedTags(f.ExcludedTags))
}
