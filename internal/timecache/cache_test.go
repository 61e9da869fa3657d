package timecache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemoizes(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	got, err := c.Parse("2019-04-12T09:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 4, 12, 9, 30, 0, 0, time.UTC), got)

	again, err := c.Parse("2019-04-12T09:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, got, again)

	parsed, _ := c.Len()
	assert.Equal(t, 1, parsed)
}

func TestParseInvalid(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	_, err = c.Parse("not-a-timestamp")
	assert.Error(t, err)

	parsed, _ := c.Len()
	assert.Equal(t, 0, parsed, "failed parses are not cached")
}

func TestFormatKeyedByInputAndLayout(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	short, err := c.Format("2019-04-12T09:30:00Z", "Jan 2")
	require.NoError(t, err)
	assert.Equal(t, "Apr 12", short)

	long, err := c.Format("2019-04-12T09:30:00Z", "January 2, 2006 15:04 MST")
	require.NoError(t, err)
	assert.Equal(t, "April 12, 2019 09:30 UTC", long)

	_, formatted := c.Len()
	assert.Equal(t, 2, formatted, "same input with different layouts caches separately")
}

func TestCapacityIsBounded(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		iso := fmt.Sprintf("2019-04-%02dT00:00:00Z", i%28+1)
		_, err := c.Parse(iso)
		require.NoError(t, err)
	}

	parsed, _ := c.Len()
	assert.LessOrEqual(t, parsed, 4, "LRU eviction keeps the cache at capacity")
}
