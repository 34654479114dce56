package voidhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLPathComponentsDropsEmptySegments(t *testing.T) {
	u := &URL{Path: "/a//b/"}
	assert.Equal(t, []string{"a", "b"}, u.PathComponents())
}

func TestQueryParsesDuplicateKeysAndBareFlags(t *testing.T) {
	u := &URL{}
	u.SetRawQuery("a=1&b&a=2&c=")
	q := u.Query()

	assert.True(t, q.Has("b"))
	v, ok := q.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	assert.True(t, q.HasValue("a", "1"))
	assert.True(t, q.HasValue("a", "2"))

	all := q.All()
	assert.Len(t, all, 4)
}

func TestQueryUnescapesPercentAndPlus(t *testing.T) {
	u := &URL{}
	u.SetRawQuery("name=John+Doe&tag=a%2Bb")
	q := u.Query()

	v, ok := q.Get("name")
	assert.True(t, ok)
	assert.Equal(t, "John Doe", v)

	v, ok = q.Get("tag")
	assert.True(t, ok)
	assert.Equal(t, "a+b", v)
}

func TestParseTargetSplitsPathAndQuery(t *testing.T) {
	path, query := parseTarget("/a/b?x=1&y=2")
	assert.Equal(t, "/a/b", path)
	assert.Equal(t, "x=1&y=2", query)

	path, query = parseTarget("/no-query")
	assert.Equal(t, "/no-query", path)
	assert.Equal(t, "", query)
}
