package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is Python?", "what is python?"},
		{"  WHAT is python?\t\n", "what is python?"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuery(tt.in))
	}
	assert.Equal(t, NewQuery(" Go ").Normalized, NewQuery("go").Normalized)
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "Python", Source{Title: "Python", URL: "u", Domain: "d"}.Label())
	assert.Equal(t, "d", Source{URL: "u", Domain: "d"}.Label())
	assert.Equal(t, "u", Source{URL: "u"}.Label())
}

func TestSearchRequestCacheEnabled(t *testing.T) {
	off := false
	assert.True(t, (&SearchRequest{}).CacheEnabled())
	assert.False(t, (&SearchRequest{UseCache: &off}).CacheEnabled())
}

func TestEmptiness(t *testing.T) {
	var r *QueryResult
	assert.True(t, r.IsEmpty())
	assert.True(t, (&QueryResult{}).IsEmpty())
	assert.False(t, (&QueryResult{Answer: "a"}).IsEmpty())

	var b *SearchBundle
	assert.True(t, b.IsEmpty())
	assert.False(t, (&SearchBundle{SearchResults: []SearchResult{{URL: "u"}}}).IsEmpty())
}

func TestPrimaryQuery(t *testing.T) {
	assert.Equal(t, "", (&QueryAnalysis{}).PrimaryQuery())
	assert.Equal(t, "a", (&QueryAnalysis{SearchQueries: []string{"a", "b"}}).PrimaryQuery())
}
