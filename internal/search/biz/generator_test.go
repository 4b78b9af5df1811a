package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-search/internal/model"
	"github.com/kart-io/sentinel-search/internal/search/metrics"
)

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want []string
	}{
		{
			name: "去掉编号和符号",
			in:   "1. What is Go?\n- \"Why Rust?\"\n\n* 'How to learn'\n4. Extra question",
			n:    3,
			want: []string{"What is Go?", "Why Rust?", "How to learn"},
		},
		{
			name: "只剩符号的行被丢弃",
			in:   "1.\n--\n   \nReal question",
			n:    3,
			want: []string{"Real question"},
		},
		{
			name: "空输出",
			in:   "",
			n:    3,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSuggestions(tt.in, tt.n))
		})
	}
}

func TestGenerator_Suggestions(t *testing.T) {
	p := &fakePlanner{suggestions: "1. a question\n2. b question\n3. c question\n4. d question"}
	g := NewGenerator(&fakeAnswer{}, p, 0, metrics.New())

	assert.Equal(t, []string{"a question", "b question", "c question"}, g.Suggestions(context.Background(), "q"))
}

func TestGenerator_SuggestionsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &fakePlanner{release: make(chan struct{})}
	g := NewGenerator(&fakeAnswer{}, p, 3, metrics.New())

	got := g.Suggestions(ctx, "q")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuildAnswerPrompt(t *testing.T) {
	sources := []model.Source{
		{Title: "Python", URL: "https://a.example/py", Domain: "a.example"},
		{URL: "https://b.example/x", Domain: "b.example"},
		{URL: "https://c.example/y"},
	}
	prompt := BuildAnswerPrompt("what is python", "[Source 1 - a.example]\ntext\n", sources)

	assert.Contains(t, prompt, "You are an AI search assistant.")
	assert.Contains(t, prompt, "User Question: what is python")
	assert.Contains(t, prompt, "Context from web sources:\n[Source 1 - a.example]\ntext\n")
	assert.Contains(t, prompt, "- Python: https://a.example/py\n- b.example: https://b.example/x\n- https://c.example/y: https://c.example/y")
	assert.Contains(t, prompt, "2. Cite sources using [1], [2], etc. when making specific claims")
	assert.True(t, len(prompt) > 0 && prompt[len(prompt)-len("Answer:"):] == "Answer:")
}

func TestGenerator_Answer(t *testing.T) {
	a := &fakeAnswer{answer: "42"}
	g := NewGenerator(a, &fakePlanner{}, 3, metrics.New())

	out, err := g.Answer(context.Background(), "q", "ctx", nil)
	require.NoError(t, err)
	assert.Equal(t, "42", out)
	require.Len(t, a.prompts, 1)
	assert.Contains(t, a.prompts[0], "User Question: q")

	a.err = errors.New("model not found")
	_, err = g.Answer(context.Background(), "q", "ctx", nil)
	assert.EqualError(t, err, "model not found")
}
