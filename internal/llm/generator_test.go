package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (s *stubGenerator) Generate(_ context.Context, _ Request) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestFallback(t *testing.T) {
	failing := &stubGenerator{err: errors.New("quota")}
	ok := &stubGenerator{text: "essay"}

	text, err := Fallback{failing, ok}.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "essay", text)
	assert.Equal(t, 1, failing.calls)

	_, err = Fallback{failing, &stubGenerator{err: errors.New("down")}}.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.Contains(t, err.Error(), "down")

	_, err = Fallback{}.Generate(context.Background(), Request{})
	assert.Error(t, err)
}

func TestThrottled_WaitsForToken(t *testing.T) {
	next := &stubGenerator{text: "ok"}
	th := NewThrottled(next, 0.001, 1)

	_, err := th.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = th.Generate(ctx, Request{})
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestEssayPrompt(t *testing.T) {
	req := EssayPrompt("Stanford", "Describe a challenge.", map[string]string{
		"challenge": "Moving countries at 14",
		"growth":    "Learned a new language",
		"empty":     "   ",
	}, 650)

	assert.Contains(t, req.SystemPrompt, "650 words")
	assert.Contains(t, req.UserPrompt, "Stanford")
	assert.Contains(t, req.UserPrompt, `PROMPT: "Describe a challenge."`)
	assert.Contains(t, req.UserPrompt, "CHALLENGE: Moving countries at 14")
	assert.NotContains(t, req.UserPrompt, "EMPTY")
	assert.Less(t, strings.Index(req.UserPrompt, "CHALLENGE"), strings.Index(req.UserPrompt, "GROWTH"))
	assert.Equal(t, 975, req.MaxTokens)

	again := EssayPrompt("Stanford", "Describe a challenge.", map[string]string{
		"growth":    "Learned a new language",
		"challenge": "Moving countries at 14",
	}, 650)
	assert.Equal(t, req.UserPrompt, again.UserPrompt)
}

func TestImprovePrompt(t *testing.T) {
	req := ImprovePrompt("original text", "shorter intro")
	assert.Contains(t, req.UserPrompt, "ORIGINAL ESSAY:\noriginal text")
	assert.Contains(t, req.UserPrompt, "FEEDBACK:\nshorter intro")
	assert.Equal(t, 2000, req.MaxTokens)
}

func TestResponseText(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello "), genai.Text("world")}},
	}}}
	assert.Equal(t, "Hello world", responseText(resp))
}
