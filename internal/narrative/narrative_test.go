package narrative

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-bot/internal/llm"
)

type fakeClient struct {
	content string
	err     error
	delay   time.Duration
	got     []llm.Message
}

func (f *fakeClient) Generate(ctx context.Context, msgs []llm.Message) (llm.Response, error) {
	f.got = msgs
	if f.delay > 0 {
		time.Sleep(f.delay) // ignores ctx on purpose
	}
	return llm.Response{Content: f.content}, f.err
}

func TestGenerate_TrimsOutput(t *testing.T) {
	c := &fakeClient{content: "  Finally, wretch.\n"}
	g := New(c, time.Second)
	out, err := g.Generate(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Finally, wretch.", out)
	require.Len(t, c.got, 2)
	assert.Equal(t, "sys", c.got[0].Content)
}

func TestGenerate_EmptyIsError(t *testing.T) {
	g := New(&fakeClient{content: "   "}, time.Second)
	_, err := g.Generate(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerate_TimeoutEvenIfClientIgnoresContext(t *testing.T) {
	g := New(&fakeClient{content: "late", delay: 500 * time.Millisecond}, 20*time.Millisecond)
	start := time.Now()
	_, err := g.Generate(context.Background(), "", "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestRespond_FallsBack(t *testing.T) {
	g := New(&fakeClient{err: errors.New("quota")}, time.Second)
	assert.Equal(t, FallbackReply, g.Respond(context.Background(), "hello"))

	assert.Equal(t, FallbackReply, New(nil, time.Second).Respond(context.Background(), "hello"))

	var nilGen *Generator
	assert.Equal(t, FallbackReply, nilGen.Respond(context.Background(), "hello"))
}

func TestComment_PassesCategory(t *testing.T) {
	c := &fakeClient{content: "About time."}
	out, err := New(c, time.Second).Comment(context.Background(), "win", "ran 5k")
	require.NoError(t, err)
	assert.Equal(t, "About time.", out)
	assert.Contains(t, c.got[1].Content, "Type: win")
	assert.Contains(t, c.got[1].Content, "ran 5k")
}

func TestExtractJSON(t *testing.T) {
	s, ok := ExtractJSON("Here you go:\n```json\n{\"a\":{\"b\":1}}\n```")
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":1}}`, s)

	_, ok = ExtractJSON("no json here")
	assert.False(t, ok)

	_, ok = ExtractJSON("} backwards {")
	assert.False(t, ok)
}
