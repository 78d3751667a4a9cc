package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmrb/llm"
	"github.com/llmrb/llm/mock"
)

// echoProvider returns a provider whose Complete replies with a single
// assistant message containing the given text.
func echoProvider(text string) *mock.Provider {
	return &mock.Provider{
		CompleteFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			return &llm.Response{
				Messages: []llm.Message{llm.NewMessage(llm.RoleAssistant, text)},
			}, nil
		},
	}
}

func TestBuffer_EnqueueIsLazy(t *testing.T) {
	t.Parallel()
	provider := echoProvider("hi")
	buf := llm.NewBuffer(provider)

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "hello"), llm.Params{}, llm.ModeCompletion)
	buf.Enqueue(llm.NewMessage(llm.RoleUser, "more"), llm.Params{}, llm.ModeCompletion)

	assert.Equal(t, 0, provider.CompleteCalls)
	assert.Equal(t, 2, buf.PendingLen())
}

func TestBuffer_ReadFlushesBacklogInOneCall(t *testing.T) {
	t.Parallel()
	var got llm.Request
	provider := &mock.Provider{
		CompleteFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			got = req
			return &llm.Response{
				Messages: []llm.Message{llm.NewMessage(llm.RoleAssistant, "sure")},
			}, nil
		},
	}
	buf := llm.NewBuffer(provider)

	buf.Enqueue(llm.NewMessage(llm.RoleSystem, "be brief"), llm.Params{}, llm.ModeCompletion)
	buf.Enqueue(llm.NewMessage(llm.RoleUser, "context"), llm.Params{}, llm.ModeCompletion)
	buf.Enqueue(llm.NewMessage(llm.RoleUser, "question"), llm.Params{Model: "m1"}, llm.ModeCompletion)

	msgs, err := buf.Messages(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, provider.CompleteCalls)
	// All pending turns travel in the one request, in enqueue order, with
	// the driving turn last.
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "be brief", got.Messages[0].Text())
	assert.Equal(t, "context", got.Messages[1].Text())
	assert.Equal(t, "question", got.Messages[2].Text())
	// The driving entry's params decide the call shape.
	assert.Equal(t, "m1", got.Model)

	// Completed log: pending turns in order, then the reply.
	require.Len(t, msgs, 4)
	assert.Equal(t, "sure", msgs[3].Text())
	assert.Equal(t, 0, buf.PendingLen())
}

func TestBuffer_RepeatedReadsDoNotRecall(t *testing.T) {
	t.Parallel()
	provider := echoProvider("hi")
	buf := llm.NewBuffer(provider)
	buf.Enqueue(llm.NewMessage(llm.RoleUser, "hello"), llm.Params{}, llm.ModeCompletion)

	ctx := context.Background()
	first, err := buf.Messages(ctx)
	require.NoError(t, err)
	second, err := buf.Messages(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.CompleteCalls)
	assert.Equal(t, first, second)
}

func TestBuffer_CompletionModeResendsCompletedLog(t *testing.T) {
	t.Parallel()
	var second llm.Request
	call := 0
	provider := &mock.Provider{
		CompleteFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			call++
			if call == 2 {
				second = req
			}
			return &llm.Response{
				Messages: []llm.Message{llm.NewMessage(llm.RoleAssistant, "reply")},
			}, nil
		},
	}
	buf := llm.NewBuffer(provider)
	ctx := context.Background()

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "first"), llm.Params{}, llm.ModeCompletion)
	_, err := buf.Messages(ctx)
	require.NoError(t, err)

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "second"), llm.Params{}, llm.ModeCompletion)
	_, err = buf.Messages(ctx)
	require.NoError(t, err)

	require.Len(t, second.Messages, 3)
	assert.Equal(t, "first", second.Messages[0].Text())
	assert.Equal(t, "reply", second.Messages[1].Text())
	assert.Equal(t, "second", second.Messages[2].Text())
}

func TestBuffer_ResponseModeThreadsResponseID(t *testing.T) {
	t.Parallel()
	var reqs []llm.Request
	provider := &mock.Provider{
		RespondFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			reqs = append(reqs, req)
			return &llm.Response{
				ID:       "resp_" + string(rune('a'+len(reqs)-1)),
				Messages: []llm.Message{llm.NewMessage(llm.RoleAssistant, "ok")},
			}, nil
		},
	}
	buf := llm.NewBuffer(provider)
	ctx := context.Background()

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "one"), llm.Params{}, llm.ModeResponse)
	_, err := buf.Messages(ctx)
	require.NoError(t, err)

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "two"), llm.Params{}, llm.ModeResponse)
	_, err = buf.Messages(ctx)
	require.NoError(t, err)

	require.Len(t, reqs, 2)
	assert.Equal(t, "", reqs[0].PreviousResponseID)
	assert.Equal(t, "resp_a", reqs[1].PreviousResponseID)
	assert.Equal(t, "resp_b", buf.LastResponseID())

	// Response mode sends only the pending turns, not the completed log.
	require.Len(t, reqs[1].Messages, 1)
	assert.Equal(t, "two", reqs[1].Messages[0].Text())
}

func TestBuffer_UnknownModeFailsLoud(t *testing.T) {
	t.Parallel()
	buf := llm.NewBuffer(&mock.Provider{})
	buf.Enqueue(llm.NewMessage(llm.RoleUser, "x"), llm.Params{}, llm.Mode("telepathy"))

	err := buf.Flush(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrUnknownMode)
}

func TestBuffer_MixedModesRejected(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{}
	buf := llm.NewBuffer(provider)

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "a"), llm.Params{}, llm.ModeCompletion)
	buf.Enqueue(llm.NewMessage(llm.RoleUser, "b"), llm.Params{}, llm.ModeResponse)

	err := buf.Flush(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrMixedBatch)
	assert.Equal(t, 0, provider.CompleteCalls)
	assert.Equal(t, 0, provider.RespondCalls)
}

func TestBuffer_FailedFlushLeavesCompletedIntact(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	call := 0
	provider := &mock.Provider{
		CompleteFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			call++
			if call > 1 {
				return nil, boom
			}
			return &llm.Response{
				Messages: []llm.Message{llm.NewMessage(llm.RoleAssistant, "first reply")},
			}, nil
		},
	}
	buf := llm.NewBuffer(provider)
	ctx := context.Background()

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "first"), llm.Params{}, llm.ModeCompletion)
	before, err := buf.Messages(ctx)
	require.NoError(t, err)

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "second"), llm.Params{}, llm.ModeCompletion)
	err = buf.Flush(ctx)
	require.ErrorIs(t, err, boom)

	// The completed log is exactly as before the failed attempt. At does
	// not flush for indexes already present, so this reads the log as-is.
	require.Len(t, before, 2)
	msg, ok, err := buf.At(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first reply", msg.Text())
}

func TestBuffer_EmptyFlushIsNoOp(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{}
	buf := llm.NewBuffer(provider)

	require.NoError(t, buf.Flush(context.Background()))
	assert.Equal(t, 0, provider.CompleteCalls)
}

func TestBuffer_At(t *testing.T) {
	t.Parallel()
	buf := llm.NewBuffer(echoProvider("reply"))
	ctx := context.Background()

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "q"), llm.Params{}, llm.ModeCompletion)

	msg, ok, err := buf.At(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "reply", msg.Text())

	_, ok, err = buf.At(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuffer_AtNegativeIndexDoesNotFlush(t *testing.T) {
	t.Parallel()
	provider := echoProvider("reply")
	buf := llm.NewBuffer(provider)
	ctx := context.Background()

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "q"), llm.Params{}, llm.ModeCompletion)

	_, ok, err := buf.At(ctx, -1)
	require.NoError(t, err)
	assert.False(t, ok)
	// The index can never be satisfied, so the backlog stays untouched.
	assert.Equal(t, 0, provider.CompleteCalls)
	assert.Equal(t, 1, buf.PendingLen())
}

func TestBuffer_Find(t *testing.T) {
	t.Parallel()
	buf := llm.NewBuffer(echoProvider("the answer"))
	ctx := context.Background()

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "q"), llm.Params{}, llm.ModeCompletion)

	msg, ok, err := buf.Find(ctx, func(m llm.Message) bool {
		return m.Role == llm.RoleAssistant
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "the answer", msg.Text())
}

func TestBuffer_Last(t *testing.T) {
	t.Parallel()
	buf := llm.NewBuffer(echoProvider("latest"))
	ctx := context.Background()

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "q1"), llm.Params{}, llm.ModeCompletion)
	_, err := buf.Messages(ctx)
	require.NoError(t, err)
	buf.Enqueue(llm.NewMessage(llm.RoleUser, "q2"), llm.Params{}, llm.ModeCompletion)

	msg, ok, err := buf.Last(ctx, llm.RoleUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "q2", msg.Text())

	_, ok, err = buf.Last(ctx, llm.RoleTool)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuffer_UnreadAdvancesCursor(t *testing.T) {
	t.Parallel()
	buf := llm.NewBuffer(echoProvider("r"))
	ctx := context.Background()

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "q1"), llm.Params{}, llm.ModeCompletion)
	first, err := buf.Unread(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	again, err := buf.Unread(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	buf.Enqueue(llm.NewMessage(llm.RoleUser, "q2"), llm.Params{}, llm.ModeCompletion)
	next, err := buf.Unread(ctx)
	require.NoError(t, err)
	assert.Len(t, next, 2)
	assert.Equal(t, "q2", next[0].Text())
}

func TestBuffer_RestoreSeedsCompletedLog(t *testing.T) {
	t.Parallel()
	var got llm.Request
	provider := &mock.Provider{
		CompleteFn: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			got = req
			return &llm.Response{
				Messages: []llm.Message{llm.NewMessage(llm.RoleAssistant, "ok")},
			}, nil
		},
	}
	buf := llm.NewBuffer(provider)
	ctx := context.Background()

	buf.Restore([]llm.Message{
		llm.NewMessage(llm.RoleUser, "earlier"),
		llm.NewMessage(llm.RoleAssistant, "earlier reply"),
	})
	buf.Enqueue(llm.NewMessage(llm.RoleUser, "now"), llm.Params{}, llm.ModeCompletion)

	unread, err := buf.Unread(ctx)
	require.NoError(t, err)

	// Restored history travels as context but is not re-surfaced as unread.
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "earlier", got.Messages[0].Text())
	require.Len(t, unread, 2)
	assert.Equal(t, "now", unread[0].Text())
}
