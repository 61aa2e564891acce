package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/vigil/resp"
	"github.com/arloliu/vigil/types"
)

type recordingExecutor struct {
	calls    [][]any
	deadline time.Time
	reply    resp.Reply
	err      error
}

func (r *recordingExecutor) Execute(ctx context.Context, name string, args ...any) (resp.Reply, error) {
	r.calls = append(r.calls, append([]any{name}, args...))
	r.deadline, _ = ctx.Deadline()

	return r.reply, r.err
}

func TestDirectCallForwardsVerbatim(t *testing.T) {
	exec := &recordingExecutor{reply: resp.StatusReply("OK")}

	reply, err := NewDirectCall().Call(t.Context(), exec, "SET", "k", "v")
	require.NoError(t, err)
	require.True(t, reply.OK())
	require.Equal(t, [][]any{{"SET", "k", "v"}}, exec.calls)
}

func TestDirectCallPropagatesErrors(t *testing.T) {
	readOnly := &types.CommandError{Message: "READONLY You can't write against a read only replica."}
	exec := &recordingExecutor{err: readOnly}

	_, err := NewDirectCall().Call(t.Context(), exec, "SET", "k", "v")
	require.ErrorIs(t, err, types.ErrReadOnly)
}

func TestCallFunc(t *testing.T) {
	exec := &recordingExecutor{reply: resp.IntegerReply("1")}
	var seen string

	strategy := CallFunc(func(ctx context.Context, target resp.Executor, name string, args ...any) (resp.Reply, error) {
		seen = name
		if name == "FLUSHALL" {
			return resp.Reply{}, errors.New("refused")
		}

		return target.Execute(ctx, name, args...)
	})

	reply, err := strategy.Call(t.Context(), exec, "DEL", "k")
	require.NoError(t, err)
	n, err := reply.Int64()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, "DEL", seen)

	_, err = strategy.Call(t.Context(), exec, "FLUSHALL")
	require.EqualError(t, err, "refused")
	require.Len(t, exec.calls, 1)
}

func TestTimeoutCall(t *testing.T) {
	t.Run("applies deadline", func(t *testing.T) {
		exec := &recordingExecutor{reply: resp.StatusReply("PONG")}

		_, err := NewTimeoutCall(time.Second, nil).Call(t.Context(), exec, "PING")
		require.NoError(t, err)
		require.WithinDuration(t, time.Now().Add(time.Second), exec.deadline, 500*time.Millisecond)
	})

	t.Run("earlier context deadline wins", func(t *testing.T) {
		exec := &recordingExecutor{reply: resp.StatusReply("PONG")}
		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()
		want, _ := ctx.Deadline()

		_, err := NewTimeoutCall(time.Hour, nil).Call(ctx, exec, "PING")
		require.NoError(t, err)
		require.Equal(t, want, exec.deadline)
	})

	t.Run("zero disables", func(t *testing.T) {
		exec := &recordingExecutor{reply: resp.StatusReply("PONG")}

		_, err := NewTimeoutCall(0, NewDirectCall()).Call(context.Background(), exec, "PING")
		require.NoError(t, err)
		require.True(t, exec.deadline.IsZero())
	})
}
