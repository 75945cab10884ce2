package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deadlineClient struct {
	sawDeadline bool
}

func (d *deadlineClient) Complete(ctx context.Context, req Request) (Response, error) {
	_, d.sawDeadline = ctx.Deadline()
	return Response{Text: "ok"}, nil
}

func TestTimeoutClientSetsDeadline(t *testing.T) {
	inner := &deadlineClient{}
	client := NewTimeoutClient(inner, 5*time.Second)

	resp, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.True(t, inner.sawDeadline)
}

func TestTimeoutClientZeroLeavesUnbounded(t *testing.T) {
	inner := &deadlineClient{}
	client := NewTimeoutClient(inner, 0)

	_, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, inner.sawDeadline)
}

type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, req Request) (Response, error) {
	<-ctx.Done()
	return Response{}, ctx.Err()
}

func TestTimeoutClientExpires(t *testing.T) {
	client := NewTimeoutClient(blockingClient{}, 10*time.Millisecond)

	_, err := client.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
