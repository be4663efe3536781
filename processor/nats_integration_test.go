// ABOUTME: Integration test for the NATS job queue
// ABOUTME: Enabled when CALLBRIDGE_TEST_NATS_URL points at a reachable server
package processor

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSQueueDelivers(t *testing.T) {
	url := strings.TrimSpace(os.Getenv("CALLBRIDGE_TEST_NATS_URL"))
	if url == "" {
		t.Skip("integration test skipped: CALLBRIDGE_TEST_NATS_URL is not set")
	}
	nc, err := nats.Connect(url, nats.Timeout(3*time.Second))
	if err != nil {
		t.Skipf("integration test skipped: nats unreachable: %v", err)
	}
	defer nc.Close()

	subject := "callbridge.test." + strings.ToLower(ulid.Make().String())
	q := NewNATSQueue(nc, subject, "", nil)
	defer func() { _ = q.Close() }()

	seen := make(chan Job, 1)
	ctx := context.Background()
	require.NoError(t, q.Start(ctx, func(_ context.Context, job Job) { seen <- job }))
	assert.Error(t, q.Start(ctx, func(context.Context, Job) {}))
	require.NoError(t, nc.Flush())

	require.NoError(t, q.Enqueue(ctx, Job{TaskID: "t1", Payload: Payload{UserID: "u1", Stage: StageAfter}}))
	select {
	case job := <-seen:
		assert.Equal(t, "t1", job.TaskID)
		assert.Equal(t, "u1", job.Payload.UserID)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not delivered")
	}
}
