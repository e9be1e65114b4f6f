package indexdb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viceroy.ai/internal/sim/ministry"
)

func TestXAddArgs(t *testing.T) {
	args, err := xaddArgs("viceroy:s1:events", 500, diversionEvent("s1", ministry.Diversion{Seq: 3, MinisterID: "M2", Amount: 12}))
	require.NoError(t, err)
	assert.Equal(t, "viceroy:s1:events", args.Stream)
	assert.Equal(t, int64(500), args.MaxLen)
	assert.True(t, args.Approx)

	vals, ok := args.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "diversion", vals["kind"])
	assert.Equal(t, "s1", vals["session_id"])
	var d ministry.Diversion
	require.NoError(t, json.Unmarshal([]byte(vals["payload"].(string)), &d))
	assert.Equal(t, 12, d.Amount)
	assert.Equal(t, "M2", d.MinisterID)
}

func TestOpenRedis_Validates(t *testing.T) {
	_, err := OpenRedis(RedisConfig{URL: "redis://127.0.0.1:6379/0"})
	assert.Error(t, err, "session id required")
	_, err = OpenRedis(RedisConfig{URL: "http://nope", SessionID: "s"})
	assert.Error(t, err, "bad scheme")

	d, err := OpenRedis(RedisConfig{URL: "redis://127.0.0.1:6379/0", Prefix: "colony:", SessionID: "s9"})
	require.NoError(t, err)
	assert.Equal(t, "colony:s9:events", d.Stream())
	require.NoError(t, d.Close())
}

func TestRedisIndex_UnreachableServerCountsFailure(t *testing.T) {
	d, err := OpenRedis(RedisConfig{
		URL:           "redis://127.0.0.1:1/0?dial_timeout=200ms&max_retries=-1",
		SessionID:     "s1",
		BatchSize:     1,
		FlushInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, d.WriteAction(sampleRecord()))
	_ = d.Close()

	st := d.Stats()
	assert.Equal(t, uint64(1), st.FlushFailTotal)
	assert.Equal(t, uint64(1), st.QueueDroppedTotal)
	assert.Zero(t, st.DeliveredTotal)

	// Closed index ignores further writes.
	d.RecordDiversion(ministry.Diversion{Seq: 1})
	assert.Equal(t, uint64(1), d.Stats().QueueDroppedTotal)
}
