package mqtt

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscriber() *Subscriber {
	return NewSubscriber(&config.Config{
		MQTTBroker:         "localhost",
		MQTTPort:           1883,
		MQTTTopic:          "rtl_433/weather",
		MQTTClientID:       "test",
		BatchFlushInterval: 50 * time.Millisecond,
	}, slog.Default())
}

func TestHandleMessage_QueuesCopy(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	s := newTestSubscriber()
	payload := []byte(`{"Date":"2024/05/01"}`)
	s.handleMessage("rtl_433/weather", payload)
	payload[2] = 'X'

	batch, err := s.ExtractBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.JSONEq(t, `{"Date":"2024/05/01"}`, string(batch[0].Value))
	assert.Equal(t, "rtl_433/weather", batch[0].Topic)
	assert.Equal(t, now, batch[0].Timestamp)
	assert.Nil(t, batch[0].Commit)
}

func TestExtractBatch_StopsAtBatchSize(t *testing.T) {
	s := newTestSubscriber()
	for range 5 {
		s.handleMessage("rtl_433/weather", []byte(`{}`))
	}

	batch, err := s.ExtractBatch(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, batch, 3)

	batch, err = s.ExtractBatch(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestExtractBatch_ContextCancelledWhileEmpty(t *testing.T) {
	s := newTestSubscriber()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	batch, err := s.ExtractBatch(ctx, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, batch)
}

func TestClose_UnblocksExtract(t *testing.T) {
	s := newTestSubscriber()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.ExtractBatch(context.Background(), 10)
	require.ErrorIs(t, err, errStopped)
	require.Error(t, s.CheckReadiness(context.Background()))
}
