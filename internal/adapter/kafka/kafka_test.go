package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("station-1"),
		Value:     []byte(`{"Date":"2024/03/15","Time":"3:05 PM"}`),
		Topic:     "raw-station-readings",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("rtl_433")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("station-1"), raw.Key)
	assert.JSONEq(t, `{"Date":"2024/03/15","Time":"3:05 PM"}`, string(raw.Value))
	assert.Equal(t, "raw-station-readings", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "rtl_433", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestSerializeToMessage(t *testing.T) {
	ts := time.Date(2024, 3, 15, 14, 5, 0, 0, time.UTC)
	processed := time.Date(2024, 3, 15, 14, 6, 0, 0, time.UTC)
	rec := domain.Record{
		Measurement: "rtl433",
		Time:        ts,
		Tags:        domain.LiveTags("raw-station-readings", "pi"),
		Fields:      domain.Fields{RainMM: 12.5, WindBeaufort: 3},
		ProcessedAt: processed,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("rtl433"), msg.Key)
	assert.Equal(t, ts, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "measurement", msg.Headers[0].Key)
	assert.Equal(t, []byte("rtl433"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(processed.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded domain.Record
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, 12.5, decoded.Fields.RainMM)
	assert.Equal(t, 3, decoded.Fields.WindBeaufort)
	assert.Equal(t, "Live_Ingest", decoded.Tags.Model)
	assert.Contains(t, string(msg.Value), `"rain_mm":12.5`)
}

// fakeFetcher serves msgs in order, then fails with err.
type fakeFetcher struct {
	msgs      []kafkago.Message
	err       error
	committed []kafkago.Message
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if ctx.Err() != nil {
		return kafkago.Message{}, ctx.Err()
	}
	if len(f.msgs) == 0 {
		return kafkago.Message{}, f.err
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeFetcher) Close() error { return nil }

func TestExtractBatch(t *testing.T) {
	brokerDown := errors.New("broker unavailable")
	msgs := func(n int) []kafkago.Message {
		out := make([]kafkago.Message, n)
		for i := range out {
			out[i] = kafkago.Message{Topic: "raw-station-readings", Offset: int64(i), Value: []byte("{}")}
		}
		return out
	}

	tests := []struct {
		name      string
		fetcher   *fakeFetcher
		batchSize int
		wantLen   int
		wantErr   error
	}{
		{name: "full batch", fetcher: &fakeFetcher{msgs: msgs(3)}, batchSize: 3, wantLen: 3},
		{name: "flush interval returns what was read", fetcher: &fakeFetcher{msgs: msgs(2), err: context.DeadlineExceeded}, batchSize: 5, wantLen: 2},
		{name: "error after partial read keeps messages", fetcher: &fakeFetcher{msgs: msgs(3), err: brokerDown}, batchSize: 5, wantLen: 3},
		{name: "error before any message", fetcher: &fakeFetcher{err: brokerDown}, batchSize: 5, wantErr: brokerDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Reader{reader: tt.fetcher, flushInterval: time.Second, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

			batch, err := r.ExtractBatch(context.Background(), tt.batchSize)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, batch)
				return
			}
			require.NoError(t, err)
			require.Len(t, batch, tt.wantLen)
			for i, raw := range batch {
				assert.Equal(t, int64(i), raw.Offset)
				require.NoError(t, raw.Commit(context.Background()))
			}
			assert.Len(t, tt.fetcher.committed, tt.wantLen)
		})
	}
}
