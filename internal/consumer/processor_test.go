package consumer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fitlog/internal/events"
)

func workoutMessage(offset int64, payload string, headers ...kafka.Header) kafka.Message {
	return kafka.Message{
		Topic:     events.DefaultTopic,
		Partition: 0,
		Offset:    offset,
		Time:      time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC),
		Key:       []byte("owner-1"),
		Value:     []byte(payload),
		Headers:   headers,
	}
}

func standardHeaders(eventType string) []kafka.Header {
	return []kafka.Header{
		{Key: events.HeaderEventID, Value: []byte("7f8c1f1e-2b7d-4d3e-9a51-111111111111")},
		{Key: events.HeaderEventType, Value: []byte(eventType)},
		{Key: events.HeaderOwnerID, Value: []byte("owner-1")},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"log_id":"abc","owner_id":"owner-1"}`
	reader := &stubReader{messages: []kafka.Message{workoutMessage(10, payload, standardHeaders(events.TypeWorkoutLogged)...)}}
	handler := &stubHandler{}
	before := testutil.ToFloat64(workoutEventsCounter.WithLabelValues(events.TypeWorkoutLogged, outcomeStored))

	err := NewProcessor(reader, handler, WithLogger(log.New(io.Discard))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeWorkoutLogged, handler.last.EventType)
	require.Equal(t, "owner-1", handler.last.OwnerID)
	require.Equal(t, "7f8c1f1e-2b7d-4d3e-9a51-111111111111", handler.last.EventID)
	require.JSONEq(t, payload, string(handler.last.Payload))
	require.InDelta(t, before+1, testutil.ToFloat64(workoutEventsCounter.WithLabelValues(events.TypeWorkoutLogged, outcomeStored)), 0.0001)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{workoutMessage(20, `{}`, standardHeaders(events.TypeWorkoutCleared)...)}}
	handler := &stubHandler{err: errors.New("boom")}

	err := NewProcessor(reader, handler, WithLogger(log.New(io.Discard))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Zero(t, reader.commitCalls)
}

func TestProcessorCommitsPoisonMessages(t *testing.T) {
	cases := map[string]kafka.Message{
		"missing event type": workoutMessage(1, `{}`, kafka.Header{Key: events.HeaderOwnerID, Value: []byte("owner-1")}),
		"missing owner":      workoutMessage(2, `{}`, kafka.Header{Key: events.HeaderEventType, Value: []byte(events.TypeWorkoutLogged)}),
		"invalid json":       workoutMessage(3, `{"log_id":`, standardHeaders(events.TypeWorkoutLogged)...),
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			reader := &stubReader{messages: []kafka.Message{msg}}
			handler := &stubHandler{}
			before := testutil.ToFloat64(poisonCounter.WithLabelValues(events.DefaultTopic))

			err := NewProcessor(reader, handler, WithLogger(log.New(io.Discard))).Run(context.Background())
			require.ErrorIs(t, err, context.Canceled)

			require.Zero(t, handler.calls)
			require.Equal(t, 1, reader.commitCalls)
			require.InDelta(t, before+1, testutil.ToFloat64(poisonCounter.WithLabelValues(events.DefaultTopic)), 0.0001)
		})
	}
}

func TestProcessorStopsWhenReaderCloses(t *testing.T) {
	reader := &stubReader{after: func() error { return io.EOF }}
	err := NewProcessor(reader, &stubHandler{}, WithLogger(log.New(io.Discard))).Run(context.Background())
	require.ErrorIs(t, err, io.EOF)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}
