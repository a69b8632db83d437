package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/bocrates/storage/types"
)

type (
	writeMessagesDelegate func(context.Context, ...kafka.Message) error
	closeDelegate         func() error
)

type mockWriter struct {
	writeMessagesFn writeMessagesDelegate
	closeFn         closeDelegate
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeMessagesFn != nil {
		return m.writeMessagesFn(ctx, msgs...)
	}

	return nil
}

func (m *mockWriter) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}

	return nil
}

func testReport() *types.IngestionReport {
	return &types.IngestionReport{
		RunID:      "d1bk3q2s0j8g00a5nmvg",
		Source:     "BOC",
		StartedAt:  time.Date(2026, time.January, 10, 1, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, time.January, 10, 1, 0, 2, 0, time.UTC),
		Fetched:    6,
		Inserted:   4,
		Duplicates: 2,
	}
}

func TestNewKafkaNotifier(t *testing.T) {
	t.Parallel()

	t.Run("missing topic", func(t *testing.T) {
		t.Parallel()

		n, err := NewKafkaNotifier([]string{"localhost:9092"}, "")

		assert.Nil(t, n)
		assert.ErrorIs(t, err, errNoTopic)
	})

	t.Run("valid notifier", func(t *testing.T) {
		t.Parallel()

		n, err := NewKafkaNotifier([]string{"localhost:9092"}, "rates.ingested")
		require.NoError(t, err)

		assert.NoError(t, n.Close())
	})
}

func TestKafkaNotifier_Notify(t *testing.T) {
	t.Parallel()

	t.Run("report is published", func(t *testing.T) {
		t.Parallel()

		var (
			captured []kafka.Message

			report = testReport()
			w      = &mockWriter{
				writeMessagesFn: func(_ context.Context, msgs ...kafka.Message) error {
					captured = msgs

					return nil
				},
			}
		)

		require.NoError(t, newKafkaNotifier(w, "rates.ingested").Notify(context.Background(), report))
		require.Len(t, captured, 1)

		assert.Equal(t, report.RunID, string(captured[0].Key))
		assert.Equal(t, report.FinishedAt, captured[0].Time)

		var decoded types.IngestionReport
		require.NoError(t, json.Unmarshal(captured[0].Value, &decoded))

		assert.Equal(t, report.Inserted, decoded.Inserted)
		assert.Equal(t, report.Source, decoded.Source)
	})

	t.Run("write failure", func(t *testing.T) {
		t.Parallel()

		var (
			errBroker = errors.New("broker unavailable")
			w         = &mockWriter{
				writeMessagesFn: func(_ context.Context, _ ...kafka.Message) error {
					return errBroker
				},
			}
		)

		err := newKafkaNotifier(w, "rates.ingested").Notify(context.Background(), testReport())

		assert.ErrorIs(t, err, errBroker)
	})
}

func TestNoop_Notify(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Noop{}.Notify(context.Background(), testReport()))
}
