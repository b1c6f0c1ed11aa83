package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"activity-sync/models"
)

type stubWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msgs...)
	return nil
}

func (s *stubWriter) Close() error {
	s.closed = true
	return nil
}

func TestKafkaPublisherPublishRun(t *testing.T) {
	w := &stubWriter{}
	p := newKafkaPublisher(w, "activity-sync.runs")

	run := models.NewSyncRun("nvrc", time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC))
	run.Outcome = models.OutcomeAbortedByGuard
	run.RecordsSeen = 2

	require.NoError(t, p.PublishRun(context.Background(), run.Report()))
	require.Len(t, w.messages, 1)
	require.Equal(t, "nvrc", string(w.messages[0].Key))
	require.Equal(t, "aborted_by_guard", string(w.messages[0].Headers[0].Value))

	var got models.RunReport
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &got))
	require.Equal(t, run.ID, got.RunID)
	require.Equal(t, "aborted by guard (2 records seen)", got.Summary)

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestKafkaPublisherWrapsErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := newKafkaPublisher(&stubWriter{err: boom}, "runs")
	err := p.PublishRun(context.Background(), models.RunReport{SourceID: "nvrc"})
	require.ErrorIs(t, err, boom)
}
