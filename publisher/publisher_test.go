package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvalue/ods-adapter/datasource"
)

type fakeBroker struct {
	failures int
	calls    []struct {
		subject string
		data    []byte
	}
}

func (b *fakeBroker) Publish(subject string, data []byte) error {
	b.calls = append(b.calls, struct {
		subject string
		data    []byte
	}{subject, data})
	if len(b.calls) <= b.failures {
		return fmt.Errorf("broker unavailable")
	}
	return nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestPublisher(broker *fakeBroker, retries int) *Publisher {
	return New(broker, retries, 10*time.Millisecond, Options{Sleep: noSleep})
}

func TestPublishConfigChangeSubjects(t *testing.T) {
	tests := []struct {
		eventType datasource.EventType
		subject   string
	}{
		{datasource.EventDatasourceCreated, SubjectConfigCreated},
		{datasource.EventDatasourceUpdated, SubjectConfigUpdated},
		{datasource.EventDatasourceDeleted, SubjectConfigDeleted},
	}
	for _, tc := range tests {
		t.Run(string(tc.eventType), func(t *testing.T) {
			broker := &fakeBroker{}
			pub := newTestPublisher(broker, 0)

			pub.PublishConfigChange(tc.eventType, 7)

			require.Len(t, broker.calls, 1)
			assert.Equal(t, tc.subject, broker.calls[0].subject)

			var payload map[string]any
			require.NoError(t, json.Unmarshal(broker.calls[0].data, &payload))
			assert.Equal(t, string(tc.eventType), payload["eventType"])
			assert.Equal(t, float64(7), payload["datasourceId"])
		})
	}
}

func TestPublishImportSuccessPayload(t *testing.T) {
	broker := &fakeBroker{}
	pub := newTestPublisher(broker, 0)

	pub.PublishImportSuccess(3, "/datasources/3/imports/1/data")

	require.Len(t, broker.calls, 1)
	assert.Equal(t, SubjectExecutionSuccess, broker.calls[0].subject)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(broker.calls[0].data, &payload))
	assert.Equal(t, "/datasources/3/imports/1/data", payload["dataLocation"])
}

func TestPublishImportFailurePayload(t *testing.T) {
	broker := &fakeBroker{}
	pub := newTestPublisher(broker, 0)

	pub.PublishImportFailure(3, "fetch blew up")

	require.Len(t, broker.calls, 1)
	assert.Equal(t, SubjectExecutionFailed, broker.calls[0].subject)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(broker.calls[0].data, &payload))
	assert.Equal(t, "fetch blew up", payload["error"])
}

func TestPublishRetriesThenSucceeds(t *testing.T) {
	broker := &fakeBroker{failures: 2}
	pub := newTestPublisher(broker, 3)

	pub.PublishImportSuccess(1, "/datasources/1/imports/1/data")

	assert.Len(t, broker.calls, 3)
}

func TestPublishExhaustsBudgetAndDrops(t *testing.T) {
	broker := &fakeBroker{failures: 100}
	pub := newTestPublisher(broker, 3)

	pub.PublishImportSuccess(1, "/datasources/1/imports/1/data")

	// one initial attempt plus three retries
	assert.Len(t, broker.calls, 4)
}

func TestPublishZeroRetriesSingleAttempt(t *testing.T) {
	broker := &fakeBroker{failures: 100}
	pub := newTestPublisher(broker, 0)

	pub.PublishConfigChange(datasource.EventDatasourceCreated, 1)

	assert.Len(t, broker.calls, 1)
}
