// Package publisher announces datasource lifecycle and execution outcomes
// on the message broker. Delivery is at-least-once within a fixed retry
// budget; an exhausted budget drops the notification with a log line, it
// never propagates into the import pipeline.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jvalue/ods-adapter/datasource"
	"github.com/jvalue/ods-adapter/metric"
	"github.com/jvalue/ods-adapter/pkg/retry"
)

// Broker subjects. Config changes and execution outcomes use separate
// subject families so consumers can subscribe to one concern.
const (
	SubjectConfigCreated    = "datasource.config.created"
	SubjectConfigUpdated    = "datasource.config.updated"
	SubjectConfigDeleted    = "datasource.config.deleted"
	SubjectExecutionSuccess = "datasource.execution.success"
	SubjectExecutionFailed  = "datasource.execution.failed"
)

// Broker is the transport the publisher writes through, satisfied by
// natsclient.Client.
type Broker interface {
	Publish(subject string, data []byte) error
}

type configChangePayload struct {
	EventType    datasource.EventType `json:"eventType"`
	DatasourceID uint64               `json:"datasourceId"`
}

type importSuccessPayload struct {
	DatasourceID uint64 `json:"datasourceId"`
	DataLocation string `json:"dataLocation"`
}

type importFailurePayload struct {
	DatasourceID uint64 `json:"datasourceId"`
	Error        string `json:"error"`
}

// Publisher retries each announcement a fixed number of times with a
// constant backoff, then drops it.
type Publisher struct {
	broker  Broker
	retry   retry.Config
	metrics *metric.Metrics
	logger  *slog.Logger
}

// Options carries the optional publisher collaborators.
type Options struct {
	Metrics *metric.Metrics
	Logger  *slog.Logger
	// Sleep overrides the backoff sleeper, for tests.
	Sleep retry.SleepFunc
}

// New builds a publisher that attempts each publish once plus the given
// number of retries, sleeping backoff between attempts.
func New(broker Broker, retries int, backoff time.Duration, opts Options) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := retry.Fixed(retries, backoff)
	if opts.Sleep != nil {
		cfg.Sleep = opts.Sleep
	}
	return &Publisher{
		broker:  broker,
		retry:   cfg,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// PublishConfigChange announces a datasource create, update, or delete.
func (p *Publisher) PublishConfigChange(eventType datasource.EventType, datasourceID uint64) {
	subject := configSubject(eventType)
	if subject == "" {
		p.logger.Error("unknown config event type", "event_type", eventType)
		return
	}
	p.publish(subject, configChangePayload{EventType: eventType, DatasourceID: datasourceID})
}

// PublishImportSuccess announces a completed import and where its data
// can be fetched.
func (p *Publisher) PublishImportSuccess(datasourceID uint64, dataLocation string) {
	p.publish(SubjectExecutionSuccess, importSuccessPayload{
		DatasourceID: datasourceID,
		DataLocation: dataLocation,
	})
}

// PublishImportFailure announces a failed import with its error text.
func (p *Publisher) PublishImportFailure(datasourceID uint64, errMsg string) {
	p.publish(SubjectExecutionFailed, importFailurePayload{
		DatasourceID: datasourceID,
		Error:        errMsg,
	})
}

func configSubject(eventType datasource.EventType) string {
	switch eventType {
	case datasource.EventDatasourceCreated:
		return SubjectConfigCreated
	case datasource.EventDatasourceUpdated:
		return SubjectConfigUpdated
	case datasource.EventDatasourceDeleted:
		return SubjectConfigDeleted
	default:
		return ""
	}
}

func (p *Publisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("could not encode notification", "subject", subject, "error", err)
		p.metrics.EventDropped(subject)
		return
	}

	err = retry.Do(context.Background(), p.retry, func() error {
		return p.broker.Publish(subject, data)
	})
	if err != nil {
		p.logger.Error("notification dropped", "subject", subject, "error", err)
		p.metrics.EventDropped(subject)
		return
	}
	p.metrics.EventPublished(subject)
}
