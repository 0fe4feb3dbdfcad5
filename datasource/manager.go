package datasource

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/format"
	"github.com/jvalue/ods-adapter/metric"
	"github.com/jvalue/ods-adapter/protocol"
)

// Manager is the datasource registry and trigger engine. It owns
// configuration CRUD, import history access, event polling, and the
// trigger pipeline. All collaborators are explicit construction-time
// ports; there is no ambient wiring.
type Manager struct {
	store     Store
	protocols *protocol.Registry
	formats   *format.Registry
	publisher EventPublisher
	metrics   *metric.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// ManagerOptions carries the optional manager collaborators.
type ManagerOptions struct {
	Metrics *metric.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewManager wires the trigger engine to its ports.
func NewManager(
	store Store,
	protocols *protocol.Registry,
	formats *format.Registry,
	publisher EventPublisher,
	opts ManagerOptions,
) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:     store,
		protocols: protocols,
		formats:   formats,
		publisher: publisher,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       now,
	}
}

// CreateDatasource stores a new datasource configuration. The id is
// assigned by the server; the creation timestamp is stamped here. The
// storage write and its DATASOURCE_CREATED event commit together, then
// the change is announced to the broker.
func (m *Manager) CreateDatasource(ctx context.Context, ds Datasource) (Datasource, error) {
	if ds.ID != 0 {
		return Datasource{}, errors.WrapInvalid(errors.ErrIDAssigned, "Manager", "CreateDatasource", "id validation")
	}
	ds.Normalize()
	ds.Metadata.CreationTimestamp = m.now()

	saved, err := m.store.CreateDatasource(ctx, ds)
	if err != nil {
		return Datasource{}, errors.Wrap(err, "Manager", "CreateDatasource", "storage write")
	}

	m.publisher.PublishConfigChange(EventDatasourceCreated, saved.ID)
	m.logger.Info("datasource created", "datasource_id", saved.ID, "protocol", saved.Protocol.Type, "format", saved.Format.Type)
	return saved, nil
}

// GetDatasource resolves one datasource by id.
func (m *Manager) GetDatasource(ctx context.Context, id uint64) (Datasource, error) {
	ds, err := m.store.GetDatasource(ctx, id)
	if err != nil {
		return Datasource{}, errors.WrapNotFound(err, "Manager", "GetDatasource", "datasource lookup")
	}
	return ds, nil
}

// ListDatasources returns every stored datasource.
func (m *Manager) ListDatasources(ctx context.Context) ([]Datasource, error) {
	return m.store.ListDatasources(ctx)
}

// UpdateDatasource replaces a datasource configuration by full
// replacement. Identity and creation timestamp remain stable.
func (m *Manager) UpdateDatasource(ctx context.Context, id uint64, update Datasource) error {
	existing, err := m.store.GetDatasource(ctx, id)
	if err != nil {
		return errors.WrapNotFound(err, "Manager", "UpdateDatasource", "datasource lookup")
	}

	update.ID = existing.ID
	update.Metadata.CreationTimestamp = existing.Metadata.CreationTimestamp
	update.Normalize()

	if err := m.store.UpdateDatasource(ctx, update); err != nil {
		return errors.Wrap(err, "Manager", "UpdateDatasource", "storage write")
	}

	m.publisher.PublishConfigChange(EventDatasourceUpdated, id)
	m.logger.Info("datasource updated", "datasource_id", id)
	return nil
}

// DeleteDatasource removes one datasource by id.
func (m *Manager) DeleteDatasource(ctx context.Context, id uint64) error {
	if _, err := m.store.DeleteDatasource(ctx, id); err != nil {
		return errors.WrapNotFound(err, "Manager", "DeleteDatasource", "datasource lookup")
	}

	m.publisher.PublishConfigChange(EventDatasourceDeleted, id)
	m.logger.Info("datasource deleted", "datasource_id", id)
	return nil
}

// DeleteAllDatasources removes every datasource, appending one deletion
// event per previously existing datasource.
func (m *Manager) DeleteAllDatasources(ctx context.Context) error {
	deleted, err := m.store.DeleteAllDatasources(ctx)
	if err != nil {
		return errors.Wrap(err, "Manager", "DeleteAllDatasources", "storage write")
	}

	for _, ds := range deleted {
		m.publisher.PublishConfigChange(EventDatasourceDeleted, ds.ID)
	}
	m.logger.Info("all datasources deleted", "count", len(deleted))
	return nil
}

// ListImports returns the whole import history of a datasource, without
// payloads.
func (m *Manager) ListImports(ctx context.Context, datasourceID uint64) ([]ImportMetadata, error) {
	if _, err := m.store.GetDatasource(ctx, datasourceID); err != nil {
		return nil, errors.WrapNotFound(err, "Manager", "ListImports", "datasource lookup")
	}

	imports, err := m.store.ListImports(ctx, datasourceID)
	if err != nil {
		return nil, errors.Wrap(err, "Manager", "ListImports", "import listing")
	}

	metadata := make([]ImportMetadata, 0, len(imports))
	for _, imp := range imports {
		metadata = append(metadata, imp.Metadata())
	}
	return metadata, nil
}

// GetImport returns one import's metadata scoped to a datasource.
func (m *Manager) GetImport(ctx context.Context, datasourceID, importID uint64) (ImportMetadata, error) {
	if _, err := m.store.GetDatasource(ctx, datasourceID); err != nil {
		return ImportMetadata{}, errors.WrapNotFound(err, "Manager", "GetImport", "datasource lookup")
	}

	imp, err := m.store.GetImport(ctx, datasourceID, importID)
	if err != nil {
		return ImportMetadata{}, errors.WrapNotFound(err, "Manager", "GetImport", "import lookup")
	}
	return imp.Metadata(), nil
}

// GetImportData returns one import's interpreted payload.
func (m *Manager) GetImportData(ctx context.Context, datasourceID, importID uint64) (string, error) {
	if _, err := m.store.GetDatasource(ctx, datasourceID); err != nil {
		return "", errors.WrapNotFound(err, "Manager", "GetImportData", "datasource lookup")
	}

	imp, err := m.store.GetImport(ctx, datasourceID, importID)
	if err != nil {
		return "", errors.WrapNotFound(err, "Manager", "GetImportData", "import lookup")
	}
	return imp.Data, nil
}

// GetLatestImport returns the most recent import's metadata.
func (m *Manager) GetLatestImport(ctx context.Context, datasourceID uint64) (ImportMetadata, error) {
	if _, err := m.store.GetDatasource(ctx, datasourceID); err != nil {
		return ImportMetadata{}, errors.WrapNotFound(err, "Manager", "GetLatestImport", "datasource lookup")
	}

	imp, err := m.store.LatestImport(ctx, datasourceID)
	if err != nil {
		return ImportMetadata{}, errors.WrapNotFound(err, "Manager", "GetLatestImport", "latest import lookup")
	}
	return imp.Metadata(), nil
}

// GetEvent returns one domain event by id.
func (m *Manager) GetEvent(ctx context.Context, id uint64) (DomainEvent, error) {
	ev, err := m.store.GetEvent(ctx, id)
	if err != nil {
		return DomainEvent{}, errors.WrapNotFound(err, "Manager", "GetEvent", "event lookup")
	}
	return ev, nil
}

// EventsAfter returns all events with id greater than afterID, in id
// order, for incremental synchronization.
func (m *Manager) EventsAfter(ctx context.Context, afterID uint64) ([]DomainEvent, error) {
	return m.store.EventsAfter(ctx, afterID)
}

// EventsByDatasource returns all events recorded for one datasource.
func (m *Manager) EventsByDatasource(ctx context.Context, datasourceID uint64) ([]DomainEvent, error) {
	return m.store.EventsByDatasource(ctx, datasourceID)
}

// LatestEvent returns the newest event in the log.
func (m *Manager) LatestEvent(ctx context.Context) (DomainEvent, error) {
	ev, err := m.store.LatestEvent(ctx)
	if err != nil {
		return DomainEvent{}, errors.WrapNotFound(err, "Manager", "LatestEvent", "event lookup")
	}
	return ev, nil
}

// ListProtocols returns metadata for every registered protocol plugin.
func (m *Manager) ListProtocols() []protocol.Info {
	return m.protocols.List()
}

// ListFormats returns metadata for every registered format plugin.
func (m *Manager) ListFormats() []format.Info {
	return m.formats.List()
}

// Trigger executes one import for a datasource: resolve configuration,
// fetch through the protocol plugin, interpret through the format plugin,
// schema-validate, persist the import together with its IMPORT_SUCCEEDED
// event, then announce the outcome. Any failure before persistence stores
// no import, records a best-effort IMPORT_FAILED announcement, and
// surfaces the error. The returned metadata never contains the payload.
func (m *Manager) Trigger(ctx context.Context, id uint64, runtime RuntimeParameters) (ImportMetadata, error) {
	logger := m.logger.With("datasource_id", id, "run_id", uuid.NewString())

	ds, err := m.store.GetDatasource(ctx, id)
	if err != nil {
		// Nothing was resolved: no event-log entry is possible for a
		// datasource that does not exist, but the failure is still
		// announced to the broker.
		m.publisher.PublishImportFailure(id, err.Error())
		m.metrics.ImportFailed("resolve")
		return ImportMetadata{}, errors.WrapNotFound(err, "Manager", "Trigger", "datasource lookup")
	}
	ds = ds.Clone()

	source, err := m.protocols.Get(ds.Protocol.Type)
	if err != nil {
		return ImportMetadata{}, m.failImport(ctx, logger, id, "resolve", err)
	}
	interpreter, err := m.formats.Get(ds.Format.Type)
	if err != nil {
		return ImportMetadata{}, m.failImport(ctx, logger, id, "resolve", err)
	}

	parameters := ds.EffectiveProtocolParameters(runtime)

	raw, err := source.Fetch(ctx, parameters)
	if err != nil {
		return ImportMetadata{}, m.failImport(ctx, logger, id, "fetch", err)
	}
	logger.Debug("fetch complete", "bytes", len(raw))

	data, err := interpreter.Interpret(raw, copyParameters(ds.Format.Parameters))
	if err != nil {
		return ImportMetadata{}, m.failImport(ctx, logger, id, "interpret", err)
	}

	verdict := ValidateSchema(data, ds.Schema)

	imp := Import{
		DatasourceID:  id,
		Data:          data,
		Timestamp:     m.now(),
		Health:        verdict.Health,
		ErrorMessages: verdict.ErrorMessages,
	}
	saved, err := m.store.CreateImport(ctx, imp)
	if err != nil {
		return ImportMetadata{}, m.failImport(ctx, logger, id, "persist", err)
	}

	metadata := saved.Metadata()
	m.publisher.PublishImportSuccess(id, metadata.Location)
	m.metrics.ImportSucceeded()
	logger.Info("import complete", "import_id", saved.ID, "health", saved.Health)
	return metadata, nil
}

// failImport records a failed trigger: an IMPORT_FAILED entry in the
// event log (best effort), a broker announcement, and the surfaced error.
func (m *Manager) failImport(ctx context.Context, logger *slog.Logger, id uint64, stage string, cause error) error {
	logger.Error("import failed", "stage", stage, "error", cause)

	if _, err := m.store.AppendEvent(ctx, DomainEvent{
		Type:         EventImportFailed,
		DatasourceID: id,
		Payload:      cause.Error(),
	}); err != nil {
		logger.Error("could not record import failure event", "error", err)
	}

	m.publisher.PublishImportFailure(id, cause.Error())
	m.metrics.ImportFailed(stage)
	return errors.Wrap(cause, "Manager", "Trigger", stage)
}
