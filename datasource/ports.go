package datasource

import "context"

// Store is the persistence port the manager writes through. Mutations
// that the event log must reflect append their DomainEvent together with
// the entity write: implementations commit both or neither (the in-memory
// store holds one lock across both; the KV store documents its weaker
// crash window). Event IDs are assigned by the store, strictly
// increasing, and gap-tolerant.
type Store interface {
	// CreateDatasource persists a new datasource, assigns its ID, and
	// appends a DATASOURCE_CREATED event.
	CreateDatasource(ctx context.Context, ds Datasource) (Datasource, error)
	// GetDatasource returns errors.ErrDatasourceNotFound for unknown ids.
	GetDatasource(ctx context.Context, id uint64) (Datasource, error)
	// ListDatasources returns all datasources ordered by id.
	ListDatasources(ctx context.Context) ([]Datasource, error)
	// UpdateDatasource replaces a datasource under its existing id and
	// appends a DATASOURCE_UPDATED event.
	UpdateDatasource(ctx context.Context, ds Datasource) error
	// DeleteDatasource removes a datasource, appends a
	// DATASOURCE_DELETED event, and returns the removed entity.
	DeleteDatasource(ctx context.Context, id uint64) (Datasource, error)
	// DeleteAllDatasources removes every datasource, appending one
	// DATASOURCE_DELETED event per previously existing datasource, and
	// returns the removed entities.
	DeleteAllDatasources(ctx context.Context) ([]Datasource, error)

	// CreateImport persists an immutable import record, assigns its ID,
	// and appends an IMPORT_SUCCEEDED event whose payload is the
	// import's data location.
	CreateImport(ctx context.Context, imp Import) (Import, error)
	// ListImports returns a datasource's whole import history.
	ListImports(ctx context.Context, datasourceID uint64) ([]Import, error)
	// GetImport returns one import scoped to a datasource.
	GetImport(ctx context.Context, datasourceID, importID uint64) (Import, error)
	// LatestImport returns the most recent import, or
	// errors.ErrNoImports when the datasource has none yet.
	LatestImport(ctx context.Context, datasourceID uint64) (Import, error)

	// AppendEvent appends a standalone event (used for IMPORT_FAILED,
	// which has no accompanying entity write) and returns it with its
	// assigned ID.
	AppendEvent(ctx context.Context, ev DomainEvent) (DomainEvent, error)
	// EventsAfter returns all events with ID greater than afterID.
	EventsAfter(ctx context.Context, afterID uint64) ([]DomainEvent, error)
	// EventsByDatasource returns all events for one datasource.
	EventsByDatasource(ctx context.Context, datasourceID uint64) ([]DomainEvent, error)
	// LatestEvent returns the newest event, or errors.ErrEventNotFound
	// on an empty log.
	LatestEvent(ctx context.Context) (DomainEvent, error)
	// GetEvent returns one event by ID.
	GetEvent(ctx context.Context, id uint64) (DomainEvent, error)
}

// EventPublisher is the broker port. Delivery is at-least-once while the
// publisher's retry budget lasts and silently best-effort afterwards, so
// none of these methods report failure to the caller.
type EventPublisher interface {
	PublishConfigChange(eventType EventType, datasourceID uint64)
	PublishImportSuccess(datasourceID uint64, dataLocation string)
	PublishImportFailure(datasourceID uint64, errMsg string)
}
