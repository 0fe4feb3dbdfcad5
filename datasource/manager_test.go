package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/format"
	"github.com/jvalue/ods-adapter/params"
	"github.com/jvalue/ods-adapter/protocol"
)

type fakeStore struct {
	datasources map[uint64]Datasource
	imports     map[uint64][]Import
	events      []DomainEvent
	nextDSID    uint64
	nextImpID   uint64
	nextEventID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		datasources: map[uint64]Datasource{},
		imports:     map[uint64][]Import{},
	}
}

func (s *fakeStore) appendEvent(ev DomainEvent) DomainEvent {
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, ev)
	return ev
}

func (s *fakeStore) CreateDatasource(_ context.Context, ds Datasource) (Datasource, error) {
	s.nextDSID++
	ds.ID = s.nextDSID
	s.datasources[ds.ID] = ds
	s.appendEvent(DomainEvent{Type: EventDatasourceCreated, DatasourceID: ds.ID})
	return ds, nil
}

func (s *fakeStore) GetDatasource(_ context.Context, id uint64) (Datasource, error) {
	ds, ok := s.datasources[id]
	if !ok {
		return Datasource{}, errors.ErrDatasourceNotFound
	}
	return ds, nil
}

func (s *fakeStore) ListDatasources(_ context.Context) ([]Datasource, error) {
	out := make([]Datasource, 0, len(s.datasources))
	for _, ds := range s.datasources {
		out = append(out, ds)
	}
	return out, nil
}

func (s *fakeStore) UpdateDatasource(_ context.Context, ds Datasource) error {
	if _, ok := s.datasources[ds.ID]; !ok {
		return errors.ErrDatasourceNotFound
	}
	s.datasources[ds.ID] = ds
	s.appendEvent(DomainEvent{Type: EventDatasourceUpdated, DatasourceID: ds.ID})
	return nil
}

func (s *fakeStore) DeleteDatasource(_ context.Context, id uint64) (Datasource, error) {
	ds, ok := s.datasources[id]
	if !ok {
		return Datasource{}, errors.ErrDatasourceNotFound
	}
	delete(s.datasources, id)
	delete(s.imports, id)
	s.appendEvent(DomainEvent{Type: EventDatasourceDeleted, DatasourceID: id})
	return ds, nil
}

func (s *fakeStore) DeleteAllDatasources(_ context.Context) ([]Datasource, error) {
	out := make([]Datasource, 0, len(s.datasources))
	for id, ds := range s.datasources {
		out = append(out, ds)
		delete(s.datasources, id)
		delete(s.imports, id)
		s.appendEvent(DomainEvent{Type: EventDatasourceDeleted, DatasourceID: id})
	}
	return out, nil
}

func (s *fakeStore) CreateImport(_ context.Context, imp Import) (Import, error) {
	s.nextImpID++
	imp.ID = s.nextImpID
	s.imports[imp.DatasourceID] = append(s.imports[imp.DatasourceID], imp)
	s.appendEvent(DomainEvent{
		Type:         EventImportSucceeded,
		DatasourceID: imp.DatasourceID,
		Payload:      imp.Metadata().Location,
	})
	return imp, nil
}

func (s *fakeStore) ListImports(_ context.Context, datasourceID uint64) ([]Import, error) {
	return s.imports[datasourceID], nil
}

func (s *fakeStore) GetImport(_ context.Context, datasourceID, importID uint64) (Import, error) {
	for _, imp := range s.imports[datasourceID] {
		if imp.ID == importID {
			return imp, nil
		}
	}
	return Import{}, errors.ErrImportNotFound
}

func (s *fakeStore) LatestImport(_ context.Context, datasourceID uint64) (Import, error) {
	imports := s.imports[datasourceID]
	if len(imports) == 0 {
		return Import{}, errors.ErrNoImports
	}
	return imports[len(imports)-1], nil
}

func (s *fakeStore) AppendEvent(_ context.Context, ev DomainEvent) (DomainEvent, error) {
	return s.appendEvent(ev), nil
}

func (s *fakeStore) EventsAfter(_ context.Context, afterID uint64) ([]DomainEvent, error) {
	var out []DomainEvent
	for _, ev := range s.events {
		if ev.ID > afterID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) EventsByDatasource(_ context.Context, datasourceID uint64) ([]DomainEvent, error) {
	var out []DomainEvent
	for _, ev := range s.events {
		if ev.DatasourceID == datasourceID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) LatestEvent(_ context.Context) (DomainEvent, error) {
	if len(s.events) == 0 {
		return DomainEvent{}, errors.ErrEventNotFound
	}
	return s.events[len(s.events)-1], nil
}

func (s *fakeStore) GetEvent(_ context.Context, id uint64) (DomainEvent, error) {
	for _, ev := range s.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return DomainEvent{}, errors.ErrEventNotFound
}

type recordedPublish struct {
	eventType EventType
	dsID      uint64
	detail    string
}

type fakePublisher struct {
	published []recordedPublish
}

func (p *fakePublisher) PublishConfigChange(eventType EventType, datasourceID uint64) {
	p.published = append(p.published, recordedPublish{eventType: eventType, dsID: datasourceID})
}

func (p *fakePublisher) PublishImportSuccess(datasourceID uint64, dataLocation string) {
	p.published = append(p.published, recordedPublish{eventType: EventImportSucceeded, dsID: datasourceID, detail: dataLocation})
}

func (p *fakePublisher) PublishImportFailure(datasourceID uint64, errorMessage string) {
	p.published = append(p.published, recordedPublish{eventType: EventImportFailed, dsID: datasourceID, detail: errorMessage})
}

type fakeSource struct {
	payload string
	err     error
	calls   int
	seen    map[string]any
}

func (s *fakeSource) Type() string                   { return "HTTP" }
func (s *fakeSource) Description() string            { return "test source" }
func (s *fakeSource) Parameters() []params.Descriptor { return nil }

func (s *fakeSource) Fetch(_ context.Context, parameters map[string]any) (string, error) {
	s.calls++
	s.seen = parameters
	return s.payload, s.err
}

type fakeInterpreter struct {
	out   string
	err   error
	calls int
}

func (i *fakeInterpreter) Type() string                    { return "JSON" }
func (i *fakeInterpreter) Description() string             { return "test interpreter" }
func (i *fakeInterpreter) Parameters() []params.Descriptor { return nil }

func (i *fakeInterpreter) Interpret(raw string, _ map[string]any) (string, error) {
	i.calls++
	if i.err != nil {
		return "", i.err
	}
	if i.out != "" {
		return i.out, nil
	}
	return raw, nil
}

type managerFixture struct {
	manager     *Manager
	store       *fakeStore
	publisher   *fakePublisher
	source      *fakeSource
	interpreter *fakeInterpreter
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	store := newFakeStore()
	publisher := &fakePublisher{}
	source := &fakeSource{payload: `{"a":1}`}
	interpreter := &fakeInterpreter{}

	protocols := protocol.NewRegistry()
	require.NoError(t, protocols.Register(source))
	formats := format.NewRegistry()
	require.NoError(t, formats.Register(interpreter))

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	manager := NewManager(store, protocols, formats, publisher, ManagerOptions{
		Now: func() time.Time { return fixed },
	})
	return &managerFixture{
		manager:     manager,
		store:       store,
		publisher:   publisher,
		source:      source,
		interpreter: interpreter,
	}
}

func testDatasource() Datasource {
	return Datasource{
		Protocol: PluginConfig{Type: "HTTP", Parameters: map[string]any{
			"location": "http://www.example.com/data",
			"encoding": "UTF-8",
		}},
		Format:   PluginConfig{Type: "JSON", Parameters: map[string]any{}},
		Metadata: Metadata{Author: "icke", DisplayName: "test datasource"},
	}
}

func TestCreateDatasourceAssignsIDAndPublishes(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.CreateDatasource(context.Background(), testDatasource())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), created.ID)
	assert.False(t, created.Metadata.CreationTimestamp.IsZero())
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, EventDatasourceCreated, f.publisher.published[0].eventType)
	assert.Equal(t, uint64(1), f.publisher.published[0].dsID)
}

func TestCreateDatasourceRejectsAssignedID(t *testing.T) {
	f := newManagerFixture(t)

	ds := testDatasource()
	ds.ID = 7
	_, err := f.manager.CreateDatasource(context.Background(), ds)

	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Empty(t, f.publisher.published)
}

func TestUpdateDatasourcePreservesIdentityAndCreationTime(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.CreateDatasource(context.Background(), testDatasource())
	require.NoError(t, err)

	update := testDatasource()
	update.ID = 99
	update.Metadata.DisplayName = "renamed"
	update.Metadata.CreationTimestamp = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.manager.UpdateDatasource(context.Background(), created.ID, update))

	stored, err := f.manager.GetDatasource(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
	assert.Equal(t, created.Metadata.CreationTimestamp, stored.Metadata.CreationTimestamp)
	assert.Equal(t, "renamed", stored.Metadata.DisplayName)
}

func TestUpdateUnknownDatasource(t *testing.T) {
	f := newManagerFixture(t)

	err := f.manager.UpdateDatasource(context.Background(), 42, testDatasource())

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteAllPublishesPerDatasource(t *testing.T) {
	f := newManagerFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.manager.CreateDatasource(context.Background(), testDatasource())
		require.NoError(t, err)
	}
	f.publisher.published = nil

	require.NoError(t, f.manager.DeleteAllDatasources(context.Background()))

	require.Len(t, f.publisher.published, 3)
	seen := map[uint64]bool{}
	for _, pub := range f.publisher.published {
		assert.Equal(t, EventDatasourceDeleted, pub.eventType)
		seen[pub.dsID] = true
	}
	assert.Len(t, seen, 3)
}

func TestTriggerHappyPath(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.CreateDatasource(context.Background(), testDatasource())
	require.NoError(t, err)

	metadata, err := f.manager.Trigger(context.Background(), created.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), metadata.ID)
	assert.Equal(t, created.ID, metadata.DatasourceID)
	assert.Equal(t, HealthOK, metadata.Health)
	assert.Equal(t, "/datasources/1/imports/1/data", metadata.Location)
	assert.Equal(t, 1, f.source.calls)
	assert.Equal(t, 1, f.interpreter.calls)

	data, err := f.manager.GetImportData(context.Background(), created.ID, metadata.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, data)

	last := f.publisher.published[len(f.publisher.published)-1]
	assert.Equal(t, EventImportSucceeded, last.eventType)
	assert.Equal(t, metadata.Location, last.detail)
}

func TestTriggerUnknownDatasourceSkipsPlugins(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Trigger(context.Background(), 123, nil)

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Zero(t, f.source.calls)
	assert.Zero(t, f.interpreter.calls)
	assert.Empty(t, f.store.events)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, EventImportFailed, f.publisher.published[0].eventType)
}

func TestTriggerFetchFailureRecordsEvent(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.CreateDatasource(context.Background(), testDatasource())
	require.NoError(t, err)

	f.source.err = errors.WrapTransient(errors.ErrFetchFailed, "HttpSource", "Fetch", "request")
	_, err = f.manager.Trigger(context.Background(), created.ID, nil)

	require.Error(t, err)
	assert.Zero(t, f.interpreter.calls)

	last := f.store.events[len(f.store.events)-1]
	assert.Equal(t, EventImportFailed, last.Type)
	assert.Equal(t, created.ID, last.DatasourceID)
	assert.NotEmpty(t, last.Payload)

	assert.Equal(t, EventImportFailed, f.publisher.published[len(f.publisher.published)-1].eventType)
	assert.Empty(t, f.store.imports[created.ID])
}

func TestTriggerInterpretFailureStoresNoImport(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.CreateDatasource(context.Background(), testDatasource())
	require.NoError(t, err)

	f.interpreter.err = errors.WrapInvalid(errors.ErrInterpretation, "JsonInterpreter", "Interpret", "parsing")
	_, err = f.manager.Trigger(context.Background(), created.ID, nil)

	require.Error(t, err)
	assert.Empty(t, f.store.imports[created.ID])
	_, err = f.manager.GetLatestImport(context.Background(), created.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestTriggerRuntimeParametersReachSource(t *testing.T) {
	f := newManagerFixture(t)

	ds := testDatasource()
	ds.Protocol.Parameters["location"] = "http://www.example.com/{station}/data"
	ds.Protocol.Parameters["defaultParameters"] = map[string]any{"station": "BONN"}
	created, err := f.manager.CreateDatasource(context.Background(), ds)
	require.NoError(t, err)

	_, err = f.manager.Trigger(context.Background(), created.ID, RuntimeParameters{"station": "KOELN"})
	require.NoError(t, err)

	assert.Equal(t, "http://www.example.com/KOELN/data", f.source.seen["location"])
}

func TestTriggerSchemaViolationYieldsWarning(t *testing.T) {
	f := newManagerFixture(t)

	ds := testDatasource()
	ds.Schema = []byte(`{"type":"object","properties":{"a":{"type":"string"}}}`)
	created, err := f.manager.CreateDatasource(context.Background(), ds)
	require.NoError(t, err)

	metadata, err := f.manager.Trigger(context.Background(), created.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, HealthWarning, metadata.Health)
	assert.NotEmpty(t, metadata.ErrorMessages)
}

func TestListImportsReturnsMetadataOnly(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.CreateDatasource(context.Background(), testDatasource())
	require.NoError(t, err)
	_, err = f.manager.Trigger(context.Background(), created.ID, nil)
	require.NoError(t, err)
	_, err = f.manager.Trigger(context.Background(), created.ID, nil)
	require.NoError(t, err)

	imports, err := f.manager.ListImports(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, imports, 2)
	assert.Equal(t, uint64(1), imports[0].ID)
	assert.Equal(t, uint64(2), imports[1].ID)
}

func TestEventsAfterFiltersByID(t *testing.T) {
	f := newManagerFixture(t)

	created, err := f.manager.CreateDatasource(context.Background(), testDatasource())
	require.NoError(t, err)
	_, err = f.manager.Trigger(context.Background(), created.ID, nil)
	require.NoError(t, err)

	all, err := f.manager.EventsAfter(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	tail, err := f.manager.EventsAfter(context.Background(), all[0].ID)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, EventImportSucceeded, tail[0].Type)
}

func TestLatestEventEmptyLog(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.LatestEvent(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
