// Package memstore is the in-process Store implementation. One mutex
// guards all maps, so an entity write and its domain event always commit
// atomically. Every value crossing the API boundary is deep-copied.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/jvalue/ods-adapter/datasource"
	"github.com/jvalue/ods-adapter/errors"
)

// Store keeps datasources, imports, and the event log in memory. Suitable
// for tests and single-process deployments without durability needs.
type Store struct {
	mu          sync.Mutex
	datasources map[uint64]datasource.Datasource
	imports     map[uint64][]datasource.Import
	events      []datasource.DomainEvent
	nextDSID    uint64
	nextImpID   uint64
	nextEventID uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		datasources: make(map[uint64]datasource.Datasource),
		imports:     make(map[uint64][]datasource.Import),
	}
}

// appendEventLocked assigns the next event id. Callers hold s.mu.
func (s *Store) appendEventLocked(ev datasource.DomainEvent) datasource.DomainEvent {
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, ev)
	return ev
}

func (s *Store) CreateDatasource(_ context.Context, ds datasource.Datasource) (datasource.Datasource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDSID++
	ds.ID = s.nextDSID
	s.datasources[ds.ID] = ds.Clone()
	s.appendEventLocked(datasource.DomainEvent{
		Type:         datasource.EventDatasourceCreated,
		DatasourceID: ds.ID,
	})
	return ds, nil
}

func (s *Store) GetDatasource(_ context.Context, id uint64) (datasource.Datasource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.datasources[id]
	if !ok {
		return datasource.Datasource{}, errors.ErrDatasourceNotFound
	}
	return ds.Clone(), nil
}

func (s *Store) ListDatasources(_ context.Context) ([]datasource.Datasource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.datasources))
	for id := range s.datasources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]datasource.Datasource, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.datasources[id].Clone())
	}
	return out, nil
}

func (s *Store) UpdateDatasource(_ context.Context, ds datasource.Datasource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasources[ds.ID]; !ok {
		return errors.ErrDatasourceNotFound
	}
	s.datasources[ds.ID] = ds.Clone()
	s.appendEventLocked(datasource.DomainEvent{
		Type:         datasource.EventDatasourceUpdated,
		DatasourceID: ds.ID,
	})
	return nil
}

func (s *Store) DeleteDatasource(_ context.Context, id uint64) (datasource.Datasource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.datasources[id]
	if !ok {
		return datasource.Datasource{}, errors.ErrDatasourceNotFound
	}
	delete(s.datasources, id)
	delete(s.imports, id)
	s.appendEventLocked(datasource.DomainEvent{
		Type:         datasource.EventDatasourceDeleted,
		DatasourceID: id,
	})
	return ds, nil
}

func (s *Store) DeleteAllDatasources(_ context.Context) ([]datasource.Datasource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.datasources))
	for id := range s.datasources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]datasource.Datasource, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.datasources[id])
		delete(s.datasources, id)
		delete(s.imports, id)
		s.appendEventLocked(datasource.DomainEvent{
			Type:         datasource.EventDatasourceDeleted,
			DatasourceID: id,
		})
	}
	return out, nil
}

func (s *Store) CreateImport(_ context.Context, imp datasource.Import) (datasource.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasources[imp.DatasourceID]; !ok {
		return datasource.Import{}, errors.ErrDatasourceNotFound
	}

	s.nextImpID++
	imp.ID = s.nextImpID
	s.imports[imp.DatasourceID] = append(s.imports[imp.DatasourceID], imp)
	s.appendEventLocked(datasource.DomainEvent{
		Type:         datasource.EventImportSucceeded,
		DatasourceID: imp.DatasourceID,
		Payload:      imp.Metadata().Location,
	})
	return imp, nil
}

func (s *Store) ListImports(_ context.Context, datasourceID uint64) ([]datasource.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]datasource.Import, len(s.imports[datasourceID]))
	copy(out, s.imports[datasourceID])
	return out, nil
}

func (s *Store) GetImport(_ context.Context, datasourceID, importID uint64) (datasource.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, imp := range s.imports[datasourceID] {
		if imp.ID == importID {
			return imp, nil
		}
	}
	return datasource.Import{}, errors.ErrImportNotFound
}

func (s *Store) LatestImport(_ context.Context, datasourceID uint64) (datasource.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	imports := s.imports[datasourceID]
	if len(imports) == 0 {
		return datasource.Import{}, errors.ErrNoImports
	}
	return imports[len(imports)-1], nil
}

func (s *Store) AppendEvent(_ context.Context, ev datasource.DomainEvent) (datasource.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendEventLocked(ev), nil
}

func (s *Store) EventsAfter(_ context.Context, afterID uint64) ([]datasource.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]datasource.DomainEvent, 0)
	for _, ev := range s.events {
		if ev.ID > afterID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) EventsByDatasource(_ context.Context, datasourceID uint64) ([]datasource.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]datasource.DomainEvent, 0)
	for _, ev := range s.events {
		if ev.DatasourceID == datasourceID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) LatestEvent(_ context.Context) (datasource.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return datasource.DomainEvent{}, errors.ErrEventNotFound
	}
	return s.events[len(s.events)-1], nil
}

func (s *Store) GetEvent(_ context.Context, id uint64) (datasource.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range s.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return datasource.DomainEvent{}, errors.ErrEventNotFound
}
