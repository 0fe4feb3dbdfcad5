// Package natskv persists datasources, imports, and the event log in
// JetStream key-value buckets so state survives adapter restarts.
//
// Unlike the in-memory store there is no transaction spanning an entity
// write and its event append; a crash between the two can leave an entity
// without its log entry. Event ids come from a CAS counter, so they stay
// strictly increasing across restarts even when that window is hit, and
// readers tolerate the resulting gaps.
package natskv

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/jvalue/ods-adapter/datasource"
	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/pkg/retry"
)

// Bucket names the store binds on startup.
const (
	BucketDatasources = "ods-datasources"
	BucketImports     = "ods-imports"
	BucketEvents      = "ods-events"
)

const seqKey = "seq"

// KV keys cannot contain '/', so compound keys use dots. Event keys
// zero-pad the id to keep lexicographic and numeric order identical.
func datasourceKey(id uint64) string { return fmt.Sprintf("ds.%d", id) }

func importKey(datasourceID, importID uint64) string {
	return fmt.Sprintf("imp.%d.%d", datasourceID, importID)
}

func importPrefix(datasourceID uint64) string { return fmt.Sprintf("imp.%d.", datasourceID) }

func eventKey(id uint64) string { return fmt.Sprintf("ev.%020d", id) }

// Buckets groups the three KV buckets the store works against.
type Buckets struct {
	Datasources jetstream.KeyValue
	Imports     jetstream.KeyValue
	Events      jetstream.KeyValue
}

// BucketProvider creates or binds a named bucket, satisfied by
// natsclient.Client.
type BucketProvider interface {
	KeyValue(ctx context.Context, bucket string) (jetstream.KeyValue, error)
}

// Store implements the datasource persistence port on JetStream KV.
type Store struct {
	buckets  Buckets
	casRetry retry.Config
}

// New binds the three adapter buckets through the provider.
func New(ctx context.Context, provider BucketProvider) (*Store, error) {
	datasources, err := provider.KeyValue(ctx, BucketDatasources)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "New", "datasource bucket setup")
	}
	imports, err := provider.KeyValue(ctx, BucketImports)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "New", "import bucket setup")
	}
	events, err := provider.KeyValue(ctx, BucketEvents)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "New", "event bucket setup")
	}
	return NewWithBuckets(Buckets{Datasources: datasources, Imports: imports, Events: events}), nil
}

// NewWithBuckets wires the store to already bound buckets.
func NewWithBuckets(buckets Buckets) *Store {
	return &Store{
		buckets: buckets,
		casRetry: retry.Config{
			MaxAttempts:  10,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		},
	}
}

// nextID advances a bucket's CAS counter and returns the new value.
// Concurrent writers collide on the revision check and retry.
func (s *Store) nextID(ctx context.Context, bucket jetstream.KeyValue) (uint64, error) {
	return retry.DoWithResult(ctx, s.casRetry, func() (uint64, error) {
		entry, err := bucket.Get(ctx, seqKey)
		if err != nil {
			if !isKeyNotFound(err) {
				return 0, err
			}
			if _, err := bucket.Create(ctx, seqKey, []byte("1")); err != nil {
				return 0, err
			}
			return 1, nil
		}

		current, err := strconv.ParseUint(string(entry.Value()), 10, 64)
		if err != nil {
			return 0, retry.NonRetryable(fmt.Errorf("corrupt sequence value %q: %w", entry.Value(), err))
		}
		next := current + 1
		if _, err := bucket.Update(ctx, seqKey, []byte(strconv.FormatUint(next, 10)), entry.Revision()); err != nil {
			return 0, err
		}
		return next, nil
	})
}

func isKeyNotFound(err error) bool {
	return stderrors.Is(err, jetstream.ErrKeyNotFound)
}

func (s *Store) putJSON(ctx context.Context, bucket jetstream.KeyValue, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = bucket.Put(ctx, key, data)
	return err
}

func (s *Store) appendEvent(ctx context.Context, ev datasource.DomainEvent) (datasource.DomainEvent, error) {
	id, err := s.nextID(ctx, s.buckets.Events)
	if err != nil {
		return datasource.DomainEvent{}, err
	}
	ev.ID = id
	if err := s.putJSON(ctx, s.buckets.Events, eventKey(id), ev); err != nil {
		return datasource.DomainEvent{}, err
	}
	return ev, nil
}

func (s *Store) CreateDatasource(ctx context.Context, ds datasource.Datasource) (datasource.Datasource, error) {
	id, err := s.nextID(ctx, s.buckets.Datasources)
	if err != nil {
		return datasource.Datasource{}, errors.WrapTransient(err, "Store", "CreateDatasource", "id assignment")
	}
	ds.ID = id
	if err := s.putJSON(ctx, s.buckets.Datasources, datasourceKey(id), ds); err != nil {
		return datasource.Datasource{}, errors.WrapTransient(err, "Store", "CreateDatasource", "kv write")
	}
	if _, err := s.appendEvent(ctx, datasource.DomainEvent{
		Type:         datasource.EventDatasourceCreated,
		DatasourceID: id,
	}); err != nil {
		return datasource.Datasource{}, errors.WrapTransient(err, "Store", "CreateDatasource", "event append")
	}
	return ds, nil
}

func (s *Store) GetDatasource(ctx context.Context, id uint64) (datasource.Datasource, error) {
	entry, err := s.buckets.Datasources.Get(ctx, datasourceKey(id))
	if err != nil {
		if isKeyNotFound(err) {
			return datasource.Datasource{}, errors.ErrDatasourceNotFound
		}
		return datasource.Datasource{}, errors.WrapTransient(err, "Store", "GetDatasource", "kv read")
	}

	var ds datasource.Datasource
	if err := json.Unmarshal(entry.Value(), &ds); err != nil {
		return datasource.Datasource{}, errors.WrapFatal(err, "Store", "GetDatasource", "decoding")
	}
	return ds, nil
}

func (s *Store) ListDatasources(ctx context.Context) ([]datasource.Datasource, error) {
	keys, err := s.listKeys(ctx, s.buckets.Datasources, "ds.")
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "ListDatasources", "key listing")
	}

	out := make([]datasource.Datasource, 0, len(keys))
	for _, key := range keys {
		entry, err := s.buckets.Datasources.Get(ctx, key)
		if err != nil {
			if isKeyNotFound(err) {
				continue
			}
			return nil, errors.WrapTransient(err, "Store", "ListDatasources", "kv read")
		}
		var ds datasource.Datasource
		if err := json.Unmarshal(entry.Value(), &ds); err != nil {
			return nil, errors.WrapFatal(err, "Store", "ListDatasources", "decoding")
		}
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateDatasource(ctx context.Context, ds datasource.Datasource) error {
	if _, err := s.GetDatasource(ctx, ds.ID); err != nil {
		return err
	}
	if err := s.putJSON(ctx, s.buckets.Datasources, datasourceKey(ds.ID), ds); err != nil {
		return errors.WrapTransient(err, "Store", "UpdateDatasource", "kv write")
	}
	if _, err := s.appendEvent(ctx, datasource.DomainEvent{
		Type:         datasource.EventDatasourceUpdated,
		DatasourceID: ds.ID,
	}); err != nil {
		return errors.WrapTransient(err, "Store", "UpdateDatasource", "event append")
	}
	return nil
}

func (s *Store) DeleteDatasource(ctx context.Context, id uint64) (datasource.Datasource, error) {
	ds, err := s.GetDatasource(ctx, id)
	if err != nil {
		return datasource.Datasource{}, err
	}

	if err := s.buckets.Datasources.Delete(ctx, datasourceKey(id)); err != nil && !isKeyNotFound(err) {
		return datasource.Datasource{}, errors.WrapTransient(err, "Store", "DeleteDatasource", "kv delete")
	}
	if err := s.deleteImports(ctx, id); err != nil {
		return datasource.Datasource{}, errors.WrapTransient(err, "Store", "DeleteDatasource", "import cleanup")
	}
	if _, err := s.appendEvent(ctx, datasource.DomainEvent{
		Type:         datasource.EventDatasourceDeleted,
		DatasourceID: id,
	}); err != nil {
		return datasource.Datasource{}, errors.WrapTransient(err, "Store", "DeleteDatasource", "event append")
	}
	return ds, nil
}

func (s *Store) DeleteAllDatasources(ctx context.Context) ([]datasource.Datasource, error) {
	all, err := s.ListDatasources(ctx)
	if err != nil {
		return nil, err
	}

	for _, ds := range all {
		if _, err := s.DeleteDatasource(ctx, ds.ID); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (s *Store) deleteImports(ctx context.Context, datasourceID uint64) error {
	keys, err := s.listKeys(ctx, s.buckets.Imports, importPrefix(datasourceID))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.buckets.Imports.Delete(ctx, key); err != nil && !isKeyNotFound(err) {
			return err
		}
	}
	return nil
}

func (s *Store) CreateImport(ctx context.Context, imp datasource.Import) (datasource.Import, error) {
	if _, err := s.GetDatasource(ctx, imp.DatasourceID); err != nil {
		return datasource.Import{}, err
	}

	id, err := s.nextID(ctx, s.buckets.Imports)
	if err != nil {
		return datasource.Import{}, errors.WrapTransient(err, "Store", "CreateImport", "id assignment")
	}
	imp.ID = id
	if err := s.putJSON(ctx, s.buckets.Imports, importKey(imp.DatasourceID, id), imp); err != nil {
		return datasource.Import{}, errors.WrapTransient(err, "Store", "CreateImport", "kv write")
	}
	if _, err := s.appendEvent(ctx, datasource.DomainEvent{
		Type:         datasource.EventImportSucceeded,
		DatasourceID: imp.DatasourceID,
		Payload:      imp.Metadata().Location,
	}); err != nil {
		return datasource.Import{}, errors.WrapTransient(err, "Store", "CreateImport", "event append")
	}
	return imp, nil
}

func (s *Store) ListImports(ctx context.Context, datasourceID uint64) ([]datasource.Import, error) {
	keys, err := s.listKeys(ctx, s.buckets.Imports, importPrefix(datasourceID))
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "ListImports", "key listing")
	}

	out := make([]datasource.Import, 0, len(keys))
	for _, key := range keys {
		entry, err := s.buckets.Imports.Get(ctx, key)
		if err != nil {
			if isKeyNotFound(err) {
				continue
			}
			return nil, errors.WrapTransient(err, "Store", "ListImports", "kv read")
		}
		var imp datasource.Import
		if err := json.Unmarshal(entry.Value(), &imp); err != nil {
			return nil, errors.WrapFatal(err, "Store", "ListImports", "decoding")
		}
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetImport(ctx context.Context, datasourceID, importID uint64) (datasource.Import, error) {
	entry, err := s.buckets.Imports.Get(ctx, importKey(datasourceID, importID))
	if err != nil {
		if isKeyNotFound(err) {
			return datasource.Import{}, errors.ErrImportNotFound
		}
		return datasource.Import{}, errors.WrapTransient(err, "Store", "GetImport", "kv read")
	}

	var imp datasource.Import
	if err := json.Unmarshal(entry.Value(), &imp); err != nil {
		return datasource.Import{}, errors.WrapFatal(err, "Store", "GetImport", "decoding")
	}
	return imp, nil
}

func (s *Store) LatestImport(ctx context.Context, datasourceID uint64) (datasource.Import, error) {
	imports, err := s.ListImports(ctx, datasourceID)
	if err != nil {
		return datasource.Import{}, err
	}
	if len(imports) == 0 {
		return datasource.Import{}, errors.ErrNoImports
	}
	return imports[len(imports)-1], nil
}

func (s *Store) AppendEvent(ctx context.Context, ev datasource.DomainEvent) (datasource.DomainEvent, error) {
	appended, err := s.appendEvent(ctx, ev)
	if err != nil {
		return datasource.DomainEvent{}, errors.WrapTransient(err, "Store", "AppendEvent", "event append")
	}
	return appended, nil
}

func (s *Store) EventsAfter(ctx context.Context, afterID uint64) ([]datasource.DomainEvent, error) {
	events, err := s.listEvents(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]datasource.DomainEvent, 0, len(events))
	for _, ev := range events {
		if ev.ID > afterID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) EventsByDatasource(ctx context.Context, datasourceID uint64) ([]datasource.DomainEvent, error) {
	events, err := s.listEvents(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]datasource.DomainEvent, 0)
	for _, ev := range events {
		if ev.DatasourceID == datasourceID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) LatestEvent(ctx context.Context) (datasource.DomainEvent, error) {
	events, err := s.listEvents(ctx)
	if err != nil {
		return datasource.DomainEvent{}, err
	}
	if len(events) == 0 {
		return datasource.DomainEvent{}, errors.ErrEventNotFound
	}
	return events[len(events)-1], nil
}

func (s *Store) GetEvent(ctx context.Context, id uint64) (datasource.DomainEvent, error) {
	entry, err := s.buckets.Events.Get(ctx, eventKey(id))
	if err != nil {
		if isKeyNotFound(err) {
			return datasource.DomainEvent{}, errors.ErrEventNotFound
		}
		return datasource.DomainEvent{}, errors.WrapTransient(err, "Store", "GetEvent", "kv read")
	}

	var ev datasource.DomainEvent
	if err := json.Unmarshal(entry.Value(), &ev); err != nil {
		return datasource.DomainEvent{}, errors.WrapFatal(err, "Store", "GetEvent", "decoding")
	}
	return ev, nil
}

// listEvents returns the whole event log in id order. Zero-padded keys
// make the lexicographic sort numeric.
func (s *Store) listEvents(ctx context.Context) ([]datasource.DomainEvent, error) {
	keys, err := s.listKeys(ctx, s.buckets.Events, "ev.")
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "listEvents", "key listing")
	}
	sort.Strings(keys)

	out := make([]datasource.DomainEvent, 0, len(keys))
	for _, key := range keys {
		entry, err := s.buckets.Events.Get(ctx, key)
		if err != nil {
			if isKeyNotFound(err) {
				continue
			}
			return nil, errors.WrapTransient(err, "Store", "listEvents", "kv read")
		}
		var ev datasource.DomainEvent
		if err := json.Unmarshal(entry.Value(), &ev); err != nil {
			return nil, errors.WrapFatal(err, "Store", "listEvents", "decoding")
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) listKeys(ctx context.Context, bucket jetstream.KeyValue, prefix string) ([]string, error) {
	lister, err := bucket.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
