// Package odsadapter is the data-import execution service of the Open Data
// Service: it fetches data from external sources on demand, normalizes it
// into a common JSON representation, validates it against per-source
// schemas, records an immutable import history, and announces every
// outcome to downstream consumers.
//
// # Architecture
//
// The service is built from small, explicitly wired packages:
//
//   - protocol: pluggable importers that fetch raw text from a named
//     source (HTTP today, extensible by registration)
//   - format: pluggable interpreters that turn raw text into structured
//     JSON (JSON, XML, CSV, RAW)
//   - params: the shared parameter-description and validation contract
//     enforced by every plugin
//   - datasource: datasource configuration, runtime parameter templating,
//     schema-based health validation, and the trigger engine that runs the
//     fetch -> interpret -> validate -> persist -> publish pipeline
//   - storage: persistence ports with in-memory and NATS JetStream KV
//     backends
//   - publisher: at-least-once event delivery to NATS with bounded retry
//
// Construction is explicit: the trigger engine receives its storage,
// registry, and publisher ports at construction time. There is no
// dependency container and no package-level wiring.
//
// # Reliability model
//
// Every configuration change and import outcome appends a DomainEvent to
// an append-only, monotonically increasing log that consumers poll for
// incremental synchronization. Independently, the same outcome is pushed
// to the broker with a fixed-backoff retry budget; once the budget is
// exhausted the event is logged and dropped, never failing the operation
// that produced it.
package odsadapter
