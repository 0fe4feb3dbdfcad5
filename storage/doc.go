// Package storage groups the persistence backends behind the datasource
// Store port.
//
// Two implementations exist:
//   - memstore: mutex-guarded in-process maps, atomic event pairing,
//     used by tests and storage.mode "memory"
//   - natskv: JetStream key-value buckets with CAS-assigned event ids,
//     used by storage.mode "kv"
//
// The port itself is defined consumer-side in the datasource package, so
// backends depend on the domain model and not the other way around.
package storage
