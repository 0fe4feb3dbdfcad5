// Package datasource owns datasource configuration, the immutable import
// history, the append-only domain event log, and the trigger engine that
// executes the fetch -> interpret -> validate -> persist -> publish
// pipeline. Storage and broker access go through ports supplied at
// construction time.
package datasource

import (
	"encoding/json"
	"fmt"
	"time"
)

// HealthStatus classifies an import based on schema conformance.
type HealthStatus string

// Health verdicts. FAILED is assigned when a schema is configured but the
// payload cannot be parsed for schema checking at all; plain schema
// violations downgrade to WARNING only.
const (
	HealthOK      HealthStatus = "OK"
	HealthWarning HealthStatus = "WARNING"
	HealthFailed  HealthStatus = "FAILED"
)

// PluginConfig names a plugin and carries its parameter map. The map is
// always present, possibly empty, never nil after normalization.
type PluginConfig struct {
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
}

// clone deep-copies the parameter map so trigger invocations never alias
// stored configuration.
func (p PluginConfig) clone() PluginConfig {
	return PluginConfig{Type: p.Type, Parameters: copyParameters(p.Parameters)}
}

// Metadata carries descriptive datasource fields. CreationTimestamp is
// documented by the server and survives updates.
type Metadata struct {
	Author            string    `json:"author"`
	License           string    `json:"license"`
	DisplayName       string    `json:"displayName"`
	Description       string    `json:"description"`
	CreationTimestamp time.Time `json:"creationTimestamp"`
}

// Trigger stores scheduling metadata. Firing it is an external concern;
// the adapter only persists it.
type Trigger struct {
	Periodic       bool          `json:"periodic"`
	FirstExecution time.Time     `json:"firstExecution"`
	Interval       time.Duration `json:"interval,omitempty"`
}

// Datasource is a configured external source. It owns zero or more
// imports and is mutated only by full replacement.
type Datasource struct {
	ID       uint64          `json:"id"`
	Protocol PluginConfig    `json:"protocol"`
	Format   PluginConfig    `json:"format"`
	Metadata Metadata        `json:"metadata"`
	Trigger  Trigger         `json:"trigger"`
	Schema   json.RawMessage `json:"schema,omitempty"`
}

// Clone returns a deep copy safe to hand across goroutines.
func (d Datasource) Clone() Datasource {
	out := d
	out.Protocol = d.Protocol.clone()
	out.Format = d.Format.clone()
	if d.Schema != nil {
		out.Schema = append(json.RawMessage(nil), d.Schema...)
	}
	return out
}

// Normalize guarantees the always-present-parameter-map invariant.
func (d *Datasource) Normalize() {
	if d.Protocol.Parameters == nil {
		d.Protocol.Parameters = map[string]any{}
	}
	if d.Format.Parameters == nil {
		d.Format.Parameters = map[string]any{}
	}
}

// Import is one immutable record of interpreted payload data. It is never
// updated, only appended.
type Import struct {
	ID            uint64       `json:"id"`
	DatasourceID  uint64       `json:"datasourceId"`
	Data          string       `json:"data"`
	Timestamp     time.Time    `json:"timestamp"`
	Health        HealthStatus `json:"health"`
	ErrorMessages []string     `json:"errorMessages"`
}

// Metadata returns the import's projection without the payload, which is
// what trigger responses and import listings carry.
func (i Import) Metadata() ImportMetadata {
	return ImportMetadata{
		ID:            i.ID,
		DatasourceID:  i.DatasourceID,
		Timestamp:     i.Timestamp,
		Health:        i.Health,
		ErrorMessages: i.ErrorMessages,
		Location:      fmt.Sprintf("/datasources/%d/imports/%d/data", i.DatasourceID, i.ID),
	}
}

// ImportMetadata is the payload-free representation of an import.
type ImportMetadata struct {
	ID            uint64       `json:"id"`
	DatasourceID  uint64       `json:"datasourceId"`
	Timestamp     time.Time    `json:"timestamp"`
	Health        HealthStatus `json:"health"`
	ErrorMessages []string     `json:"errorMessages,omitempty"`
	Location      string       `json:"location"`
}

// RuntimeParameters is the transient key-value map supplied at trigger
// time. It is consumed to compute an effective protocol parameter set for
// one invocation and never persisted.
type RuntimeParameters map[string]string

// EventType identifies the kind of a domain event.
type EventType string

// Domain event kinds.
const (
	EventDatasourceCreated EventType = "DATASOURCE_CREATED"
	EventDatasourceUpdated EventType = "DATASOURCE_UPDATED"
	EventDatasourceDeleted EventType = "DATASOURCE_DELETED"
	EventImportSucceeded   EventType = "IMPORT_SUCCEEDED"
	EventImportFailed      EventType = "IMPORT_FAILED"
)

// DomainEvent is one entry of the append-only log consumers poll for
// incremental synchronization. IDs are storage-assigned, strictly
// increasing, and gap-tolerant.
type DomainEvent struct {
	ID           uint64    `json:"eventId"`
	Type         EventType `json:"eventType"`
	DatasourceID uint64    `json:"datasourceId"`
	// Payload carries the data location for IMPORT_SUCCEEDED and the
	// error text for IMPORT_FAILED; empty for config events.
	Payload string `json:"payload,omitempty"`
}

// copyParameters returns a shallow-copied parameter map with nested
// string maps copied one level deep, which covers every declared
// parameter type.
func copyParameters(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch nested := v.(type) {
		case map[string]any:
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
		case map[string]string:
			inner := make(map[string]string, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
		default:
			out[k] = v
		}
	}
	return out
}
