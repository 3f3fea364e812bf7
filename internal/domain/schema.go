package domain

import (
	"encoding/json"
	"fmt"
)

// Schema names for persisted payloads.
const (
	SchemaAssets        = "ledger.assets"
	SchemaJournal       = "ledger.journal"
	SchemaOrders        = "ledger.orders"
	SchemaRecycled      = "ledger.recycled"
	SchemaTarget        = "ledger.target"
	SchemaTombstones    = "ledger.tombstones"
	SchemaAlerts        = "ledger.alerts"
	SchemaSnapshots     = "ledger.snapshots"
	SchemaActiveAccount = "ledger.active_account"
	SchemaBackup        = "ledger.backup"
)

// SchemaVersion is the current version of every persisted schema.
const SchemaVersion = 1

// Envelope wraps a persisted payload with its schema tag.
type Envelope struct {
	Schema  string          `json:"schema"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// EncodeEnvelope marshals v and wraps it in an Envelope for schema.
func EncodeEnvelope(schema string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", schema, err)
	}
	return json.Marshal(Envelope{Schema: schema, Version: SchemaVersion, Data: data})
}

// DecodeEnvelope unwraps raw into v. It returns ErrSchemaMismatch when raw is
// not an envelope of the expected schema and version or its data does not
// decode into v.
func DecodeEnvelope(raw []byte, schema string, v any) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s: %v: %w", schema, err, ErrSchemaMismatch)
	}
	if env.Schema != schema || env.Version != SchemaVersion {
		return fmt.Errorf("decode %s: got %s v%d: %w", schema, env.Schema, env.Version, ErrSchemaMismatch)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %v: %w", schema, err, ErrSchemaMismatch)
	}
	return nil
}
