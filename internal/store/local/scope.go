package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
)

// DefaultNamespace prefixes every key when none is configured.
const DefaultNamespace = "portfolio"

// Per-account fields.
const (
	FieldAssets     = "assets"
	FieldJournal    = "journal"
	FieldOrders     = "orders"
	FieldRecycled   = "recycled"
	FieldTarget     = "target"
	FieldSnapshots  = "snapshots"
	FieldTombstones = "tombstones"
)

// Global fields.
const (
	FieldActiveAccount = "activeAccount"
	FieldAlerts        = "alerts"
)

var fieldSchemas = map[string]string{
	FieldAssets:        domain.SchemaAssets,
	FieldJournal:       domain.SchemaJournal,
	FieldOrders:        domain.SchemaOrders,
	FieldRecycled:      domain.SchemaRecycled,
	FieldTarget:        domain.SchemaTarget,
	FieldSnapshots:     domain.SchemaSnapshots,
	FieldTombstones:    domain.SchemaTombstones,
	FieldActiveAccount: domain.SchemaActiveAccount,
	FieldAlerts:        domain.SchemaAlerts,
}

// Scope stores typed, schema-tagged values in a LocalStore under
// "{namespace}_{accountId}_{field}" and "{namespace}_{field}".
type Scope struct {
	store domain.LocalStore
	ns    string
}

// NewScope creates a Scope. An empty namespace uses DefaultNamespace.
func NewScope(store domain.LocalStore, namespace string) *Scope {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Scope{store: store, ns: namespace}
}

// Namespace returns the key namespace.
func (s *Scope) Namespace() string { return s.ns }

// Key returns the per-account key for field.
func (s *Scope) Key(id domain.AccountID, field string) string {
	return s.ns + "_" + string(id) + "_" + field
}

// GlobalKey returns the key for a field that is not scoped to an account.
func (s *Scope) GlobalKey(field string) string {
	return s.ns + "_" + field
}

// Load decodes the account field into v. It reports false when the key is
// absent. A value with the wrong schema or version returns an error wrapping
// domain.ErrSchemaMismatch; callers treat that like an absent value.
func (s *Scope) Load(ctx context.Context, id domain.AccountID, field string, v any) (bool, error) {
	return s.load(ctx, s.Key(id, field), field, v)
}

// Save encodes v into the account field.
func (s *Scope) Save(ctx context.Context, id domain.AccountID, field string, v any) error {
	return s.save(ctx, s.Key(id, field), field, v)
}

// LoadGlobal is Load for a global field.
func (s *Scope) LoadGlobal(ctx context.Context, field string, v any) (bool, error) {
	return s.load(ctx, s.GlobalKey(field), field, v)
}

// SaveGlobal is Save for a global field.
func (s *Scope) SaveGlobal(ctx context.Context, field string, v any) error {
	return s.save(ctx, s.GlobalKey(field), field, v)
}

// ClearAccount deletes every field stored for id.
func (s *Scope) ClearAccount(ctx context.Context, id domain.AccountID) error {
	keys, err := s.store.Keys(ctx, s.ns+"_"+string(id)+"_")
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, keys...)
}

func (s *Scope) load(ctx context.Context, key, field string, v any) (bool, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := domain.DecodeEnvelope(raw, schemaFor(field), v); err != nil {
		return false, fmt.Errorf("local: %s: %w", key, err)
	}
	return true, nil
}

func (s *Scope) save(ctx context.Context, key, field string, v any) error {
	raw, err := domain.EncodeEnvelope(schemaFor(field), v)
	if err != nil {
		return fmt.Errorf("local: %s: %w", key, err)
	}
	return s.store.Put(ctx, key, raw)
}

func schemaFor(field string) string {
	if sc, ok := fieldSchemas[field]; ok {
		return sc
	}
	return "ledger." + field
}
