// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package backup

import (
	"fmt"

	"github.com/tomtom215/tenantvault/internal/docstore"
)

// Scope says how a collection's records are tied to a tenant.
type Scope string

const (
	// ScopeTenant selects records whose TenantField equals the tenant id.
	ScopeTenant Scope = "tenant"

	// ScopeIdentity selects the single record whose _id is the tenant id.
	ScopeIdentity Scope = "identity"
)

// DefaultTenantField is the owner field of tenant-scoped collections.
const DefaultTenantField = "userId"

// Collection is one entry of the allow-list.
type Collection struct {
	Name  string
	Scope Scope
	// TenantField defaults to DefaultTenantField for tenant-scoped entries.
	TenantField string
}

func (c Collection) ownerField() string {
	if c.Scope == ScopeIdentity {
		return docstore.IDField
	}
	if c.TenantField == "" {
		return DefaultTenantField
	}
	return c.TenantField
}

// Filter selects the tenant's records in this collection.
func (c Collection) Filter(tenantID string) docstore.Filter {
	return docstore.Filter{c.ownerField(): tenantID}
}

// Owns reports whether doc belongs to tenantID.
func (c Collection) Owns(doc docstore.Document, tenantID string) bool {
	v, ok := doc[c.ownerField()].(string)
	return ok && v == tenantID
}

// CollectionSpec is the allow-list of collections backed up and restored.
// Nothing outside it is ever read or written.
type CollectionSpec struct {
	Collections []Collection
}

// DefaultCollectionSpec returns the storefront allow-list.
func DefaultCollectionSpec() CollectionSpec {
	return CollectionSpec{Collections: []Collection{
		{Name: "users", Scope: ScopeIdentity},
		{Name: "settings", Scope: ScopeTenant},
		{Name: "customers", Scope: ScopeTenant},
		{Name: "products", Scope: ScopeTenant},
		{Name: "orders", Scope: ScopeTenant},
		{Name: "invoices", Scope: ScopeTenant},
		{Name: "invoice_templates", Scope: ScopeTenant},
	}}
}

var bookkeeping = map[string]bool{
	ArchivesCollection:   true,
	RestoreLogCollection: true,
	LeasesCollection:     true,
}

// Validate checks names are unique, non-empty and not bookkeeping
// collections.
func (s CollectionSpec) Validate() error {
	if len(s.Collections) == 0 {
		return fmt.Errorf("collection spec is empty")
	}
	seen := make(map[string]bool, len(s.Collections))
	for _, c := range s.Collections {
		switch {
		case c.Name == "":
			return fmt.Errorf("collection spec: empty collection name")
		case seen[c.Name]:
			return fmt.Errorf("collection spec: %q listed twice", c.Name)
		case bookkeeping[c.Name]:
			return fmt.Errorf("collection spec: %q is reserved for backup bookkeeping", c.Name)
		case c.Scope != ScopeTenant && c.Scope != ScopeIdentity:
			return fmt.Errorf("collection spec: %q has unknown scope %q", c.Name, c.Scope)
		}
		seen[c.Name] = true
	}
	return nil
}

// Names returns the collection names in spec order.
func (s CollectionSpec) Names() []string {
	names := make([]string, len(s.Collections))
	for i, c := range s.Collections {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the entry for name.
func (s CollectionSpec) Lookup(name string) (Collection, bool) {
	for _, c := range s.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}
