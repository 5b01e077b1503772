package oauth2

import (
	"context"
	"errors"
	"strings"
)

// Scope identifiers. The catalog is closed: adding a scope means extending it
// here, not registering one at runtime.
const (
	ScopeRead                       = "read"
	ScopePost                       = "post"
	ScopeManageAccountSettings      = "usercp"
	ScopeParticipateInConversations = "conversate"
	ScopeManageSystem               = "admincp"
)

// Scope is a named permission unit with a human description.
type Scope struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// ScopeSet is an ordered set of scopes. Entries are unique by ID.
type ScopeSet []Scope

// Has reports whether the set contains the scope with the given id.
func (s ScopeSet) Has(id string) bool {
	for _, sc := range s {
		if sc.ID == id {
			return true
		}
	}
	return false
}

// IDs returns the scope identifiers in order.
func (s ScopeSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for _, sc := range s {
		ids = append(ids, sc.ID)
	}
	return ids
}

// Join renders the set in wire format using the given delimiter.
func (s ScopeSet) Join(delimiter string) string {
	return strings.Join(s.IDs(), delimiter)
}

// SubsetOf reports whether every scope in s is present in other.
func (s ScopeSet) SubsetOf(other ScopeSet) bool {
	for _, sc := range s {
		if !other.Has(sc.ID) {
			return false
		}
	}
	return true
}

// Intersect returns the scopes of s that are also present in other,
// preserving the order of s.
func (s ScopeSet) Intersect(other ScopeSet) ScopeSet {
	var out ScopeSet
	for _, sc := range s {
		if other.Has(sc.ID) {
			out = append(out, sc)
		}
	}
	return out
}

func (s ScopeSet) add(sc Scope) ScopeSet {
	if s.Has(sc.ID) {
		return s
	}
	return append(s, sc)
}

// ScopeCatalog is the fixed scope catalog backing the ScopeStorage contract.
type ScopeCatalog struct {
	byID map[string]Scope
}

// NewScopeCatalog builds the catalog with the five known scopes.
func NewScopeCatalog() *ScopeCatalog {
	entries := []Scope{
		{ID: ScopeRead, Description: "Read forum content and account data"},
		{ID: ScopePost, Description: "Create and edit posts"},
		{ID: ScopeManageAccountSettings, Description: "Manage account settings"},
		{ID: ScopeParticipateInConversations, Description: "Read and reply to private conversations"},
		{ID: ScopeManageSystem, Description: "Administer the system"},
	}
	byID := make(map[string]Scope, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	return &ScopeCatalog{byID: byID}
}

// Get implements ScopeStorage over the fixed catalog.
func (c *ScopeCatalog) Get(ctx context.Context, id string) (*Scope, error) {
	sc, ok := c.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sc, nil
}

// ResolveScopes converts a wire-format scope string into scope entities.
// Unknown identifiers are dropped silently. An empty raw string resolves to
// the default scope.
func ResolveScopes(ctx context.Context, scopes ScopeStorage, raw, delimiter, defaultScope string) (ScopeSet, error) {
	if strings.TrimSpace(raw) == "" {
		raw = defaultScope
	}
	var out ScopeSet
	for _, id := range strings.Split(raw, delimiter) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		sc, err := scopes.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = out.add(*sc)
	}
	return out, nil
}
