// Package scope decides which notes a request may see or change. A public
// scope covers notes without an owner; an owner scope covers exactly the
// notes of one user.
package scope

import (
	"aether-notes/models"
)

type Scope struct {
	owner models.ID
	set   bool
}

func Public() Scope {
	return Scope{}
}

func Owner(id models.ID) Scope {
	return Scope{owner: id, set: true}
}

func (s Scope) IsPublic() bool {
	return !s.set
}

// Owner is the owner reference written on notes created in this scope.
func (s Scope) Owner() *models.ID {
	if !s.set {
		return nil
	}
	id := s.owner
	return &id
}

// Allows reports whether a note owned by owner belongs to the scope.
func (s Scope) Allows(owner *models.ID) bool {
	if !s.set {
		return owner == nil
	}
	return owner != nil && *owner == s.owner
}

// Where renders the scope as a SQL predicate on column.
func (s Scope) Where(column string) (string, []any) {
	if !s.set {
		return column + " IS NULL", nil
	}
	return column + " = ?", []any{int64(s.owner)}
}

func (s Scope) String() string {
	if !s.set {
		return "public"
	}
	return "user:" + s.owner.String()
}
