package types

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/cottand/occur/internal/failure"
	"github.com/cottand/occur/util"
)

// Arena holds named type definitions and struct declarations.
//
// Definitions may refer to each other, and to themselves, through Ref.
// An Arena is filled before checking starts and only read afterward,
// so it can be shared by any number of environments.
type Arena struct {
	defs map[string]Type
	// structs maps a struct name to its declared parent, "" for roots
	structs map[string]string
}

func NewArena() *Arena {
	return &Arena{
		defs:    make(map[string]Type),
		structs: make(map[string]string),
	}
}

// Define binds name to t and returns a reference to it
func (a *Arena) Define(name string, t Type) Ref {
	if _, ok := a.defs[name]; ok {
		failure.Raise("type %s is already defined", name)
	}
	a.defs[name] = t
	return Ref{Name: name}
}

// Lookup returns the definition of name without unfolding it
func (a *Arena) Lookup(name string) (Type, bool) {
	if a == nil {
		return nil, false
	}
	t, ok := a.defs[name]
	return t, ok
}

// DeclareStruct records that struct name inherits from parent.
// parent must have been declared before, or be "" for a root struct.
func (a *Arena) DeclareStruct(name, parent string) {
	if _, ok := a.structs[name]; ok {
		failure.Raise("struct %s is already declared", name)
	}
	if _, ok := a.structs[parent]; parent != "" && !ok {
		failure.Raise("struct %s inherits from undeclared struct %s", name, parent)
	}
	a.structs[name] = parent
}

// Ancestors returns name and every struct it inherits from.
// Undeclared structs have no ancestors besides themselves.
func (a *Arena) Ancestors(name string) *set.Set[string] {
	ancestors := set.New[string](2)
	for current := name; current != ""; {
		ancestors.Insert(current)
		if a == nil {
			break
		}
		current = a.structs[current]
	}
	return ancestors
}

// IsStructSubtype reports whether struct sub is super or inherits from it
func (a *Arena) IsStructSubtype(sub, super string) bool {
	return a.Ancestors(sub).Contains(super)
}

// Resolve unfolds Ref heads until t is a structural type.
// Only the head is unfolded: references nested inside the result are left as they are.
func (a *Arena) Resolve(t Type) Type {
	ref, ok := t.(Ref)
	if !ok {
		return t
	}
	visited := util.NewEmptySet[string]()
	for ok {
		if visited.Contains(ref.Name) {
			failure.Raise("type alias cycle through %s", ref.Name)
		}
		visited.Add(ref.Name)
		def, found := a.Lookup(ref.Name)
		if !found {
			failure.Raise("reference to undefined type %s", ref.Name)
		}
		t = def
		ref, ok = t.(Ref)
	}
	return t
}
