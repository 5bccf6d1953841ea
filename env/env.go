// Package env implements the lexical environment of occurrence typing: the
// types of bound identifiers, the propositions known to hold and the aliases
// between identifiers and the objects they were bound to.
//
// An Env is persistent. Every operation returns a new Env and leaves the
// receiver untouched, so environments of enclosing scopes remain valid and
// can be shared between readers.
package env

import (
	"github.com/benbjohnson/immutable"
	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"

	"github.com/cottand/occur/internal/failure"
	"github.com/cottand/occur/internal/log"
	"github.com/cottand/occur/paths"
	"github.com/cottand/occur/refine"
	"github.com/cottand/occur/types"
)

var logger = log.DefaultLogger.With("section", "env")

// ErrUnbound is returned, wrapped, when looking up an identifier that is not lexically bound.
// Callers are expected to continue the lookup in outer, non lexical, scopes.
var ErrUnbound = errors.New("identifier is not lexically bound")

// Proposition claims that the value denoted by Object is (Positive) or is not
// a value of Type
type Proposition struct {
	Object   paths.Object
	Type     types.Type
	Positive bool
}

func (p Proposition) String() string {
	if p.Positive {
		return p.Object.String() + " : " + p.Type.String()
	}
	return p.Object.String() + " !: " + p.Type.String()
}

func (p Proposition) Hash() uint64 {
	hash := p.Object.Hash()*31 ^ p.Type.Hash()
	if p.Positive {
		hash = ^hash
	}
	return hash
}

// PropositionSource may be implemented by a types.Prop attached to a type.
// When an identifier of such a type is bound, the propositions it produces
// about the identifier's object become known.
type PropositionSource interface {
	types.Prop
	Instantiate(obj paths.Object) []Proposition
}

type Env struct {
	engine  *refine.Engine
	types   *immutable.Map[string, types.Type]
	props   *immutable.List[Proposition]
	aliases *immutable.Map[paths.Object, paths.Object]
}

// New returns an empty environment refining types with engine
func New(engine *refine.Engine) Env {
	return Env{
		engine:  engine,
		types:   immutable.NewMap[string, types.Type](immutable.NewHasher("")),
		props:   immutable.NewList[Proposition](),
		aliases: immutable.NewMap[paths.Object, paths.Object](paths.ObjectHasher{}),
	}
}

func (e Env) Engine() *refine.Engine { return e.engine }

// Bound reports whether id is lexically bound in e
func (e Env) Bound(id string) bool {
	_, ok := e.types.Get(id)
	return ok
}

// LookupType returns the current type of id.
// When id is an alias of an object, that object's current type is taken into account.
func (e Env) LookupType(id string) (types.Type, error) {
	if !e.Bound(id) {
		return nil, errors.Wrapf(ErrUnbound, "lookup %s", id)
	}
	return e.LookupObjectType(paths.VarObject(id)), nil
}

// LookupObjectType returns the current type of the value denoted by obj.
// Roots that are opaque or not lexically bound are assumed to be Top.
func (e Env) LookupObjectType(obj paths.Object) types.Type {
	own := types.Top
	if name, ok := obj.VarName(); ok {
		if t, ok := e.types.Get(name); ok {
			own = t
		}
	}
	projected := e.engine.Project(own, obj.Path)
	canonical := e.canonical(obj)
	if canonical.Equal(obj) {
		return projected
	}
	return e.engine.Oracle().Intersect(projected, e.LookupObjectType(canonical))
}

// canonical replaces an aliased root by the object it was bound to
func (e Env) canonical(obj paths.Object) paths.Object {
	name, ok := obj.VarName()
	if !ok {
		return obj
	}
	alias, ok := e.aliases.Get(paths.VarObject(name))
	if !ok {
		return obj
	}
	return alias.Then(obj.Path)
}

// Extend binds each of ids to the type at the same index.
//
// aliases may be nil. Otherwise, when aliases[i] is not the zero Object, ids[i]
// becomes another name for that object: claims about ids[i] refine the object.
func (e Env) Extend(ids []string, ts []types.Type, aliases []paths.Object) Env {
	if len(ids) != len(ts) {
		failure.Raise("extending environment with %d identifiers but %d types", len(ids), len(ts))
	}
	if aliases != nil && len(aliases) != len(ids) {
		failure.Raise("extending environment with %d identifiers but %d aliases", len(ids), len(aliases))
	}
	rebound := set.From(ids)
	// aliases name objects of the scope being extended
	targets := make([]paths.Object, len(ids))
	for i := range aliases {
		if !aliases[i].IsZero() {
			targets[i] = e.canonical(aliases[i])
		}
	}
	extended := e
	extended.aliases = e.aliasesOutside(rebound)
	for i, id := range ids {
		extended.types = extended.types.Set(id, ts[i])
		self := paths.VarObject(id)
		// a new binding shadows any alias of an outer binding with the same name
		extended.aliases = extended.aliases.Delete(self)
		if target := targets[i]; !target.IsZero() {
			if name, ok := target.VarName(); ok && rebound.Contains(name) {
				logger.Debug("dropped alias into a shadowed binding", "id", id, "alias", target)
			} else {
				extended.aliases = extended.aliases.Set(self, target)
			}
		}
		for _, prop := range derivedPropositions(ts[i], self) {
			extended = extended.ApplyProposition(prop)
		}
	}
	logger.Debug("extended environment", "ids", ids)
	return extended
}

// aliasesOutside drops the aliases whose object is rooted at one of ids,
// since those bindings become unreachable once ids are bound again
func (e Env) aliasesOutside(ids *set.Set[string]) *immutable.Map[paths.Object, paths.Object] {
	aliases := e.aliases
	itr := e.aliases.Iterator()
	for !itr.Done() {
		self, target, _ := itr.Next()
		if name, ok := target.VarName(); ok && ids.Contains(name) {
			aliases = aliases.Delete(self)
		}
	}
	return aliases
}

// derivedPropositions are the facts that binding an identifier of type t
// to obj teaches, through propositions attached to t
func derivedPropositions(t types.Type, obj paths.Object) []Proposition {
	inter, ok := t.(types.Intersection)
	if !ok {
		return nil
	}
	source, ok := inter.Prop().(PropositionSource)
	if !ok {
		return nil
	}
	return source.Instantiate(obj)
}

// ApplyProposition refines the type of the object the proposition is about and records it.
// Propositions about opaque roots or identifiers that are not lexically bound are
// only recorded.
func (e Env) ApplyProposition(prop Proposition) Env {
	obj := e.canonical(prop.Object)
	applied := e
	if name, ok := obj.VarName(); ok {
		if current, bound := e.types.Get(name); bound {
			refined := e.engine.Update(current, prop.Type, prop.Positive, obj.Path)
			applied.types = e.types.Set(name, refined)
			logger.Debug("applied proposition", "prop", prop, "object", obj, "from", current, "to", refined)
		} else {
			logger.Debug("proposition about unbound identifier recorded only", "prop", prop)
		}
	}
	if !e.knows(prop) {
		applied.props = e.props.Append(prop)
	}
	return applied
}

// ApplyPropositions applies props in order
func (e Env) ApplyPropositions(props ...Proposition) Env {
	for _, prop := range props {
		e = e.ApplyProposition(prop)
	}
	return e
}

func (e Env) knows(prop Proposition) bool {
	hash := prop.Hash()
	itr := e.props.Iterator()
	for !itr.Done() {
		_, known := itr.Next()
		if known.Hash() == hash {
			return true
		}
	}
	return false
}

// Propositions returns the propositions recorded so far, oldest first
func (e Env) Propositions() []Proposition {
	props := make([]Proposition, 0, e.props.Len())
	itr := e.props.Iterator()
	for !itr.Done() {
		_, prop := itr.Next()
		props = append(props, prop)
	}
	return props
}

// Unreachable reports whether some bound identifier has no possible value,
// meaning the program point this environment describes cannot be reached
func (e Env) Unreachable() bool {
	itr := e.types.Iterator()
	for !itr.Done() {
		_, t, _ := itr.Next()
		if types.IsBottom(t) {
			return true
		}
	}
	return false
}

// Bindings returns the identifiers bound in e with their current type
func (e Env) Bindings() map[string]types.Type {
	bindings := make(map[string]types.Type, e.types.Len())
	itr := e.types.Iterator()
	for !itr.Done() {
		id, t, _ := itr.Next()
		bindings[id] = t
	}
	return bindings
}
