// Package scenario loads refinement scenarios from YAML documents and runs them.
//
// A scenario declares named types, struct and prefab hierarchies and a set of
// bindings, then applies an ordered list of claims to a fresh environment.
// Expected final types, when given, are checked for equivalence.
//
//	structs:
//	  - name: point
//	    fields: [{type: Number}, {type: Number}]
//	definitions:
//	  List: {union: [Null, {pair: [Number, List]}]}
//	bindings:
//	  - {name: x, type: {union: [Number, String]}}
//	claims:
//	  - {object: x, type: String, positive: false}
//	expect:
//	  x: Number
package scenario

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cottand/occur/env"
	"github.com/cottand/occur/internal/failure"
	"github.com/cottand/occur/internal/log"
	"github.com/cottand/occur/paths"
	"github.com/cottand/occur/refine"
	"github.com/cottand/occur/subtype"
	"github.com/cottand/occur/types"
)

var logger = log.DefaultLogger.With("section", "scenario")

type fieldDecl struct {
	Type    yaml.Node `yaml:"type"`
	Mutable bool      `yaml:"mutable"`
}

type structDecl struct {
	Name   string      `yaml:"name"`
	Parent string      `yaml:"parent"`
	Fields []fieldDecl `yaml:"fields"`
}

type prefabDecl struct {
	Name    string `yaml:"name"`
	Parent  string `yaml:"parent"`
	Fields  int    `yaml:"fields"`
	Mutable []int  `yaml:"mutable"`
}

type bindingDecl struct {
	Name  string    `yaml:"name"`
	Type  yaml.Node `yaml:"type"`
	Alias yaml.Node `yaml:"alias"`
}

type claimDecl struct {
	Object   yaml.Node `yaml:"object"`
	Type     yaml.Node `yaml:"type"`
	Positive *bool     `yaml:"positive"`
}

type document struct {
	Name        string        `yaml:"name"`
	Structs     []structDecl  `yaml:"structs"`
	Prefabs     []prefabDecl  `yaml:"prefabs"`
	Definitions yaml.Node     `yaml:"definitions"`
	Bindings    []bindingDecl `yaml:"bindings"`
	Claims      []claimDecl   `yaml:"claims"`
	Expect      yaml.Node     `yaml:"expect"`
	Unreachable *bool         `yaml:"unreachable"`
}

type binding struct {
	name  string
	t     types.Type
	alias paths.Object
}

type expectation struct {
	name string
	t    types.Type
}

// Scenario is a loaded, validated scenario ready to Run
type Scenario struct {
	Name        string
	arena       *types.Arena
	bindings    []binding
	claims      []env.Proposition
	expect      []expectation
	unreachable *bool
}

func decodeStrict(node *yaml.Node, out any) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	return decoder.Decode(out)
}

// LoadFile loads the scenario at path. Unnamed scenarios are named after their file.
func LoadFile(path string) (*Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open scenario")
	}
	defer file.Close()
	s, err := Load(file)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

func Load(r io.Reader) (s *Scenario, err error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var doc document
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty scenario")
		}
		return nil, errors.Wrap(err, "parse scenario")
	}
	// malformed hierarchies are reported by the arena as violations
	if violation := failure.Catch(func() { s, err = doc.build() }); violation != nil {
		return nil, violation
	}
	return s, err
}

func (doc *document) build() (*Scenario, error) {
	decls := newDeclarations()
	if err := doc.declareNames(decls); err != nil {
		return nil, err
	}
	if err := doc.declareStructs(decls); err != nil {
		return nil, err
	}
	if err := doc.declarePrefabs(decls); err != nil {
		return nil, err
	}
	if err := doc.define(decls); err != nil {
		return nil, err
	}

	s := &Scenario{Name: doc.Name, arena: decls.arena, unreachable: doc.Unreachable}
	for _, b := range doc.Bindings {
		if b.Name == "" {
			return nil, errors.New("binding without a name")
		}
		t, err := decls.parseType(&b.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "binding %s", b.Name)
		}
		var alias paths.Object
		if b.Alias.Kind != 0 {
			if alias, err = decls.parseObject(&b.Alias); err != nil {
				return nil, errors.Wrapf(err, "alias of %s", b.Name)
			}
		}
		s.bindings = append(s.bindings, binding{name: b.Name, t: t, alias: alias})
	}
	for i, c := range doc.Claims {
		obj, err := decls.parseObject(&c.Object)
		if err != nil {
			return nil, errors.Wrapf(err, "claim %d", i)
		}
		t, err := decls.parseType(&c.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "claim %d", i)
		}
		positive := c.Positive == nil || *c.Positive
		s.claims = append(s.claims, env.Proposition{Object: obj, Type: t, Positive: positive})
	}
	if doc.Expect.Kind != 0 {
		if doc.Expect.Kind != yaml.MappingNode {
			return nil, nodeError(&doc.Expect, "expect must map binding names to types")
		}
		for i := 0; i+1 < len(doc.Expect.Content); i += 2 {
			name := doc.Expect.Content[i].Value
			t, err := decls.parseType(doc.Expect.Content[i+1])
			if err != nil {
				return nil, errors.Wrapf(err, "expected type of %s", name)
			}
			s.expect = append(s.expect, expectation{name: name, t: t})
		}
	}
	return s, nil
}

func (doc *document) declareStructs(decls *declarations) error {
	for _, sd := range doc.Structs {
		var fields []types.Field
		if sd.Parent != "" {
			parent, ok := decls.structs[sd.Parent]
			if !ok {
				return errors.Errorf("struct %s inherits from undeclared struct %s", sd.Name, sd.Parent)
			}
			fields = append(fields, parent.Fields...)
		}
		for _, f := range sd.Fields {
			t, err := decls.parseType(&f.Type)
			if err != nil {
				return errors.Wrapf(err, "field of struct %s", sd.Name)
			}
			fields = append(fields, types.Field{Type: t, Mutable: f.Mutable})
		}
		decls.arena.DeclareStruct(sd.Name, sd.Parent)
		decls.structs[sd.Name] = types.Struct{Name: sd.Name, Fields: fields}
	}
	return nil
}

func (doc *document) declarePrefabs(decls *declarations) error {
	for _, pd := range doc.Prefabs {
		key := types.PrefabKey{Name: pd.Name, Fields: pd.Fields, Mutable: pd.Mutable}
		if pd.Parent != "" {
			parent, ok := decls.prefabs[pd.Parent]
			if !ok {
				return errors.Errorf("prefab %s extends undeclared prefab %s", pd.Name, pd.Parent)
			}
			key.Parent = &parent
		}
		decls.prefabs[pd.Name] = key
	}
	return nil
}

// declareNames registers every definition name before any type is parsed,
// so that definitions and struct fields may refer to any definition
func (doc *document) declareNames(decls *declarations) error {
	if doc.Definitions.Kind == 0 {
		return nil
	}
	if doc.Definitions.Kind != yaml.MappingNode {
		return nodeError(&doc.Definitions, "definitions must map names to types")
	}
	content := doc.Definitions.Content
	for i := 0; i+1 < len(content); i += 2 {
		decls.defined[content[i].Value] = true
	}
	return nil
}

func (doc *document) define(decls *declarations) error {
	content := doc.Definitions.Content
	for i := 0; i+1 < len(content); i += 2 {
		name := content[i].Value
		t, err := decls.parseType(content[i+1])
		if err != nil {
			return errors.Wrapf(err, "definition of %s", name)
		}
		decls.arena.Define(name, t)
	}
	return nil
}

// Mismatch is a binding whose final type is not equivalent to the expected one
type Mismatch struct {
	Binding  string
	Expected types.Type
	Actual   types.Type
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", m.Binding, m.Expected, m.Actual)
}

type Result struct {
	Scenario *Scenario
	// Env is the environment after every claim was applied
	Env        env.Env
	Mismatches []Mismatch
}

func (r Result) OK() bool { return len(r.Mismatches) == 0 }

// Run applies the claims of s, in order, to an environment holding its bindings.
// Contract violations, such as a path through a mutable field, are returned as errors.
func (s *Scenario) Run() (result Result, err error) {
	oracle := subtype.New(s.arena)
	engine := refine.NewEngine(oracle)
	result.Scenario = s

	var lookupErr error
	err = failure.Catch(func() {
		// bindings nest in order, so an alias may name any binding above it
		e := env.New(engine)
		for _, b := range s.bindings {
			e = e.Extend([]string{b.name}, []types.Type{b.t}, []paths.Object{b.alias})
		}
		e = e.ApplyPropositions(s.claims...)
		result.Env = e

		for _, exp := range s.expect {
			var actual types.Type
			if actual, lookupErr = e.LookupType(exp.name); lookupErr != nil {
				return
			}
			if !oracle.Equivalent(actual, exp.t) {
				result.Mismatches = append(result.Mismatches, Mismatch{Binding: exp.name, Expected: exp.t, Actual: actual})
			}
		}
		if s.unreachable != nil && *s.unreachable != e.Unreachable() {
			result.Mismatches = append(result.Mismatches, Mismatch{
				Binding:  "unreachable",
				Expected: reachability(*s.unreachable),
				Actual:   reachability(e.Unreachable()),
			})
		}
	})
	if err == nil {
		err = lookupErr
	}
	if err != nil {
		return result, errors.Wrapf(err, "run %s", s.Name)
	}
	logger.Info("ran scenario", "name", s.Name, "claims", len(s.claims), "mismatches", len(result.Mismatches))
	return result, nil
}

// reachability renders an unreachable program point as Nothing
func reachability(unreachable bool) types.Type {
	if unreachable {
		return types.Bottom
	}
	return types.Top
}

// Report renders the final type of every binding, sorted by name, followed by the mismatches
func (r Result) Report() string {
	bindings := r.Env.Bindings()
	names := slices.Sorted(maps.Keys(bindings))
	var sb strings.Builder
	for _, name := range names {
		t, err := r.Env.LookupType(name)
		if err != nil {
			t = bindings[name]
		}
		fmt.Fprintf(&sb, "%s : %s\n", name, t)
	}
	if r.Env.Unreachable() {
		sb.WriteString("unreachable\n")
	}
	for _, m := range r.Mismatches {
		sb.WriteString("mismatch " + m.String() + "\n")
	}
	return sb.String()
}
