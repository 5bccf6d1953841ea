package scenario

import (
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cottand/occur/paths"
	"github.com/cottand/occur/types"
)

var bases = map[string]types.Type{
	"Top":     types.Top,
	"Any":     types.Top,
	"Nothing": types.Bottom,
	"Bottom":  types.Bottom,
	"Number":  types.Number,
	"String":  types.String,
	"Symbol":  types.Symbol,
	"Char":    types.Char,
	"Null":    types.Null,
	"Void":    types.Void,
	"True":    types.True,
	"False":   types.False,
	"Boolean": types.Boolean,
}

// declarations are the names a type or path expression may refer to
type declarations struct {
	arena *types.Arena
	// defined holds names of the definitions section, which parse as references
	defined map[string]bool
	structs map[string]types.Struct
	prefabs map[string]types.PrefabKey
}

func newDeclarations() *declarations {
	return &declarations{
		arena:   types.NewArena(),
		defined: make(map[string]bool),
		structs: make(map[string]types.Struct),
		prefabs: make(map[string]types.PrefabKey),
	}
}

func nodeError(node *yaml.Node, format string, args ...any) error {
	return errors.Wrapf(errors.Errorf(format, args...), "line %d", node.Line)
}

// singleKey returns the key and value of a mapping with exactly one entry
func singleKey(node *yaml.Node) (string, *yaml.Node, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return "", nil, nodeError(node, "expected a mapping with a single key")
	}
	return node.Content[0].Value, node.Content[1], nil
}

func (d *declarations) parseType(node *yaml.Node) (types.Type, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if t, ok := bases[node.Value]; ok {
			return t, nil
		}
		if d.defined[node.Value] {
			return types.Ref{Name: node.Value}, nil
		}
		if s, ok := d.structs[node.Value]; ok {
			return s, nil
		}
		return nil, nodeError(node, "unknown type %q", node.Value)
	case yaml.MappingNode:
	default:
		return nil, nodeError(node, "expected a type")
	}

	kind, arg, err := singleKey(node)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "pair":
		ts, err := d.parseTypes(arg, 2)
		if err != nil {
			return nil, err
		}
		return types.NewPair(ts[0], ts[1]), nil
	case "union":
		ts, err := d.parseTypes(arg, -1)
		if err != nil {
			return nil, err
		}
		return types.NewUnion(ts...), nil
	case "intersection":
		ts, err := d.parseTypes(arg, -1)
		if err != nil {
			return nil, err
		}
		return types.NewIntersection(ts...), nil
	case "syntax", "promise":
		inner, err := d.parseType(arg)
		if err != nil {
			return nil, err
		}
		if kind == "syntax" {
			return types.NewSyntax(inner), nil
		}
		return types.NewPromise(inner), nil
	case "ref":
		if arg.Kind != yaml.ScalarNode || !d.defined[arg.Value] {
			return nil, nodeError(arg, "reference to undefined type %q", arg.Value)
		}
		return types.Ref{Name: arg.Value}, nil
	case "struct":
		return d.parseStruct(arg)
	case "prefab":
		return d.parsePrefab(arg)
	case "function":
		return d.parseFunction(arg)
	}
	return nil, nodeError(node, "unknown type constructor %q", kind)
}

// parseTypes parses a sequence of types, of length n unless n is negative
func (d *declarations) parseTypes(node *yaml.Node, n int) ([]types.Type, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, nodeError(node, "expected a list of types")
	}
	if n >= 0 && len(node.Content) != n {
		return nil, nodeError(node, "expected %d types, got %d", n, len(node.Content))
	}
	ts := make([]types.Type, len(node.Content))
	for i, elem := range node.Content {
		t, err := d.parseType(elem)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}

// parseStruct accepts a declared struct name, or a list of the name followed by
// field types overriding the declared ones
func (d *declarations) parseStruct(node *yaml.Node) (types.Type, error) {
	if node.Kind == yaml.ScalarNode {
		s, ok := d.structs[node.Value]
		if !ok {
			return nil, nodeError(node, "undeclared struct %q", node.Value)
		}
		return s, nil
	}
	if node.Kind != yaml.SequenceNode || len(node.Content) == 0 {
		return nil, nodeError(node, "expected a struct name followed by field types")
	}
	s, ok := d.structs[node.Content[0].Value]
	if !ok {
		return nil, nodeError(node.Content[0], "undeclared struct %q", node.Content[0].Value)
	}
	if len(node.Content)-1 != len(s.Fields) {
		return nil, nodeError(node, "struct %s has %d fields, got %d", s.Name, len(s.Fields), len(node.Content)-1)
	}
	fields := make([]types.Field, len(s.Fields))
	for i, f := range s.Fields {
		t, err := d.parseType(node.Content[i+1])
		if err != nil {
			return nil, err
		}
		fields[i] = types.Field{Type: t, Mutable: f.Mutable}
	}
	return types.NewStruct(s.Name, fields...), nil
}

func (d *declarations) parsePrefab(node *yaml.Node) (types.Type, error) {
	if node.Kind != yaml.SequenceNode || len(node.Content) == 0 {
		return nil, nodeError(node, "expected a prefab key name followed by field types")
	}
	key, ok := d.prefabs[node.Content[0].Value]
	if !ok {
		return nil, nodeError(node.Content[0], "undeclared prefab %q", node.Content[0].Value)
	}
	fields := node.Content[1:]
	if len(fields) != key.FieldCount() {
		return nil, nodeError(node, "prefab %s has %d fields, got %d", key.Name, key.FieldCount(), len(fields))
	}
	ts := make([]types.Type, len(fields))
	for i, f := range fields {
		t, err := d.parseType(f)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return types.NewPrefab(key, ts...), nil
}

type arrowDecl struct {
	Domain []yaml.Node `yaml:"domain"`
	Range  yaml.Node   `yaml:"range"`
}

// parseFunction accepts a single arrow, or a list of arrows for an overloaded function
func (d *declarations) parseFunction(node *yaml.Node) (types.Type, error) {
	arrowNodes := []*yaml.Node{node}
	if node.Kind == yaml.SequenceNode {
		arrowNodes = node.Content
	}
	arrows := make([]types.Arrow, 0, len(arrowNodes))
	for _, n := range arrowNodes {
		var decl arrowDecl
		if err := n.Decode(&decl); err != nil {
			return nil, errors.Wrap(err, "function arrow")
		}
		if decl.Range.Kind == 0 {
			return nil, nodeError(n, "function arrow without a range")
		}
		dom := make([]types.Type, len(decl.Domain))
		for i := range decl.Domain {
			t, err := d.parseType(&decl.Domain[i])
			if err != nil {
				return nil, err
			}
			dom[i] = t
		}
		rng, err := d.parseType(&decl.Range)
		if err != nil {
			return nil, err
		}
		arrows = append(arrows, types.Arrow{Dom: dom, Results: []types.Result{{Type: rng}}})
	}
	return types.NewFunction(arrows...), nil
}

// parsePath parses path elements in syntactic order
func (d *declarations) parsePath(node *yaml.Node) (paths.Path, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, nodeError(node, "expected a list of path elements")
	}
	path := make(paths.Path, 0, len(node.Content))
	for _, n := range node.Content {
		elem, err := d.parseElem(n)
		if err != nil {
			return nil, err
		}
		path = append(path, elem)
	}
	return path, nil
}

func (d *declarations) parseElem(node *yaml.Node) (paths.Elem, error) {
	if node.Kind == yaml.ScalarNode {
		elem, err := simpleElem(node.Value)
		return elem, errors.Wrapf(err, "line %d", node.Line)
	}
	kind, arg, err := singleKey(node)
	if err != nil {
		return nil, err
	}
	if arg.Kind != yaml.SequenceNode || len(arg.Content) != 2 {
		return nil, nodeError(arg, "expected [name, index]")
	}
	name := arg.Content[0].Value
	index, err := strconv.Atoi(arg.Content[1].Value)
	if err != nil {
		return nil, nodeError(arg.Content[1], "field index %q is not a number", arg.Content[1].Value)
	}
	switch kind {
	case "field":
		s, ok := d.structs[name]
		if !ok {
			return nil, nodeError(arg, "undeclared struct %q", name)
		}
		return paths.StructField{Struct: s, Index: index}, nil
	case "prefab-field":
		key, ok := d.prefabs[name]
		if !ok {
			return nil, nodeError(arg, "undeclared prefab %q", name)
		}
		return paths.PrefabField{Key: key, Index: index}, nil
	}
	return nil, nodeError(node, "unknown path element %q", kind)
}

func simpleElem(name string) (paths.Elem, error) {
	switch name {
	case "car":
		return paths.Car{}, nil
	case "cdr":
		return paths.Cdr{}, nil
	case "syntax-e":
		return paths.SyntaxUnwrap{}, nil
	case "force":
		return paths.PromiseForce{}, nil
	case "result":
		return paths.FunctionResult{}, nil
	}
	return nil, errors.Errorf("unknown path element %q", name)
}

type objectDecl struct {
	Var    string    `yaml:"var"`
	Opaque string    `yaml:"opaque"`
	Path   yaml.Node `yaml:"path"`
}

// parseObject accepts a variable name, or a mapping with either var or opaque and a path
func (d *declarations) parseObject(node *yaml.Node) (paths.Object, error) {
	if node.Kind == yaml.ScalarNode {
		return paths.VarObject(node.Value), nil
	}
	var decl objectDecl
	if err := decodeStrict(node, &decl); err != nil {
		return paths.Object{}, errors.Wrap(err, "object")
	}
	path, err := d.parsePath(&decl.Path)
	if err != nil {
		return paths.Object{}, err
	}
	switch {
	case decl.Var != "" && decl.Opaque == "":
		return paths.Object{Root: paths.Var{Name: decl.Var}, Path: path}, nil
	case decl.Opaque != "" && decl.Var == "":
		return paths.Object{Root: paths.Opaque{Label: decl.Opaque}, Path: path}, nil
	}
	return paths.Object{}, nodeError(node, "object needs exactly one of var or opaque")
}

// ParseType parses a type expression, such as {pair: [Number, String]}.
// Only base types are in scope: there are no definitions, structs nor prefabs.
func ParseType(src string) (types.Type, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		return nil, errors.Wrap(err, "parse type")
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) != 1 {
		return nil, errors.Errorf("parse type: expected a single type in %q", src)
	}
	return newDeclarations().parseType(node.Content[0])
}

// ParsePath parses path element names, outermost projection first.
// Struct and prefab accessors need declarations and are not accepted.
func ParsePath(names []string) (paths.Path, error) {
	path := make(paths.Path, len(names))
	for i, name := range names {
		elem, err := simpleElem(name)
		if err != nil {
			return nil, err
		}
		path[i] = elem
	}
	return path, nil
}
