package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/koba/tabledef/internal/errs"
)

const (
	// Keys with this prefix are table options, not columns.
	optionPrefix        = "_"
	constraintOption    = "_constraint"
	reservedColumn      = "id"
	referenceType       = "reference"
	maxIdentifierLength = 63
	// MariaDB rejects longer constraint names
	maxConstraintLength = 64
)

var identifierRule = validation.Match(regexp.MustCompile(`^[a-z][a-z0-9_]*$`))

var columnAttributes = map[string]bool{
	"name":        true,
	"type":        true,
	"enum":        true,
	"references":  true,
	"not_null":    true,
	"description": true,
	"internal":    true,
}

type columnSpec struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Enum        []string `yaml:"enum"`
	References  string   `yaml:"references"`
	NotNull     bool     `yaml:"not_null"`
	Description string   `yaml:"description"`
	Internal    bool     `yaml:"internal"`
}

// LoadFile loads a registry from a YAML or JSON file
func LoadFile(path string) (*Registry, error) {
	const op errs.Op = "schema.LoadFile"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(errs.Config, op, err)
	}

	return Parse(data)
}

// Load loads a registry from a reader
func Load(r io.Reader) (*Registry, error) {
	const op errs.Op = "schema.Load"

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.E(errs.Config, op, err)
	}

	return Parse(data)
}

// Parse builds a registry from a schema document. The document is a mapping
// of table name to a mapping of column key to column attributes; JSON input
// is accepted since it is valid YAML. Table and column order is kept.
func Parse(data []byte) (*Registry, error) {
	const op errs.Op = "schema.Parse"

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.E(errs.Config, op, err)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errs.E(errs.Config, op, "empty schema document")
	}

	root := deref(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, configError(op, root, "", "", "schema document must be a mapping of tables")
	}

	reg := &Registry{
		index: make(map[string]int),
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode := root.Content[i]

		table, err := parseTable(keyNode, deref(root.Content[i+1]))
		if err != nil {
			return nil, err
		}

		if _, dup := reg.index[table.Name]; dup {
			return nil, configError(op, keyNode, table.Name, "", "duplicate table")
		}

		reg.index[table.Name] = len(reg.tables)
		reg.tables = append(reg.tables, table)
	}

	if err := reg.resolve(); err != nil {
		return nil, err
	}

	return reg, nil
}

func parseTable(keyNode, node *yaml.Node) (Table, error) {
	const op errs.Op = "schema.parseTable"

	name := keyNode.Value
	if err := validateIdentifier(name); err != nil {
		return Table{}, configError(op, keyNode, name, "", "invalid table name: "+err.Error())
	}

	if node.Kind != yaml.MappingNode {
		return Table{}, configError(op, keyNode, name, "", "table definition must be a mapping")
	}

	table := Table{
		Name: name,
		Line: keyNode.Line,
	}

	seen := make(map[string]bool)

	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], deref(node.Content[i+1])

		if seen[k.Value] {
			return Table{}, configError(op, k, name, k.Value, "duplicate column")
		}
		seen[k.Value] = true

		if strings.HasPrefix(k.Value, optionPrefix) {
			if k.Value == constraintOption {
				if v.Kind != yaml.ScalarNode {
					return Table{}, configError(op, k, name, "", fmt.Sprintf("table option %s must be a scalar", k.Value))
				}
				table.Constraint = strings.TrimSpace(v.Value)
				continue
			}

			// structured options are metadata for other tools
			if v.Kind != yaml.ScalarNode {
				continue
			}

			if table.Annotations == nil {
				table.Annotations = make(map[string]string)
			}
			table.Annotations[k.Value] = v.Value

			continue
		}

		col, err := parseColumn(name, k, v)
		if err != nil {
			return Table{}, err
		}

		table.Columns = append(table.Columns, col)
	}

	return table, nil
}

func parseColumn(table string, keyNode, node *yaml.Node) (Column, error) {
	const op errs.Op = "schema.parseColumn"

	key := keyNode.Value
	fail := func(format string, args ...interface{}) error {
		return configError(op, keyNode, table, key, fmt.Sprintf(format, args...))
	}

	if err := validateIdentifier(key); err != nil {
		return Column{}, fail("invalid column name: %v", err)
	}

	if key == reservedColumn {
		return Column{}, fail("column %q is reserved for the synthetic primary key", key)
	}

	if node.Kind != yaml.MappingNode {
		return Column{}, fail("column definition must be a mapping")
	}

	present := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		attr := node.Content[i].Value
		if !columnAttributes[attr] {
			return Column{}, fail("unknown column attribute %q", attr)
		}
		present[attr] = true
	}

	var spec columnSpec
	if err := node.Decode(&spec); err != nil {
		return Column{}, fail("decoding column: %v", err)
	}

	kind, err := resolveKind(spec, present)
	if err != nil {
		return Column{}, fail("%v", err)
	}

	col := Column{
		Key:         key,
		Name:        spec.Name,
		Kind:        kind,
		Enum:        spec.Enum,
		References:  spec.References,
		NotNull:     spec.NotNull,
		Description: spec.Description,
		Line:        keyNode.Line,
	}

	if col.Name == "" {
		col.Name = key
	}

	if kind == Reference || spec.Internal {
		col.Visibility = Internal
	}

	if kind == Enum {
		if name := EnumTableName(table, key); len(name) > maxIdentifierLength {
			return Column{}, fail("enum table name %s is longer than %d characters", name, maxIdentifierLength)
		}
	}

	return col, nil
}

func resolveKind(spec columnSpec, present map[string]bool) (Kind, error) {
	if present["references"] {
		switch {
		case spec.References == "":
			return 0, errors.New("references must name a table")
		case present["enum"]:
			return 0, errors.New("a column cannot declare both enum and references")
		case spec.Type != "" && spec.Type != "integer" && spec.Type != referenceType:
			return 0, fmt.Errorf("reference column cannot have type %q", spec.Type)
		}

		return Reference, nil
	}

	if present["enum"] {
		if spec.Type != "" && spec.Type != "enum" {
			return 0, fmt.Errorf("enum values declared on a %q column", spec.Type)
		}

		if len(spec.Enum) == 0 {
			return 0, errors.New("enum declares no values")
		}

		seen := make(map[string]bool, len(spec.Enum))
		for _, v := range spec.Enum {
			if seen[v] {
				return 0, fmt.Errorf("duplicate enum value %q", v)
			}
			seen[v] = true
		}

		return Enum, nil
	}

	switch spec.Type {
	case "", "real":
		return Real, nil
	case "integer":
		return Integer, nil
	case "text":
		return Text, nil
	case "time":
		return Time, nil
	case "enum":
		return 0, errors.New("type enum requires enum values")
	case referenceType:
		return 0, errors.New("type reference requires references")
	}

	return 0, fmt.Errorf("unknown type %q", spec.Type)
}

// resolve checks references between tables and computes the creation order.
func (r *Registry) resolve() error {
	const op errs.Op = "schema.resolve"

	for _, t := range r.tables {
		for _, c := range t.Columns {
			if c.Kind != Reference {
				continue
			}

			if _, ok := r.index[c.References]; !ok {
				return errs.E(errs.Config, op, errs.Table(t.Name), errs.Column(c.Key),
					fmt.Sprintf("line %d: references undefined table %q", c.Line, c.References))
			}
		}
	}

	if err := r.checkDerivedNames(); err != nil {
		return err
	}

	const (
		unvisited = iota
		visiting
		done
	)

	state := make([]int, len(r.tables))
	r.creation = make([]int, 0, len(r.tables))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			t := r.tables[i]
			return errs.E(errs.Config, op, errs.Table(t.Name),
				fmt.Sprintf("line %d: reference cycle through table %q", t.Line, t.Name))
		}

		state[i] = visiting

		for _, ref := range r.tables[i].References() {
			if err := visit(r.index[ref]); err != nil {
				return err
			}
		}

		state[i] = done
		r.creation = append(r.creation, i)

		return nil
	}

	for i := len(r.tables) - 1; i >= 0; i-- {
		if err := visit(i); err != nil {
			return err
		}
	}

	return nil
}

// checkDerivedNames rejects documents where a generated enum table name
// collides with another enum table or a declared table, or where two foreign
// key constraint names coincide.
func (r *Registry) checkDerivedNames() error {
	const op errs.Op = "schema.resolve"

	enumOwners := make(map[string]string)
	constraintOwners := make(map[string]string)

	for _, t := range r.tables {
		for _, c := range t.Columns {
			owner := t.Name + "." + c.Key

			if c.Kind == Enum {
				name := EnumTableName(t.Name, c.Key)
				if _, ok := r.index[name]; ok {
					return errs.E(errs.Config, op, errs.Table(t.Name), errs.Column(c.Key),
						fmt.Sprintf("line %d: enum table %s clashes with the declared table %s", c.Line, name, name))
				}
				if other, ok := enumOwners[name]; ok {
					return errs.E(errs.Config, op, errs.Table(t.Name), errs.Column(c.Key),
						fmt.Sprintf("line %d: enum table %s is also derived from %s", c.Line, name, other))
				}
				enumOwners[name] = owner
			}

			if c.Kind == Enum || c.Kind == Reference {
				name := ConstraintName(t.Name, c.Key)
				if other, ok := constraintOwners[name]; ok {
					return errs.E(errs.Config, op, errs.Table(t.Name), errs.Column(c.Key),
						fmt.Sprintf("line %d: constraint %s is also derived from %s", c.Line, name, other))
				}
				constraintOwners[name] = owner
			}
		}
	}

	return nil
}

func validateIdentifier(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.Length(1, maxIdentifierLength),
		identifierRule,
	)
}

func deref(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}

	return n
}

func configError(op errs.Op, node *yaml.Node, table, column, msg string) error {
	return errs.E(errs.Config, op, errs.Table(table), errs.Column(column), fmt.Sprintf("line %d: %s", node.Line, msg))
}
