// Package typedefs loads and validates the entity and relationship type
// definitions that must exist in the catalog before lineage entities can
// be uploaded.
package typedefs

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/dnswlt/dflineage/internal/api"
	"github.com/dnswlt/dflineage/internal/store"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTypeName    = "string"
	DefaultTypeVersion = "1.0"
)

//go:embed typedefs.yml
var defaultBundle []byte

// Built-in Atlas types that bundle types may derive from or refer to.
var builtinTypes = []string{"Referenceable", "Asset", "DataSet", "Process"}

// AttributeDef defines an attribute of a type.
type AttributeDef struct {
	Name string `yaml:"name"`
	// Defaults to "string".
	TypeName string `yaml:"typeName"`
	// Defaults to true.
	IsOptional *bool `yaml:"isOptional"`
	// One of SINGLE, LIST, SET. Defaults to SINGLE.
	Cardinality  string `yaml:"cardinality"`
	DefaultValue string `yaml:"defaultValue"`
	Description  string `yaml:"description"`
	IsUnique     bool   `yaml:"isUnique"`
	IsIndexable  bool   `yaml:"isIndexable"`
}

// Required reports whether entities must set the attribute.
// Attributes with a default value are never required.
func (a *AttributeDef) Required() bool {
	return a.IsOptional != nil && !*a.IsOptional && a.DefaultValue == ""
}

type EntityDef struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	TypeVersion string            `yaml:"typeVersion"`
	SuperTypes  []string          `yaml:"superTypes"`
	Options     map[string]string `yaml:"options"`

	AttributeDefs []*AttributeDef `yaml:"attributeDefs"`
}

type EndDef struct {
	Type              string `yaml:"type"`
	Name              string `yaml:"name"`
	IsContainer       bool   `yaml:"isContainer"`
	Cardinality       string `yaml:"cardinality"`
	IsLegacyAttribute bool   `yaml:"isLegacyAttribute"`
	Description       string `yaml:"description"`
}

type RelationshipDef struct {
	Name                 string `yaml:"name"`
	Description          string `yaml:"description"`
	TypeVersion          string `yaml:"typeVersion"`
	RelationshipCategory string `yaml:"relationshipCategory"`

	EndDef1       *EndDef         `yaml:"endDef1"`
	EndDef2       *EndDef         `yaml:"endDef2"`
	AttributeDefs []*AttributeDef `yaml:"attributeDefs"`
}

// Bundle is the serialized form of a set of type definitions.
type Bundle struct {
	EntityDefs       []*EntityDef       `yaml:"entityDefs"`
	RelationshipDefs []*RelationshipDef `yaml:"relationshipDefs"`
}

// Default returns the built-in type definitions for dataframes,
// their columns, and the jobs that read them.
func Default() *Bundle {
	b, err := Parse(defaultBundle)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in typedefs: %v", err))
	}
	return b
}

// Load reads and validates a bundle from path in st.
func Load(st store.Store, path string) (*Bundle, error) {
	data, err := st.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read typedefs %q: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid typedefs in %q: %w", path, err)
	}
	return b, nil
}

// Parse decodes a bundle from YAML, fills in defaults, and validates it.
// Unknown fields are rejected.
func Parse(data []byte) (*Bundle, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var b Bundle
	if err := dec.Decode(&b); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := b.checkEntries(); err != nil {
		return nil, err
	}
	b.setDefaults()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func setAttributeDefaults(attrs []*AttributeDef) {
	for _, a := range attrs {
		if a.TypeName == "" {
			a.TypeName = DefaultTypeName
		}
		if a.IsOptional == nil {
			optional := true
			a.IsOptional = &optional
		}
		if a.Cardinality == "" {
			a.Cardinality = api.CardinalitySingle
		}
	}
}

func (b *Bundle) setDefaults() {
	for _, e := range b.EntityDefs {
		if e.TypeVersion == "" {
			e.TypeVersion = DefaultTypeVersion
		}
		setAttributeDefaults(e.AttributeDefs)
	}
	for _, r := range b.RelationshipDefs {
		if r.TypeVersion == "" {
			r.TypeVersion = DefaultTypeVersion
		}
		for _, end := range []*EndDef{r.EndDef1, r.EndDef2} {
			if end != nil && end.Cardinality == "" {
				end.Cardinality = api.CardinalitySingle
			}
		}
		setAttributeDefaults(r.AttributeDefs)
	}
}

// EntityDef returns the entity definition with the given name, or nil.
func (b *Bundle) EntityDef(name string) *EntityDef {
	for _, e := range b.EntityDefs {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Names returns the names of all types in the bundle, entity types first.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.EntityDefs)+len(b.RelationshipDefs))
	for _, e := range b.EntityDefs {
		names = append(names, e.Name)
	}
	for _, r := range b.RelationshipDefs {
		names = append(names, r.Name)
	}
	return names
}

// RequiredAttributes returns the names of the attributes that entities of
// typeName must set, including those inherited from supertypes in the bundle.
// The result is sorted. Unknown types have no required attributes.
func (b *Bundle) RequiredAttributes(typeName string) []string {
	var result []string
	visited := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		e := b.EntityDef(name)
		if e == nil {
			return
		}
		for _, a := range e.AttributeDefs {
			if a.Required() && !slices.Contains(result, a.Name) {
				result = append(result, a.Name)
			}
		}
		for _, s := range e.SuperTypes {
			visit(s)
		}
	}
	visit(typeName)
	slices.Sort(result)
	return result
}

func toAPIAttributeDefs(attrs []*AttributeDef) []*api.AttributeDef {
	result := make([]*api.AttributeDef, len(attrs))
	for i, a := range attrs {
		optional := a.IsOptional == nil || *a.IsOptional
		minCount := 0
		if !optional {
			minCount = 1
		}
		maxCount := 1
		if a.Cardinality != api.CardinalitySingle {
			maxCount = math.MaxInt32
		}
		result[i] = &api.AttributeDef{
			Name:           a.Name,
			TypeName:       a.TypeName,
			IsOptional:     optional,
			Cardinality:    a.Cardinality,
			ValuesMinCount: minCount,
			ValuesMaxCount: maxCount,
			IsUnique:       a.IsUnique,
			IsIndexable:    a.IsIndexable,
			DefaultValue:   a.DefaultValue,
			Description:    a.Description,
		}
	}
	return result
}

func toAPIEndDef(e *EndDef) *api.RelationshipEndDef {
	return &api.RelationshipEndDef{
		Type:              e.Type,
		Name:              e.Name,
		IsContainer:       e.IsContainer,
		Cardinality:       e.Cardinality,
		IsLegacyAttribute: e.IsLegacyAttribute,
		Description:       e.Description,
	}
}

// ToAPI converts the bundle into the payload of a typedefs upload.
func (b *Bundle) ToAPI() *api.TypeDefs {
	td := &api.TypeDefs{
		EntityDefs:       make([]*api.EntityDef, 0, len(b.EntityDefs)),
		RelationshipDefs: make([]*api.RelationshipDef, 0, len(b.RelationshipDefs)),
	}
	for _, e := range b.EntityDefs {
		superTypes := e.SuperTypes
		if superTypes == nil {
			superTypes = []string{}
		}
		td.EntityDefs = append(td.EntityDefs, &api.EntityDef{
			Category:      api.CategoryEntity,
			Name:          e.Name,
			Description:   e.Description,
			TypeVersion:   e.TypeVersion,
			AttributeDefs: toAPIAttributeDefs(e.AttributeDefs),
			SuperTypes:    superTypes,
			Options:       e.Options,
		})
	}
	for _, r := range b.RelationshipDefs {
		td.RelationshipDefs = append(td.RelationshipDefs, &api.RelationshipDef{
			Category:             api.CategoryRelationship,
			Name:                 r.Name,
			Description:          r.Description,
			TypeVersion:          r.TypeVersion,
			RelationshipCategory: r.RelationshipCategory,
			PropagateTags:        api.PropagateTagsNone,
			EndDef1:              toAPIEndDef(r.EndDef1),
			EndDef2:              toAPIEndDef(r.EndDef2),
			AttributeDefs:        toAPIAttributeDefs(r.AttributeDefs),
		})
	}
	return td
}
