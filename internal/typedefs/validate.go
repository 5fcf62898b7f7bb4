package typedefs

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dnswlt/dflineage/internal/api"
	"golang.org/x/mod/semver"
)

var (
	ErrInvalidTypeDef = errors.New("invalid type definition")
)

var (
	validCardinalities = []string{api.CardinalitySingle, api.CardinalityList, api.CardinalitySet}
	validCategories    = []string{api.RelationshipAssociation, api.RelationshipAggregation, api.RelationshipComposition}
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTypeDef, fmt.Sprintf(format, args...))
}

// validTypeVersion reports whether v is a semantic version.
// Atlas type versions like "1.0" lack the "v" prefix that semver expects.
func validTypeVersion(v string) bool {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.IsValid(v)
}

func validateAttributeDefs(typeName string, attrs []*AttributeDef) error {
	seen := make(map[string]bool)
	for _, a := range attrs {
		if a.Name == "" {
			return invalid("attribute without name in %s", typeName)
		}
		if seen[a.Name] {
			return invalid("duplicate attribute %q in %s", a.Name, typeName)
		}
		seen[a.Name] = true
		if !slices.Contains(validCardinalities, a.Cardinality) {
			return invalid("attribute %s.%s has invalid cardinality %q", typeName, a.Name, a.Cardinality)
		}
	}
	return nil
}

// checkEntries rejects empty list entries, which YAML decodes as nil pointers.
func (b *Bundle) checkEntries() error {
	for i, e := range b.EntityDefs {
		if e == nil {
			return invalid("empty entry #%d in entityDefs", i+1)
		}
		if slices.Contains(e.AttributeDefs, nil) {
			return invalid("empty attribute definition in %s", e.Name)
		}
	}
	for i, r := range b.RelationshipDefs {
		if r == nil {
			return invalid("empty entry #%d in relationshipDefs", i+1)
		}
		if slices.Contains(r.AttributeDefs, nil) {
			return invalid("empty attribute definition in %s", r.Name)
		}
	}
	return nil
}

func (b *Bundle) isKnownType(name string) bool {
	return slices.Contains(builtinTypes, name) || b.EntityDef(name) != nil
}

// Validate checks the bundle for consistency. It expects defaults to be set.
func (b *Bundle) Validate() error {
	if len(b.EntityDefs) == 0 && len(b.RelationshipDefs) == 0 {
		return invalid("no type definitions")
	}

	names := make(map[string]bool)
	for _, n := range b.Names() {
		if n == "" {
			return invalid("type without name")
		}
		if names[n] {
			return invalid("duplicate type name %q", n)
		}
		names[n] = true
	}

	// Relationship end attributes, indexed by the type they appear on.
	endAttrs := make(map[string][]string)

	for _, r := range b.RelationshipDefs {
		if !validTypeVersion(r.TypeVersion) {
			return invalid("relationship %s has invalid typeVersion %q", r.Name, r.TypeVersion)
		}
		if !slices.Contains(validCategories, r.RelationshipCategory) {
			return invalid("relationship %s has invalid relationshipCategory %q", r.Name, r.RelationshipCategory)
		}
		if r.EndDef1 == nil || r.EndDef2 == nil {
			return invalid("relationship %s must define endDef1 and endDef2", r.Name)
		}
		containers := 0
		for _, end := range []*EndDef{r.EndDef1, r.EndDef2} {
			if end.Name == "" {
				return invalid("relationship %s has an end without name", r.Name)
			}
			if !b.isKnownType(end.Type) {
				return invalid("relationship %s refers to unknown type %q", r.Name, end.Type)
			}
			if !slices.Contains(validCardinalities, end.Cardinality) {
				return invalid("relationship %s end %s has invalid cardinality %q", r.Name, end.Name, end.Cardinality)
			}
			if end.IsContainer {
				containers++
			}
			endAttrs[end.Type] = append(endAttrs[end.Type], end.Name)
		}
		if r.RelationshipCategory == api.RelationshipComposition && containers != 1 {
			return invalid("composition %s must have exactly one container end, got %d", r.Name, containers)
		}
		if err := validateAttributeDefs(r.Name, r.AttributeDefs); err != nil {
			return err
		}
	}

	for _, e := range b.EntityDefs {
		if !validTypeVersion(e.TypeVersion) {
			return invalid("type %s has invalid typeVersion %q", e.Name, e.TypeVersion)
		}
		for _, s := range e.SuperTypes {
			if s == e.Name {
				return invalid("type %s is its own supertype", e.Name)
			}
			if !b.isKnownType(s) {
				return invalid("type %s has unknown supertype %q", e.Name, s)
			}
		}
		if err := validateAttributeDefs(e.Name, e.AttributeDefs); err != nil {
			return err
		}
		if attr, ok := e.Options["schemaElementAttribute"]; ok {
			hasAttr := slices.ContainsFunc(e.AttributeDefs, func(a *AttributeDef) bool { return a.Name == attr })
			if !hasAttr && !slices.Contains(endAttrs[e.Name], attr) {
				return invalid("type %s: schemaElementAttribute %q is neither an attribute nor a relationship end", e.Name, attr)
			}
		}
	}
	return nil
}
