// This file contains the JSON types of the Apache Atlas v2 REST API that
// dflineage sends to and receives from the catalog.
// The types are a subset of the Atlas model, which is also served by Microsoft Purview:
// https://atlas.apache.org/api/v2/index.html
package api

import (
	"encoding/json"
)

const (
	// Type definition categories.
	CategoryEntity       = "ENTITY"
	CategoryRelationship = "RELATIONSHIP"

	// Attribute and relationship end cardinalities.
	CardinalitySingle = "SINGLE"
	CardinalityList   = "LIST"
	CardinalitySet    = "SET"

	// Relationship categories.
	RelationshipAssociation = "ASSOCIATION"
	RelationshipAggregation = "AGGREGATION"
	RelationshipComposition = "COMPOSITION"

	// Tag propagation of relationships. dflineage never propagates tags.
	PropagateTagsNone = "NONE"
)

// Type definitions

type AttributeDef struct {
	// The name of the attribute. Must be unique within its type.
	// [required]
	Name string `json:"name"`
	// The Atlas type of the attribute value, e.g. "string" or "array<string>".
	// [required]
	TypeName string `json:"typeName"`
	// Whether entities of the enclosing type may omit the attribute.
	IsOptional  bool   `json:"isOptional"`
	Cardinality string `json:"cardinality"`
	// Min. and max. number of values. Atlas expects 0..1 for optional single-valued attributes.
	ValuesMinCount        int  `json:"valuesMinCount"`
	ValuesMaxCount        int  `json:"valuesMaxCount"`
	IsUnique              bool `json:"isUnique"`
	IsIndexable           bool `json:"isIndexable"`
	IncludeInNotification bool `json:"includeInNotification"`
	// Value the catalog assigns if the attribute is absent.
	// [optional]
	DefaultValue string `json:"defaultValue,omitempty"`
	// [optional]
	Description string `json:"description,omitempty"`
}

type EntityDef struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TypeVersion string `json:"typeVersion,omitempty"`
	// Assigned by the catalog, only present in responses.
	GUID string `json:"guid,omitempty"`

	AttributeDefs []*AttributeDef `json:"attributeDefs"`
	// Names of the types this type inherits from, e.g. "DataSet" or "Process".
	SuperTypes []string `json:"superTypes"`
	// Free-form options. Purview uses "schemaElementAttribute" to find
	// the attribute holding the schema (columns) of a dataset.
	Options map[string]string `json:"options,omitempty"`
}

type RelationshipEndDef struct {
	// The entity type at this end of the relationship.
	Type string `json:"type"`
	// The name of the (relationship) attribute that appears on entities of Type.
	Name              string `json:"name"`
	IsContainer       bool   `json:"isContainer"`
	Cardinality       string `json:"cardinality"`
	IsLegacyAttribute bool   `json:"isLegacyAttribute"`
	Description       string `json:"description,omitempty"`
}

type RelationshipDef struct {
	Category             string `json:"category"`
	Name                 string `json:"name"`
	Description          string `json:"description,omitempty"`
	TypeVersion          string `json:"typeVersion,omitempty"`
	GUID                 string `json:"guid,omitempty"`
	RelationshipCategory string `json:"relationshipCategory"`
	PropagateTags        string `json:"propagateTags,omitempty"`

	EndDef1       *RelationshipEndDef `json:"endDef1"`
	EndDef2       *RelationshipEndDef `json:"endDef2"`
	AttributeDefs []*AttributeDef     `json:"attributeDefs"`
}

// TypeDefs is the payload of the /types/typedefs endpoints, both in
// requests and in responses. dflineage only declares entity and relationship
// types; the remaining categories are passed through as raw JSON.
type TypeDefs struct {
	EntityDefs         []*EntityDef       `json:"entityDefs"`
	RelationshipDefs   []*RelationshipDef `json:"relationshipDefs"`
	ClassificationDefs []json.RawMessage  `json:"classificationDefs,omitempty"`
	EnumDefs           []json.RawMessage  `json:"enumDefs,omitempty"`
	StructDefs         []json.RawMessage  `json:"structDefs,omitempty"`
}

// Names returns the names of all entity and relationship definitions in td.
func (td *TypeDefs) Names() []string {
	if td == nil {
		return nil
	}
	names := make([]string, 0, len(td.EntityDefs)+len(td.RelationshipDefs))
	for _, d := range td.EntityDefs {
		names = append(names, d.Name)
	}
	for _, d := range td.RelationshipDefs {
		names = append(names, d.Name)
	}
	return names
}

// Entities

// UniqueAttributes identifies an entity by its unique attributes.
// For all types deriving from Referenceable that is the qualifiedName.
type UniqueAttributes struct {
	QualifiedName string `json:"qualifiedName"`
}

// ObjectID is a minimal reference to another entity (AtlasObjectId).
// It is used wherever an entity points to another one, so that the
// referenced entity's attributes are never serialized a second time.
type ObjectID struct {
	TypeName         string            `json:"typeName"`
	UniqueAttributes *UniqueAttributes `json:"uniqueAttributes"`
}

type Entity struct {
	TypeName string `json:"typeName"`
	// A negative placeholder for new entities, replaced by the catalog on upload.
	GUID string `json:"guid"`
	// All attributes, including name and qualifiedName.
	Attributes map[string]any `json:"attributes"`
	// Attributes that are backed by relationship definitions.
	// Values are *ObjectID or []*ObjectID.
	RelationshipAttributes map[string]any `json:"relationshipAttributes,omitempty"`
}

// EntitiesWithExtInfo is the request payload of POST /entity/bulk.
type EntitiesWithExtInfo struct {
	Entities []*Entity `json:"entities"`
}

type EntityHeader struct {
	TypeName    string         `json:"typeName"`
	GUID        string         `json:"guid"`
	Status      string         `json:"status,omitempty"`
	DisplayText string         `json:"displayText,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// EntityMutationResponse is the response payload of POST /entity/bulk.
type EntityMutationResponse struct {
	// Mutated entities by operation ("CREATE", "UPDATE", ...).
	MutatedEntities map[string][]*EntityHeader `json:"mutatedEntities,omitempty"`
	// Maps the placeholder GUIDs of the request to the GUIDs assigned by the catalog.
	GUIDAssignments map[string]string `json:"guidAssignments,omitempty"`
}

// Count returns the number of entities mutated by operation op.
func (r *EntityMutationResponse) Count(op string) int {
	if r == nil {
		return 0
	}
	return len(r.MutatedEntities[op])
}
