package api

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEntityJSON(t *testing.T) {
	dataframe := &ObjectID{
		TypeName:         "custom_spark_dataframe",
		UniqueAttributes: &UniqueAttributes{QualifiedName: "pyapacheatlas://demo"},
	}
	tests := []struct {
		name   string
		entity *Entity
		want   string
	}{
		{
			name: "column with relationship attribute",
			entity: &Entity{
				TypeName: "custom_spark_dataframe_column",
				GUID:     "-1003",
				Attributes: map[string]any{
					"name":          "a",
					"qualifiedName": "pyapacheatlas://demo#a",
					"data_type":     "int",
				},
				RelationshipAttributes: map[string]any{"dataframe": dataframe},
			},
			want: `{
				"typeName": "custom_spark_dataframe_column",
				"guid": "-1003",
				"attributes": {"name": "a", "qualifiedName": "pyapacheatlas://demo#a", "data_type": "int"},
				"relationshipAttributes": {
					"dataframe": {"typeName": "custom_spark_dataframe", "uniqueAttributes": {"qualifiedName": "pyapacheatlas://demo"}}
				}
			}`,
		},
		{
			name: "process without relationship attributes",
			entity: &Entity{
				TypeName: "custom_spark_job_process",
				GUID:     "-1002",
				Attributes: map[string]any{
					"qualifiedName": "p",
					"inputs":        []*ObjectID{dataframe},
					"outputs":       []*ObjectID{},
				},
			},
			want: `{
				"typeName": "custom_spark_job_process",
				"guid": "-1002",
				"attributes": {
					"qualifiedName": "p",
					"inputs": [{"typeName": "custom_spark_dataframe", "uniqueAttributes": {"qualifiedName": "pyapacheatlas://demo"}}],
					"outputs": []
				}
			}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs, err := json.Marshal(tt.entity)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			var got, want any
			if err := json.Unmarshal(bs, &got); err != nil {
				t.Fatalf("Unmarshal(got) failed: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.want), &want); err != nil {
				t.Fatalf("Unmarshal(want) failed: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("JSON mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTypeDefsNames(t *testing.T) {
	td := &TypeDefs{
		EntityDefs:       []*EntityDef{{Name: "a"}, {Name: "b"}},
		RelationshipDefs: []*RelationshipDef{{Name: "a_to_b"}},
	}
	if diff := cmp.Diff([]string{"a", "b", "a_to_b"}, td.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	var nilDefs *TypeDefs
	if names := nilDefs.Names(); names != nil {
		t.Errorf("Names() on nil = %v, want nil", names)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Method:       "PUT",
		URL:          "https://x/types/typedefs",
		StatusCode:   400,
		RequestID:    "r1",
		ErrorCode:    "ATLAS-400-00-01A",
		ErrorMessage: "invalid type",
	}
	want := "PUT https://x/types/typedefs: Bad Request (request r1): ATLAS-400-00-01A: invalid type"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
