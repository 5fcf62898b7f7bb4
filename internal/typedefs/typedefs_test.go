package typedefs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dnswlt/dflineage/internal/api"
	"github.com/dnswlt/dflineage/internal/store"
	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	b := Default()

	wantNames := []string{
		"custom_spark_dataframe",
		"custom_spark_dataframe_column",
		"custom_spark_job_process",
		"custom_spark_dataframe_to_columns",
	}
	if diff := cmp.Diff(wantNames, b.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	df := b.EntityDef("custom_spark_dataframe")
	if df == nil {
		t.Fatal("custom_spark_dataframe not found")
	}
	if got := df.Options["schemaElementAttribute"]; got != "columns" {
		t.Errorf("schemaElementAttribute = %q, want %q", got, "columns")
	}
	if df.TypeVersion != "1.0" {
		t.Errorf("TypeVersion = %q, want %q", df.TypeVersion, "1.0")
	}
	format := df.AttributeDefs[0]
	if format.TypeName != "string" || !*format.IsOptional || format.Cardinality != "SINGLE" {
		t.Errorf("format attribute defaults not applied: %+v", format)
	}
}

func TestRequiredAttributes(t *testing.T) {
	b := Default()
	tests := []struct {
		typeName string
		want     []string
	}{
		// schedule has a default value, so only job_type is required.
		{"custom_spark_job_process", []string{"job_type"}},
		{"custom_spark_dataframe", nil},
		{"custom_spark_dataframe_column", nil},
		{"unknown_type", nil},
	}
	for _, tc := range tests {
		t.Run(tc.typeName, func(t *testing.T) {
			got := b.RequiredAttributes(tc.typeName)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("RequiredAttributes(%s) mismatch (-want +got):\n%s", tc.typeName, diff)
			}
		})
	}
}

func TestRequiredAttributesInherited(t *testing.T) {
	b, err := Parse([]byte(`
entityDefs:
  - name: base_job
    superTypes: [Process]
    attributeDefs:
      - name: owner
        isOptional: false
  - name: spark_job
    superTypes: [base_job]
    attributeDefs:
      - name: job_type
        isOptional: false
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []string{"job_type", "owner"}
	if diff := cmp.Diff(want, b.RequiredAttributes("spark_job")); diff != "" {
		t.Errorf("RequiredAttributes mismatch (-want +got):\n%s", diff)
	}
}

func TestToAPI(t *testing.T) {
	td := Default().ToAPI()

	if len(td.EntityDefs) != 3 || len(td.RelationshipDefs) != 1 {
		t.Fatalf("ToAPI() returned %d entity defs and %d relationship defs, want 3 and 1",
			len(td.EntityDefs), len(td.RelationshipDefs))
	}

	job := td.EntityDefs[2]
	wantJob := &api.EntityDef{
		Category:    api.CategoryEntity,
		Name:        "custom_spark_job_process",
		TypeVersion: "1.0",
		SuperTypes:  []string{"Process"},
		AttributeDefs: []*api.AttributeDef{
			{Name: "job_type", TypeName: "string", IsOptional: false, Cardinality: "SINGLE", ValuesMinCount: 1, ValuesMaxCount: 1},
			{Name: "schedule", TypeName: "string", IsOptional: true, Cardinality: "SINGLE", ValuesMaxCount: 1, DefaultValue: "adHoc"},
		},
	}
	if diff := cmp.Diff(wantJob, job); diff != "" {
		t.Errorf("job type mismatch (-want +got):\n%s", diff)
	}

	rel := td.RelationshipDefs[0]
	wantRel := &api.RelationshipDef{
		Category:             api.CategoryRelationship,
		Name:                 "custom_spark_dataframe_to_columns",
		TypeVersion:          "1.0",
		RelationshipCategory: "COMPOSITION",
		PropagateTags:        "NONE",
		EndDef1:              &api.RelationshipEndDef{Type: "custom_spark_dataframe", Name: "columns", IsContainer: true, Cardinality: "SET"},
		EndDef2:              &api.RelationshipEndDef{Type: "custom_spark_dataframe_column", Name: "dataframe", Cardinality: "SINGLE"},
		AttributeDefs:        []*api.AttributeDef{},
	}
	if diff := cmp.Diff(wantRel, rel); diff != "" {
		t.Errorf("relationship mismatch (-want +got):\n%s", diff)
	}

	// Types without supertypes or attributes must still serialize lists.
	data, err := json.Marshal(td)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("serialized typedefs contain null: %s", data)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty",
			yaml:    "",
			wantErr: "no type definitions",
		},
		{
			name: "unknown field",
			yaml: `
entityDefs:
  - name: t
    superTypes: [DataSet]
    colour: red
`,
			wantErr: "field colour not found",
		},
		{
			name: "duplicate type",
			yaml: `
entityDefs:
  - name: t
  - name: t
`,
			wantErr: `duplicate type name "t"`,
		},
		{
			name: "duplicate attribute",
			yaml: `
entityDefs:
  - name: t
    attributeDefs:
      - name: a
      - name: a
`,
			wantErr: `duplicate attribute "a" in t`,
		},
		{
			name: "bad cardinality",
			yaml: `
entityDefs:
  - name: t
    attributeDefs:
      - name: a
        cardinality: MANY
`,
			wantErr: `invalid cardinality "MANY"`,
		},
		{
			name: "bad version",
			yaml: `
entityDefs:
  - name: t
    typeVersion: one
`,
			wantErr: `invalid typeVersion "one"`,
		},
		{
			name: "unknown supertype",
			yaml: `
entityDefs:
  - name: t
    superTypes: [Table]
`,
			wantErr: `unknown supertype "Table"`,
		},
		{
			name: "unknown end type",
			yaml: `
entityDefs:
  - name: t
relationshipDefs:
  - name: r
    relationshipCategory: ASSOCIATION
    endDef1: {type: t, name: a}
    endDef2: {type: u, name: b}
`,
			wantErr: `unknown type "u"`,
		},
		{
			name: "bad category",
			yaml: `
entityDefs:
  - name: t
relationshipDefs:
  - name: r
    relationshipCategory: OWNERSHIP
    endDef1: {type: t, name: a}
    endDef2: {type: t, name: b}
`,
			wantErr: `invalid relationshipCategory "OWNERSHIP"`,
		},
		{
			name: "composition without container",
			yaml: `
entityDefs:
  - name: t
relationshipDefs:
  - name: r
    relationshipCategory: COMPOSITION
    endDef1: {type: t, name: a}
    endDef2: {type: t, name: b}
`,
			wantErr: "exactly one container end, got 0",
		},
		{
			name: "missing end",
			yaml: `
entityDefs:
  - name: t
relationshipDefs:
  - name: r
    relationshipCategory: ASSOCIATION
    endDef1: {type: t, name: a}
`,
			wantErr: "must define endDef1 and endDef2",
		},
		{
			name: "schema element attribute",
			yaml: `
entityDefs:
  - name: t
    options:
      schemaElementAttribute: columns
`,
			wantErr: `schemaElementAttribute "columns"`,
		},
		{
			name:    "null entity def",
			yaml:    "entityDefs:\n  - ~\n",
			wantErr: "empty entry #1 in entityDefs",
		},
		{
			name: "null attribute def",
			yaml: `
entityDefs:
  - name: t
    attributeDefs:
      - name: a
      - ~
`,
			wantErr: "empty attribute definition in t",
		},
		{
			name: "null relationship def",
			yaml: `
entityDefs:
  - name: t
relationshipDefs:
  - ~
`,
			wantErr: "empty entry #1 in relationshipDefs",
		},
		{
			name: "null relationship attribute def",
			yaml: `
relationshipDefs:
  - name: r
    attributeDefs: [~]
`,
			wantErr: "empty attribute definition in r",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Parse error = %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidationErrorsAreTyped(t *testing.T) {
	for _, in := range []string{
		"entityDefs:\n  - name: t\n    superTypes: [Table]\n",
		"entityDefs:\n  - ~\n",
	} {
		_, err := Parse([]byte(in))
		if !errors.Is(err, ErrInvalidTypeDef) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidTypeDef", in, err)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `
entityDefs:
  - name: custom_table
    superTypes: [DataSet]
    typeVersion: "2.1"
`
	if err := os.WriteFile(filepath.Join(dir, "typedefs.yml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write typedefs: %v", err)
	}
	st := store.NewDiskStore(dir)

	b, err := Load(st, "typedefs.yml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff([]string{"custom_table"}, b.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if b.EntityDefs[0].TypeVersion != "2.1" {
		t.Errorf("TypeVersion = %q, want %q", b.EntityDefs[0].TypeVersion, "2.1")
	}

	if _, err := Load(st, "missing.yml"); err == nil {
		t.Error("Load(missing.yml) succeeded, want error")
	}
}
