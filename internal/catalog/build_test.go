package catalog

import (
	"errors"
	"slices"
	"testing"

	"github.com/dnswlt/dflineage/internal/dataset"
	"github.com/google/go-cmp/cmp"
)

// requiredAttrs is a static RequiredAttributes implementation.
type requiredAttrs map[string][]string

func (r requiredAttrs) RequiredAttributes(typeName string) []string {
	return r[typeName]
}

var demoRequired = requiredAttrs{
	DefaultProcessType: {AttrJobType},
}

func demoArgs() (DataFrameArgs, ProcessArgs) {
	return DataFrameArgs{
			Name:          "demo",
			QualifiedName: "pyapacheatlas://demo",
			Format:        "csv",
		}, ProcessArgs{
			Name:          "demo_cluster/Users/me/notebook",
			QualifiedName: "pyapacheatlas://demo_cluster/Users/me/notebook",
			JobType:       "notebook",
		}
}

// fixedGuids returns a tracker with predictable GUIDs, starting at "-1001".
func fixedGuids() *GuidTracker {
	return NewGuidTrackerFrom(DefaultGuidStart, false)
}

func TestBuild(t *testing.T) {
	b := NewBuilder(fixedGuids(), DefaultTypes(), demoRequired)
	df, proc := demoArgs()
	columns := []dataset.Column{
		{Name: "a", Type: "int"},
		{Name: "b", Type: "string"},
	}

	batch, err := b.Build(df, proc, columns)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	dfRef := &Ref{TypeName: DefaultDataFrameType, QualifiedName: "pyapacheatlas://demo"}
	want := &Batch{
		Process: &Process{
			TypeName:      DefaultProcessType,
			GUID:          "-1002",
			Name:          "demo_cluster/Users/me/notebook",
			QualifiedName: "pyapacheatlas://demo_cluster/Users/me/notebook",
			JobType:       "notebook",
			Inputs:        []*Ref{dfRef},
			Outputs:       []*Ref{},
		},
		DataFrame: &DataFrame{
			TypeName:      DefaultDataFrameType,
			GUID:          "-1001",
			Name:          "demo",
			QualifiedName: "pyapacheatlas://demo",
			Format:        "csv",
		},
		Columns: []*Column{
			{
				TypeName:      DefaultColumnType,
				GUID:          "-1003",
				Name:          "a",
				QualifiedName: "pyapacheatlas://demo#a",
				DataType:      "int",
				RelName:       DefaultDataFrameRelName,
				DataFrame:     dfRef,
			},
			{
				TypeName:      DefaultColumnType,
				GUID:          "-1004",
				Name:          "b",
				QualifiedName: "pyapacheatlas://demo#b",
				DataType:      "string",
				RelName:       DefaultDataFrameRelName,
				DataFrame:     dfRef,
			},
		},
	}
	if diff := cmp.Diff(want, batch); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildColumnPerInput(t *testing.T) {
	var columns []dataset.Column
	for _, name := range []string{"date", "delay", "distance", "origin", "destination"} {
		columns = append(columns, dataset.Column{Name: name, Type: "string"})
	}
	df, proc := demoArgs()
	batch, err := NewBuilder(NewGuidTracker(), DefaultTypes(), nil).Build(df, proc, columns)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(batch.Columns) != len(columns) {
		t.Fatalf("got %d columns, want %d", len(batch.Columns), len(columns))
	}
	for i, c := range batch.Columns {
		want := "pyapacheatlas://demo#" + columns[i].Name
		if c.QualifiedName != want {
			t.Errorf("column %d: QualifiedName = %q, want %q", i, c.QualifiedName, want)
		}
		if !c.DataFrame.Equal(batch.DataFrame.GetRef()) {
			t.Errorf("column %d refers to %s, want %s", i, c.DataFrame, batch.DataFrame.GetRef())
		}
	}

	if len(batch.Process.Inputs) != 1 {
		t.Fatalf("process has %d inputs, want 1", len(batch.Process.Inputs))
	}
	if !batch.Process.Inputs[0].Equal(batch.DataFrame.GetRef()) {
		t.Errorf("process input = %s, want %s", batch.Process.Inputs[0], batch.DataFrame.GetRef())
	}
}

func TestBuildTwiceSameNamesNewGUIDs(t *testing.T) {
	df, proc := demoArgs()
	columns := []dataset.Column{{Name: "a", Type: "int"}, {Name: "b", Type: "string"}}

	first, err := NewBuilder(NewGuidTracker(), DefaultTypes(), demoRequired).Build(df, proc, columns)
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	second, err := NewBuilder(NewGuidTracker(), DefaultTypes(), demoRequired).Build(df, proc, columns)
	if err != nil {
		t.Fatalf("second Build failed: %v", err)
	}

	qnames := func(batch *Batch) []string {
		var result []string
		for _, e := range batch.Entities() {
			result = append(result, e.GetQualifiedName())
		}
		return result
	}
	if diff := cmp.Diff(qnames(first), qnames(second)); diff != "" {
		t.Errorf("qualified names differ (-first +second):\n%s", diff)
	}
	secondGUIDs := second.GUIDs()
	for guid, qname := range first.GUIDs() {
		if other, ok := secondGUIDs[guid]; ok {
			t.Errorf("GUID %s used for %s and %s", guid, qname, other)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(df *DataFrameArgs, proc *ProcessArgs)
		columns  []dataset.Column
		required RequiredAttributes
		wantErr  error
	}{
		{
			name:    "missing job type",
			modify:  func(df *DataFrameArgs, proc *ProcessArgs) { proc.JobType = "" },
			wantErr: ErrMissingAttribute,
		},
		{
			name:     "missing required format",
			modify:   func(df *DataFrameArgs, proc *ProcessArgs) { df.Format = "" },
			required: requiredAttrs{DefaultDataFrameType: {AttrFormat}},
			wantErr:  ErrMissingAttribute,
		},
		{
			name:    "empty dataset qualified name",
			modify:  func(df *DataFrameArgs, proc *ProcessArgs) { df.QualifiedName = "" },
			wantErr: ErrInvalidEntity,
		},
		{
			name:    "empty dataset name",
			modify:  func(df *DataFrameArgs, proc *ProcessArgs) { df.Name = "" },
			wantErr: ErrInvalidEntity,
		},
		{
			name:    "empty process name",
			modify:  func(df *DataFrameArgs, proc *ProcessArgs) { proc.Name = "" },
			wantErr: ErrInvalidEntity,
		},
		{
			name:    "empty column name",
			columns: []dataset.Column{{Name: "", Type: "int"}},
			wantErr: ErrInvalidEntity,
		},
		{
			name:    "duplicate column",
			columns: []dataset.Column{{Name: "a", Type: "int"}, {Name: "a", Type: "string"}},
			wantErr: ErrInvalidEntity,
		},
		{
			name:    "invalid schedule",
			modify:  func(df *DataFrameArgs, proc *ProcessArgs) { proc.Schedule = "daily at noon" },
			wantErr: ErrInvalidEntity,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			df, proc := demoArgs()
			if tc.modify != nil {
				tc.modify(&df, &proc)
			}
			columns := tc.columns
			if columns == nil {
				columns = []dataset.Column{{Name: "a", Type: "int"}}
			}
			_, err := NewBuilder(NewGuidTracker(), DefaultTypes(), tc.required).Build(df, proc, columns)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Build error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	for _, s := range []string{"", "adHoc", "0 6 * * *", "*/15 * * * 1-5", "@daily"} {
		if err := ValidateSchedule(s); err != nil {
			t.Errorf("ValidateSchedule(%q) failed: %v", s, err)
		}
	}
	for _, s := range []string{"adhoc", "0 6 * *", "every day", "61 * * * *"} {
		if err := ValidateSchedule(s); err == nil {
			t.Errorf("ValidateSchedule(%q) succeeded, want error", s)
		}
	}
}

func TestBatchEntitiesOrder(t *testing.T) {
	df, proc := demoArgs()
	columns := []dataset.Column{{Name: "z"}, {Name: "a"}, {Name: "m"}}
	batch, err := NewBuilder(fixedGuids(), DefaultTypes(), nil).Build(df, proc, columns)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var got []string
	for _, e := range batch.Entities() {
		got = append(got, e.GetName())
	}
	want := []string{proc.Name, df.Name, "z", "a", "m"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Entities() order mismatch (-want +got):\n%s", diff)
	}
	guids := batch.GUIDs()
	keys := make([]string, 0, len(guids))
	for k := range guids {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if diff := cmp.Diff([]string{"-1001", "-1002", "-1003", "-1004", "-1005"}, keys); diff != "" {
		t.Errorf("GUIDs() mismatch (-want +got):\n%s", diff)
	}
}
