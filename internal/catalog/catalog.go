// Package catalog defines the lineage entities that dflineage publishes:
// a job process, the dataframe it reads, and the dataframe's columns.
// See the api package for the types that are marshalled to JSON.
package catalog

import (
	"maps"
)

// Well-known attribute names.
const (
	AttrName          = "name"
	AttrQualifiedName = "qualifiedName"
	AttrDescription   = "description"
	// Process attributes
	AttrInputs   = "inputs"
	AttrOutputs  = "outputs"
	AttrJobType  = "job_type"
	AttrSchedule = "schedule"
	// DataFrame attributes
	AttrFormat = "format"
	// Column attributes
	AttrDataType = "data_type"
)

const (
	// Separates a dataframe's qualified name from a column name.
	ColumnSeparator = "#"

	// The schedule of jobs that are not run periodically.
	ScheduleAdHoc = "adHoc"
)

// Default type names. They must match the names in the type definitions uploaded to the catalog.
const (
	DefaultDataFrameType    = "custom_spark_dataframe"
	DefaultColumnType       = "custom_spark_dataframe_column"
	DefaultProcessType      = "custom_spark_job_process"
	DefaultDataFrameRelName = "dataframe"
)

// Ref is a minimal reference to an entity: its type and qualified name.
// Entities point to each other only through Refs, never by embedding.
type Ref struct {
	TypeName      string
	QualifiedName string
}

func (r *Ref) Equal(other *Ref) bool {
	return r.TypeName == other.TypeName && r.QualifiedName == other.QualifiedName
}

func (r *Ref) String() string {
	return r.TypeName + ":" + r.QualifiedName
}

// Entity is the interface implemented by all entity kinds (Process, DataFrame, Column).
type Entity interface {
	GetTypeName() string
	// The placeholder GUID assigned at construction time.
	GetGUID() string
	GetName() string
	// Unique key of the entity in the catalog. The catalog updates existing
	// entities with the same qualified name instead of creating new ones.
	GetQualifiedName() string
	GetRef() *Ref
	// GetAttributes returns the type-specific attributes that are set,
	// excluding name, qualifiedName, and references to other entities.
	GetAttributes() map[string]any
}

// Process

type Process struct {
	TypeName      string
	GUID          string
	Name          string
	QualifiedName string
	// The kind of job, e.g. "notebook".
	// [required]
	JobType string
	// "adHoc" or a cron expression.
	// [optional]
	Schedule string
	// Datasets read by the process.
	Inputs []*Ref
	// Datasets written by the process.
	Outputs []*Ref
}

// DataFrame

type DataFrame struct {
	TypeName      string
	GUID          string
	Name          string
	QualifiedName string
	// The storage format of the data, e.g. "csv".
	// [optional]
	Format string
	// An HTML description shown in the catalog UI.
	// [optional]
	Description string
}

// Column

type Column struct {
	TypeName      string
	GUID          string
	Name          string
	QualifiedName string
	// The data type as reported by the dataset's schema, e.g. "int".
	DataType string
	// Name of the relationship attribute pointing to the dataframe.
	RelName string
	// The dataframe that contains this column.
	DataFrame *Ref
}

func (p *Process) GetTypeName() string      { return p.TypeName }
func (p *Process) GetGUID() string          { return p.GUID }
func (p *Process) GetName() string          { return p.Name }
func (p *Process) GetQualifiedName() string { return p.QualifiedName }
func (p *Process) GetRef() *Ref             { return &Ref{TypeName: p.TypeName, QualifiedName: p.QualifiedName} }
func (p *Process) GetAttributes() map[string]any {
	attrs := make(map[string]any)
	if p.JobType != "" {
		attrs[AttrJobType] = p.JobType
	}
	if p.Schedule != "" {
		attrs[AttrSchedule] = p.Schedule
	}
	return attrs
}

func (d *DataFrame) GetTypeName() string      { return d.TypeName }
func (d *DataFrame) GetGUID() string          { return d.GUID }
func (d *DataFrame) GetName() string          { return d.Name }
func (d *DataFrame) GetQualifiedName() string { return d.QualifiedName }
func (d *DataFrame) GetRef() *Ref             { return &Ref{TypeName: d.TypeName, QualifiedName: d.QualifiedName} }
func (d *DataFrame) GetAttributes() map[string]any {
	attrs := make(map[string]any)
	if d.Format != "" {
		attrs[AttrFormat] = d.Format
	}
	if d.Description != "" {
		attrs[AttrDescription] = d.Description
	}
	return attrs
}

func (c *Column) GetTypeName() string      { return c.TypeName }
func (c *Column) GetGUID() string          { return c.GUID }
func (c *Column) GetName() string          { return c.Name }
func (c *Column) GetQualifiedName() string { return c.QualifiedName }
func (c *Column) GetRef() *Ref             { return &Ref{TypeName: c.TypeName, QualifiedName: c.QualifiedName} }
func (c *Column) GetAttributes() map[string]any {
	return map[string]any{AttrDataType: c.DataType}
}

// Batch holds all entities of one workflow run.
type Batch struct {
	Process   *Process
	DataFrame *DataFrame
	Columns   []*Column
}

// Entities returns the entities of the batch in upload order:
// the process, the dataframe, then all columns in schema order.
func (b *Batch) Entities() []Entity {
	result := make([]Entity, 0, 2+len(b.Columns))
	result = append(result, b.Process, b.DataFrame)
	for _, c := range b.Columns {
		result = append(result, c)
	}
	return result
}

// GUIDs maps the placeholder GUIDs of all entities to their qualified names.
func (b *Batch) GUIDs() map[string]string {
	result := make(map[string]string, 2+len(b.Columns))
	for _, e := range b.Entities() {
		result[e.GetGUID()] = e.GetQualifiedName()
	}
	return result
}

// withNames returns a copy of attrs with name and qualifiedName of e added.
func withNames(e Entity, attrs map[string]any) map[string]any {
	result := maps.Clone(attrs)
	if result == nil {
		result = make(map[string]any)
	}
	result[AttrName] = e.GetName()
	result[AttrQualifiedName] = e.GetQualifiedName()
	return result
}
