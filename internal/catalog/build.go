package catalog

import (
	"errors"
	"fmt"

	"github.com/dnswlt/dflineage/internal/dataset"
)

var (
	// ErrMissingAttribute is returned when an entity lacks an attribute that its type requires.
	ErrMissingAttribute = errors.New("missing required attribute")
	// ErrInvalidEntity is returned for entities that cannot be published as specified.
	ErrInvalidEntity = errors.New("invalid entity")
)

// Types holds the type names used for the entities of a batch.
type Types struct {
	DataFrame string
	Column    string
	Process   string
	// The relationship attribute of a column that points to its dataframe.
	ColumnRel string
}

func DefaultTypes() Types {
	return Types{
		DataFrame: DefaultDataFrameType,
		Column:    DefaultColumnType,
		Process:   DefaultProcessType,
		ColumnRel: DefaultDataFrameRelName,
	}
}

// RequiredAttributes reports the attributes that entities of a given type must set.
type RequiredAttributes interface {
	RequiredAttributes(typeName string) []string
}

type DataFrameArgs struct {
	Name          string
	QualifiedName string
	Format        string
	Description   string
}

type ProcessArgs struct {
	Name          string
	QualifiedName string
	JobType       string
	Schedule      string
}

// Builder constructs entities with fresh placeholder GUIDs.
type Builder struct {
	types    Types
	required RequiredAttributes
	guids    *GuidTracker
}

// NewBuilder returns a builder that draws GUIDs from guids.
// required may be nil, in which case only the built-in checks are performed.
func NewBuilder(guids *GuidTracker, types Types, required RequiredAttributes) *Builder {
	return &Builder{
		types:    types,
		required: required,
		guids:    guids,
	}
}

// Build constructs the batch for a job that reads a dataframe with the given columns.
// GUIDs are assigned to the dataframe first, then to the process, then to the columns.
//
// Build never prunes anything: columns that existed in an earlier upload of
// the same dataframe but are missing from columns are left untouched in the catalog.
func (b *Builder) Build(df DataFrameArgs, proc ProcessArgs, columns []dataset.Column) (*Batch, error) {
	dataFrame, err := b.NewDataFrame(df)
	if err != nil {
		return nil, err
	}
	process, err := b.NewProcess(proc, []*Ref{dataFrame.GetRef()}, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(columns))
	cols := make([]*Column, 0, len(columns))
	for _, c := range columns {
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: duplicate column %q in %s", ErrInvalidEntity, c.Name, dataFrame.QualifiedName)
		}
		seen[c.Name] = true
		col, err := b.NewColumn(dataFrame, c)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	return &Batch{
		Process:   process,
		DataFrame: dataFrame,
		Columns:   cols,
	}, nil
}

func (b *Builder) NewDataFrame(args DataFrameArgs) (*DataFrame, error) {
	if args.QualifiedName == "" {
		return nil, fmt.Errorf("%w: dataframe %q has no qualified name", ErrInvalidEntity, args.Name)
	}
	if args.Name == "" {
		return nil, fmt.Errorf("%w: dataframe %s has no name", ErrInvalidEntity, args.QualifiedName)
	}
	d := &DataFrame{
		TypeName:      b.types.DataFrame,
		GUID:          b.guids.Next(),
		Name:          args.Name,
		QualifiedName: args.QualifiedName,
		Format:        args.Format,
		Description:   args.Description,
	}
	if err := b.checkRequired(d); err != nil {
		return nil, err
	}
	return d, nil
}

// NewProcess constructs a process entity. The job type is mandatory.
// A nil outputs slice is published as an empty list.
func (b *Builder) NewProcess(args ProcessArgs, inputs, outputs []*Ref) (*Process, error) {
	if args.JobType == "" {
		return nil, fmt.Errorf("%w %q for process %q", ErrMissingAttribute, AttrJobType, args.QualifiedName)
	}
	if args.QualifiedName == "" {
		return nil, fmt.Errorf("%w: process %q has no qualified name", ErrInvalidEntity, args.Name)
	}
	if args.Name == "" {
		return nil, fmt.Errorf("%w: process %s has no name", ErrInvalidEntity, args.QualifiedName)
	}
	if err := ValidateSchedule(args.Schedule); err != nil {
		return nil, fmt.Errorf("%w: process %q: %v", ErrInvalidEntity, args.QualifiedName, err)
	}
	if outputs == nil {
		outputs = []*Ref{}
	}
	p := &Process{
		TypeName:      b.types.Process,
		GUID:          b.guids.Next(),
		Name:          args.Name,
		QualifiedName: args.QualifiedName,
		JobType:       args.JobType,
		Schedule:      args.Schedule,
		Inputs:        inputs,
		Outputs:       outputs,
	}
	if err := b.checkRequired(p); err != nil {
		return nil, err
	}
	return p, nil
}

// NewColumn constructs a column entity of dataframe df.
// Its qualified name is the dataframe's qualified name, followed by "#" and the column name.
func (b *Builder) NewColumn(df *DataFrame, col dataset.Column) (*Column, error) {
	if col.Name == "" {
		return nil, fmt.Errorf("%w: empty column name in %s", ErrInvalidEntity, df.QualifiedName)
	}
	c := &Column{
		TypeName:      b.types.Column,
		GUID:          b.guids.Next(),
		Name:          col.Name,
		QualifiedName: ColumnQualifiedName(df.QualifiedName, col.Name),
		DataType:      col.Type,
		RelName:       b.types.ColumnRel,
		DataFrame:     df.GetRef(),
	}
	if err := b.checkRequired(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ColumnQualifiedName returns the qualified name of column name in the dataframe with qualified name dfQName.
func ColumnQualifiedName(dfQName, name string) string {
	return dfQName + ColumnSeparator + name
}

func (b *Builder) checkRequired(e Entity) error {
	if b.required == nil {
		return nil
	}
	attrs := e.GetAttributes()
	for _, a := range b.required.RequiredAttributes(e.GetTypeName()) {
		switch a {
		case AttrName, AttrQualifiedName, AttrInputs, AttrOutputs:
			// Set by the constructors, which reject empty names.
			continue
		}
		if v, ok := attrs[a]; !ok || v == "" {
			return fmt.Errorf("%w %q for %s", ErrMissingAttribute, a, e.GetRef())
		}
	}
	return nil
}
