// Package config holds the lineage settings: which dataset is published,
// how it is named in the catalog, and which job reads it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dnswlt/dflineage/internal/catalog"
	"github.com/dnswlt/dflineage/internal/dataset"
	"github.com/dnswlt/dflineage/internal/store"
	"gopkg.in/yaml.v3"
)

// Defaults of the demo setup.
const (
	DefaultDatasetName   = "demo_dbfs_delays_data"
	DefaultFormat        = "csv"
	DefaultQNamePrefix   = "pyapacheatlas://"
	DefaultCluster       = "demo_cluster"
	DefaultJobType       = "notebook"
	DefaultDatasetPath   = "/databricks-datasets/flights/departuredelays.csv"
	DefaultCatalogDomain = "purview.azure.com"
)

// DatasetConfig describes the dataset (dataframe) whose schema is published.
type DatasetConfig struct {
	Name string `yaml:"name"`
	// Defaults to the process's qualified name prefix followed by Name.
	QualifiedName string `yaml:"qualifiedName"`
	Format        string `yaml:"format"`
	// Markdown, rendered to HTML on upload.
	Description string `yaml:"description"`

	// Options for reading delimited files.
	Header      *bool  `yaml:"header"`
	InferSchema *bool  `yaml:"inferSchema"`
	Delimiter   string `yaml:"delimiter"`
}

// ProcessConfig describes the job that reads the dataset.
type ProcessConfig struct {
	Cluster             string `yaml:"cluster"`
	QualifiedNamePrefix string `yaml:"qualifiedNamePrefix"`
	JobType             string `yaml:"jobType"`
	// "adHoc" or a cron expression. Empty means the type's default applies.
	Schedule string `yaml:"schedule"`
}

// TypesConfig holds the names of the catalog types used for entities.
// They must match the uploaded type definitions.
type TypesConfig struct {
	DataFrame          string `yaml:"dataFrame"`
	Column             string `yaml:"column"`
	Process            string `yaml:"process"`
	ColumnRelationship string `yaml:"columnRelationship"`
}

// IntrospectorConfig configures an external process that reads dataset schemas.
// If Command is empty, the built-in CSV reader is used.
type IntrospectorConfig struct {
	Command string         `yaml:"command"`
	Args    []string       `yaml:"args"`
	Config  map[string]any `yaml:"config"`
	Verbose bool           `yaml:"verbose"`
}

// Bundle is the umbrella struct for the serialized lineage settings YAML.
type Bundle struct {
	Dataset      DatasetConfig      `yaml:"dataset"`
	Process      ProcessConfig      `yaml:"process"`
	Types        TypesConfig        `yaml:"types"`
	Introspector IntrospectorConfig `yaml:"introspector"`
	// Path of the type definitions bundle in the store. Empty means built-in.
	Typedefs string `yaml:"typedefs"`
}

func Default() *Bundle {
	b := &Bundle{}
	b.setDefaults()
	return b
}

func boolPtr(b bool) *bool {
	return &b
}

func (b *Bundle) setDefaults() {
	d := &b.Dataset
	if d.Name == "" {
		d.Name = DefaultDatasetName
	}
	if d.Format == "" {
		d.Format = DefaultFormat
	}
	if d.Header == nil {
		d.Header = boolPtr(true)
	}
	if d.InferSchema == nil {
		d.InferSchema = boolPtr(true)
	}
	if d.Delimiter == "" {
		d.Delimiter = ","
	}

	p := &b.Process
	if p.Cluster == "" {
		p.Cluster = DefaultCluster
	}
	if p.QualifiedNamePrefix == "" {
		p.QualifiedNamePrefix = DefaultQNamePrefix
	}
	if p.JobType == "" {
		p.JobType = DefaultJobType
	}
	if d.QualifiedName == "" {
		d.QualifiedName = p.QualifiedNamePrefix + d.Name
	}

	types := catalog.DefaultTypes()
	t := &b.Types
	if t.DataFrame == "" {
		t.DataFrame = types.DataFrame
	}
	if t.Column == "" {
		t.Column = types.Column
	}
	if t.Process == "" {
		t.Process = types.Process
	}
	if t.ColumnRelationship == "" {
		t.ColumnRelationship = types.ColumnRel
	}
}

// Load reads the lineage settings from configPath in st.
// Unknown fields are rejected. Unset fields take their default values.
func Load(st store.Store, configPath string) (*Bundle, error) {
	bs, err := st.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read config %q: %w", configPath, err)
	}
	return Parse(bs, configPath)
}

// Parse decodes the lineage settings from YAML. source is only used in error messages.
func Parse(data []byte, source string) (*Bundle, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var bundle Bundle
	if err := dec.Decode(&bundle); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid configuration YAML in %q: %v", source, err)
	}
	bundle.setDefaults()
	if err := catalog.ValidateSchedule(bundle.Process.Schedule); err != nil {
		return nil, fmt.Errorf("invalid configuration in %q: %v", source, err)
	}
	return &bundle, nil
}

func (b *Bundle) CatalogTypes() catalog.Types {
	return catalog.Types{
		DataFrame: b.Types.DataFrame,
		Column:    b.Types.Column,
		Process:   b.Types.Process,
		ColumnRel: b.Types.ColumnRelationship,
	}
}

// DataFrameArgs returns the arguments for the dataframe entity.
// The Markdown description is rendered to HTML.
func (b *Bundle) DataFrameArgs() (catalog.DataFrameArgs, error) {
	desc, err := catalog.RenderDescription(b.Dataset.Description)
	if err != nil {
		return catalog.DataFrameArgs{}, fmt.Errorf("invalid description of dataset %s: %v", b.Dataset.Name, err)
	}
	return catalog.DataFrameArgs{
		Name:          b.Dataset.Name,
		QualifiedName: b.Dataset.QualifiedName,
		Format:        b.Dataset.Format,
		Description:   desc,
	}, nil
}

// ProcessArgs returns the arguments for the process entity of the job at jobPath.
// The process is named after the cluster and the job path, e.g.
// "demo_cluster/Users/me/notebook".
func (b *Bundle) ProcessArgs(jobPath string) catalog.ProcessArgs {
	name := b.Process.Cluster + jobPath
	return catalog.ProcessArgs{
		Name:          name,
		QualifiedName: b.Process.QualifiedNamePrefix + name,
		JobType:       b.Process.JobType,
		Schedule:      b.Process.Schedule,
	}
}

func (b *Bundle) DatasetOptions() dataset.Options {
	return dataset.Options{
		Header:      b.Dataset.Header == nil || *b.Dataset.Header,
		InferSchema: b.Dataset.InferSchema == nil || *b.Dataset.InferSchema,
		Delimiter:   b.Dataset.Delimiter,
	}
}

// NewIntrospector returns the introspector configured in b.
// The built-in CSV introspector reads datasets from st.
func (b *Bundle) NewIntrospector(st store.Store) (dataset.Introspector, error) {
	ic := b.Introspector
	if ic.Command == "" {
		c, err := dataset.NewCSVIntrospector(st, b.DatasetOptions())
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	e, err := dataset.NewExternalIntrospector(ic.Command, ic.Args, b.DatasetOptions())
	if err != nil {
		return nil, err
	}
	e.Config = ic.Config
	e.Verbose = ic.Verbose
	return e, nil
}

// CatalogEndpoint returns the Atlas API endpoint of the Purview account catalogName.
func CatalogEndpoint(catalogName string) string {
	return fmt.Sprintf("https://%s.%s/catalog/api/atlas/v2", catalogName, DefaultCatalogDomain)
}
