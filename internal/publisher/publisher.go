// Package publisher runs the lineage workflow: it declares the type
// definitions, reads the schema of a dataset, and uploads a process,
// the dataset, and its columns to the catalog in a single request.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"

	"github.com/dnswlt/dflineage/internal/api"
	"github.com/dnswlt/dflineage/internal/catalog"
	"github.com/dnswlt/dflineage/internal/config"
	"github.com/dnswlt/dflineage/internal/dataset"
	"github.com/dnswlt/dflineage/internal/typedefs"
)

// CatalogClient is the subset of the catalog API used by the Publisher.
// It is implemented by *api.Client.
type CatalogClient interface {
	UploadTypedefs(ctx context.Context, defs *api.TypeDefs, forceUpdate bool) (*api.TypeDefs, error)
	UploadEntities(ctx context.Context, entities []*api.Entity) (*api.EntityMutationResponse, error)
}

var _ CatalogClient = (*api.Client)(nil)

var (
	ErrNoClient = errors.New("no catalog client configured")
)

// Request identifies the dataset and job that lineage is published for.
type Request struct {
	// Path of the dataset, as understood by the introspector.
	DatasetPath string
	// Path of the job (e.g. notebook) that reads the dataset.
	JobPath string
	// Skip declaring the type definitions, e.g. because they already exist.
	SkipTypedefs bool
}

// Result holds everything a workflow run produced.
type Result struct {
	// The type definitions as acknowledged by the catalog.
	// nil if type definitions were skipped.
	TypedefsAck *api.TypeDefs
	Batch       *catalog.Batch
	// Placeholder GUIDs mapped to the GUIDs assigned by the catalog.
	GuidAssignments map[string]string
	Mutation        *api.EntityMutationResponse
}

// Publisher runs the lineage workflow. A Publisher holds no state
// between runs, so each run uses a fresh GuidTracker and runs never
// share placeholder GUIDs.
type Publisher struct {
	client       CatalogClient
	settings     *config.Bundle
	typedefs     *typedefs.Bundle
	introspector dataset.Introspector
	newGuids     func() *catalog.GuidTracker
}

// New returns a Publisher. client may be nil if only Describe is used.
func New(client CatalogClient, settings *config.Bundle, defs *typedefs.Bundle, introspector dataset.Introspector) *Publisher {
	return &Publisher{
		client:       client,
		settings:     settings,
		typedefs:     defs,
		introspector: introspector,
		newGuids:     catalog.NewGuidTracker,
	}
}

// PublishTypedefs validates the type definitions and uploads them,
// overwriting existing definitions of the same name.
func (p *Publisher) PublishTypedefs(ctx context.Context) (*api.TypeDefs, error) {
	if p.client == nil {
		return nil, ErrNoClient
	}
	if err := p.typedefs.Validate(); err != nil {
		return nil, err
	}
	ack, err := p.client.UploadTypedefs(ctx, p.typedefs.ToAPI(), true)
	if err != nil {
		return nil, err
	}
	log.Printf("Uploaded type definitions %v", p.typedefs.Names())
	return ack, nil
}

// Columns returns the columns of the dataset at path.
func (p *Publisher) Columns(ctx context.Context, path string) ([]dataset.Column, error) {
	columns, err := p.introspector.Columns(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of %s: %w", path, err)
	}
	log.Printf("Read schema of %s: %d columns", path, len(columns))
	return columns, nil
}

// Describe reads the dataset's schema and builds the entity batch
// without contacting the catalog.
func (p *Publisher) Describe(ctx context.Context, req Request, guids *catalog.GuidTracker) (*catalog.Batch, error) {
	p.checkTypes()
	columns, err := p.Columns(ctx, req.DatasetPath)
	if err != nil {
		return nil, err
	}
	dfArgs, err := p.settings.DataFrameArgs()
	if err != nil {
		return nil, err
	}
	b := catalog.NewBuilder(guids, p.settings.CatalogTypes(), p.typedefs)
	batch, err := b.Build(dfArgs, p.settings.ProcessArgs(req.JobPath), columns)
	if err != nil {
		return nil, err
	}
	log.Printf("Built process %s reading %s with %d columns",
		batch.Process.QualifiedName, batch.DataFrame.QualifiedName, len(batch.Columns))
	return batch, nil
}

// checkTypes logs a warning for entity types that are not defined in the
// type definitions. Such types must already exist in the catalog.
func (p *Publisher) checkTypes() {
	t := p.settings.CatalogTypes()
	names := p.typedefs.Names()
	for _, typeName := range []string{t.DataFrame, t.Column, t.Process} {
		if !slices.Contains(names, typeName) {
			log.Printf("Warning: type %s is not part of the type definitions", typeName)
		}
	}
}

// Run executes the full workflow:
// type definitions, schema, entity construction, and upload.
// Every stage must succeed before the next one starts.
func (p *Publisher) Run(ctx context.Context, req Request) (*Result, error) {
	if p.client == nil {
		return nil, ErrNoClient
	}
	if err := p.typedefs.Validate(); err != nil {
		return nil, err
	}
	result := &Result{}

	if !req.SkipTypedefs {
		ack, err := p.PublishTypedefs(ctx)
		if err != nil {
			return nil, err
		}
		result.TypedefsAck = ack
	}

	batch, err := p.Describe(ctx, req, p.newGuids())
	if err != nil {
		return nil, err
	}
	result.Batch = batch

	entities, err := catalog.ToAPIBatch(batch)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.UploadEntities(ctx, entities)
	if err != nil {
		return nil, fmt.Errorf("failed to upload entities: %w", err)
	}
	result.Mutation = resp
	result.GuidAssignments = resp.GUIDAssignments
	log.Printf("Uploaded %d entities (%d created, %d updated)",
		len(entities), resp.Count("CREATE"), resp.Count("UPDATE"))

	return result, nil
}

// DryRun is the payload that Run would send to the catalog.
type DryRun struct {
	Typedefs *api.TypeDefs `json:"typedefs,omitempty"`
	Entities []*api.Entity `json:"entities"`
}

// Plan builds the payloads of a run without sending them.
func (p *Publisher) Plan(ctx context.Context, req Request) (*DryRun, error) {
	if err := p.typedefs.Validate(); err != nil {
		return nil, err
	}
	batch, err := p.Describe(ctx, req, p.newGuids())
	if err != nil {
		return nil, err
	}
	entities, err := catalog.ToAPIBatch(batch)
	if err != nil {
		return nil, err
	}
	plan := &DryRun{Entities: entities}
	if !req.SkipTypedefs {
		plan.Typedefs = p.typedefs.ToAPI()
	}
	return plan, nil
}

// Write writes the payloads as indented JSON to w.
func (d *DryRun) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
