package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// ExternalIntrospector delegates schema discovery to an external process,
// e.g. a script that submits a Spark job and reports DataFrame.dtypes.
//
// The process receives an ExternalInput as JSON on stdin and must write
// an ExternalOutput as JSON to stdout. Anything written to stderr is logged.
type ExternalIntrospector struct {
	// Command is the executable to run (e.g. "python", "/path/to/script").
	Command string

	// Args are static command-line arguments passed to the external process.
	Args []string

	// Config is passed unmodified to the external process.
	Config map[string]any

	// Verbose enables logging of input and output JSON payloads.
	Verbose bool

	opts Options
}

var _ Introspector = (*ExternalIntrospector)(nil)

// ExternalInput is the JSON structure sent to the external process's stdin.
type ExternalInput struct {
	Path        string         `json:"path"`
	Header      bool           `json:"header"`
	InferSchema bool           `json:"inferSchema"`
	Delimiter   string         `json:"delimiter"`
	Config      map[string]any `json:"config,omitempty"`
}

// ExternalOutput is the JSON structure expected from the external process's stdout.
type ExternalOutput struct {
	Success bool `json:"success"`
	// Error message, populated if Success is false.
	Error   string   `json:"error,omitempty"`
	Columns []Column `json:"columns,omitempty"`
}

// NewExternalIntrospector returns an introspector that runs command with args.
// The read options are forwarded to the process.
func NewExternalIntrospector(command string, args []string, opts Options) (*ExternalIntrospector, error) {
	if command == "" {
		return nil, fmt.Errorf("no command specified for external introspector")
	}
	return &ExternalIntrospector{
		Command: command,
		Args:    args,
		opts:    opts,
	}, nil
}

func (e *ExternalIntrospector) Columns(ctx context.Context, path string) ([]Column, error) {
	input := ExternalInput{
		Path:        path,
		Header:      e.opts.Header,
		InferSchema: e.opts.InferSchema,
		Delimiter:   e.opts.Delimiter,
		Config:      e.Config,
	}
	inputBytes, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input JSON: %w", err)
	}
	if e.Verbose {
		log.Printf("[%s] Input JSON: %s", e.Command, string(inputBytes))
	}

	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Stdin = bytes.NewReader(inputBytes)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Printf("Introspecting %s with %s %s", path, e.Command, strings.Join(e.Args, " "))
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("external introspector failed: %w, stderr: %s", err, stderr.String())
	}
	if stderr.Len() > 0 {
		log.Printf("[%s stderr]: %s", e.Command, stderr.String())
	}
	if e.Verbose {
		log.Printf("[%s] Output JSON: %s", e.Command, stdout.String())
	}

	var output ExternalOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("failed to parse output JSON: %w, stdout was: %q", err, stdout.String())
	}
	if !output.Success {
		return nil, fmt.Errorf("external introspector reported failure: %s", output.Error)
	}
	if len(output.Columns) == 0 {
		return nil, ErrEmptyDataset
	}
	for i, c := range output.Columns {
		if c.Type == "" {
			output.Columns[i].Type = TypeString
		}
	}
	return output.Columns, nil
}
