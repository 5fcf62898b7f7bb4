package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// RequestIDHeader carries a client-generated ID for each request,
	// which Purview echoes in its logs.
	RequestIDHeader = "x-ms-client-request-id"

	typedefsPath   = "/types/typedefs"
	entityBulkPath = "/entity/bulk"

	// Max. number of bytes of an error response body to keep.
	maxErrorBody = 4096
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// The Atlas v2 API base URL, e.g. https://<account>.purview.azure.com/catalog/api/atlas/v2
	// [required]
	Endpoint string
	// [required]
	Auth Authenticator
	// Timeout for each HTTP request, including token retrieval. Zero means no timeout.
	Timeout time.Duration
	// Base HTTP client. Defaults to a new client with the default transport.
	HTTPClient *http.Client
}

// Client is a minimal Atlas v2 REST client. It performs exactly one HTTP request
// per call and never retries.
type Client struct {
	endpoint     string
	http         *http.Client
	newRequestID func() string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL %q: %v", opts.Endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint URL %q: must be an absolute http(s) URL", opts.Endpoint)
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("%w: no authenticator configured", ErrAuthentication)
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	if opts.Timeout > 0 {
		withTimeout := *base
		withTimeout.Timeout = opts.Timeout
		base = &withTimeout
	}
	return &Client{
		endpoint:     strings.TrimSuffix(opts.Endpoint, "/"),
		http:         opts.Auth.Client(ctx, base),
		newRequestID: uuid.NewString,
	}, nil
}

// Endpoint returns the API base URL of the client.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// UploadTypedefs submits all type definitions in defs in a single request.
// If forceUpdate is true, existing types of the same name are overwritten (PUT),
// otherwise the types are created (POST) and the catalog rejects existing ones.
// It returns the type definitions as acknowledged by the catalog.
func (c *Client) UploadTypedefs(ctx context.Context, defs *TypeDefs, forceUpdate bool) (*TypeDefs, error) {
	if defs == nil || len(defs.EntityDefs)+len(defs.RelationshipDefs) == 0 {
		return nil, errors.New("no type definitions to upload")
	}
	method := http.MethodPost
	if forceUpdate {
		method = http.MethodPut
	}
	var ack TypeDefs
	if err := c.do(ctx, method, typedefsPath, defs, &ack); err != nil {
		return nil, fmt.Errorf("failed to upload type definitions: %w", err)
	}
	return &ack, nil
}

// UploadEntities submits all entities in a single bulk request, preserving their order.
// The catalog creates new entities and updates existing ones, matched by qualifiedName.
func (c *Client) UploadEntities(ctx context.Context, entities []*Entity) (*EntityMutationResponse, error) {
	if len(entities) == 0 {
		return nil, errors.New("no entities to upload")
	}
	var resp EntityMutationResponse
	if err := c.do(ctx, http.MethodPost, entityBulkPath, &EntitiesWithExtInfo{Entities: entities}, &resp); err != nil {
		return nil, fmt.Errorf("failed to upload %d entities: %w", len(entities), err)
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	u := c.endpoint + path
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := c.newRequestID()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return fmt.Errorf("%w: could not obtain access token: %v", ErrAuthentication, rerr)
		}
		return fmt.Errorf("%s %s (request %s): %w", method, u, requestID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Method:     method,
			URL:        u,
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, apiErr) != nil || apiErr.ErrorMessage == "" {
			apiErr.Body = strings.TrimSpace(string(raw))
		}
		log.Printf("Catalog request %s %s failed with status %d (request %s)", method, u, resp.StatusCode, requestID)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body: nothing to acknowledge.
			return nil
		}
		return fmt.Errorf("failed to decode response of %s %s (request %s): %w", method, u, requestID, err)
	}
	return nil
}
