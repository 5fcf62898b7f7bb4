// Package testutil contains test helpers shared by several packages,
// most importantly a fake Atlas catalog server.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	// APIPath is the path prefix of the fake's Atlas v2 API.
	APIPath = "/catalog/api/atlas/v2"
	// AccessToken is the bearer token issued by the fake's token endpoint.
	AccessToken = "fake-access-token"
)

// Request is a request recorded by FakeAtlas.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// FakeAtlas is an httptest server that serves both the Azure AD token
// endpoint (/<tenant>/oauth2/token) and the subset of the Atlas v2 API
// used by dflineage. It records all requests.
type FakeAtlas struct {
	Server *httptest.Server

	// Status codes to respond with. Zero means success.
	TokenStatus    int
	TypedefsStatus int
	EntitiesStatus int
	// If set, API requests without the fake's bearer token are rejected with 401.
	RequireToken bool

	mu       sync.Mutex
	requests []*Request
}

// NewFakeAtlas starts a FakeAtlas that is shut down when the test ends.
func NewFakeAtlas(t *testing.T) *FakeAtlas {
	t.Helper()
	f := &FakeAtlas{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.Server.Close)
	return f
}

// Endpoint returns the Atlas v2 API base URL of the fake.
func (f *FakeAtlas) Endpoint() string {
	return f.Server.URL + APIPath
}

// AuthorityURL returns the URL to use as Azure AD authority.
func (f *FakeAtlas) AuthorityURL() string {
	return f.Server.URL
}

// Requests returns all requests received so far, in order.
func (f *FakeAtlas) Requests() []*Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Request(nil), f.requests...)
}

// APIRequests returns all requests to the Atlas API (excluding token requests).
func (f *FakeAtlas) APIRequests() []*Request {
	var result []*Request
	for _, r := range f.Requests() {
		if strings.HasPrefix(r.Path, APIPath) {
			result = append(result, r)
		}
	}
	return result
}

func (f *FakeAtlas) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, &Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	f.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/oauth2/token") && r.Method == http.MethodPost:
		f.serveToken(w)
	case r.URL.Path == APIPath+"/types/typedefs" && (r.Method == http.MethodPost || r.Method == http.MethodPut):
		if !f.authorized(w, r) {
			return
		}
		if f.TypedefsStatus != 0 {
			writeAtlasError(w, f.TypedefsStatus)
			return
		}
		// Acknowledge by echoing the definitions.
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	case r.URL.Path == APIPath+"/entity/bulk" && r.Method == http.MethodPost:
		if !f.authorized(w, r) {
			return
		}
		if f.EntitiesStatus != 0 {
			writeAtlasError(w, f.EntitiesStatus)
			return
		}
		f.serveEntityBulk(w, body)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeAtlas) authorized(w http.ResponseWriter, r *http.Request) bool {
	if !f.RequireToken || r.Header.Get("Authorization") == "Bearer "+AccessToken {
		return true
	}
	writeAtlasError(w, http.StatusUnauthorized)
	return false
}

func (f *FakeAtlas) serveToken(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if f.TokenStatus != 0 {
		w.WriteHeader(f.TokenStatus)
		fmt.Fprint(w, `{"error":"invalid_client","error_description":"bad client secret"}`)
		return
	}
	fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, AccessToken)
}

func (f *FakeAtlas) serveEntityBulk(w http.ResponseWriter, body []byte) {
	var req struct {
		Entities []struct {
			TypeName string `json:"typeName"`
			GUID     string `json:"guid"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeAtlasError(w, http.StatusBadRequest)
		return
	}
	assignments := make(map[string]string)
	var created []map[string]string
	for i, e := range req.Entities {
		guid := fmt.Sprintf("guid-%03d", i+1)
		assignments[e.GUID] = guid
		created = append(created, map[string]string{"typeName": e.TypeName, "guid": guid})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"mutatedEntities": map[string]any{"CREATE": created},
		"guidAssignments": assignments,
	})
}

func writeAtlasError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"errorCode":"ATLAS-%d-00-001","errorMessage":%q}`, status, http.StatusText(status))
}
