// Package e2e drives a running klok server through its HTTP API with godog
// scenarios. Set KLOK_E2E_BASE_URL to enable it; tokens come from klokctl.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestContext is the per-scenario state shared by every step package.
type TestContext struct {
	baseURL     string
	accessToken string
	adminToken  string
	useAuth     bool
	client      *http.Client

	lastStatus int
	lastBody   []byte
	saved      map[string]string
}

// NewTestContext reads the target and credentials from the environment:
// KLOK_E2E_BASE_URL, KLOK_E2E_TOKEN (klokctl token) and KLOK_E2E_ADMIN_TOKEN.
func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:     strings.TrimRight(os.Getenv("KLOK_E2E_BASE_URL"), "/"),
		accessToken: os.Getenv("KLOK_E2E_TOKEN"),
		adminToken:  os.Getenv("KLOK_E2E_ADMIN_TOKEN"),
		client:      &http.Client{Timeout: 30 * time.Second},
		saved:       map[string]string{},
	}
}

// Reset clears scenario state; credentials survive.
func (tc *TestContext) Reset() {
	tc.useAuth = false
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.saved = map[string]string{}
}

func (tc *TestContext) SetAuthenticated(on bool) { tc.useAuth = on }
func (tc *TestContext) HasAccessToken() bool     { return tc.accessToken != "" }
func (tc *TestContext) HasAdminToken() bool      { return tc.adminToken != "" }

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.do(http.MethodPut, path, body, nil)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, nil)
}

// AdminRequest sends method to path with the operator token instead of the bearer token.
func (tc *TestContext) AdminRequest(method, path string) error {
	return tc.do(method, path, nil, map[string]string{"X-Admin-Token": tc.adminToken})
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, tc.baseURL+tc.expand(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.useAuth && headers == nil {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// expand replaces {name} placeholders with saved values.
func (tc *TestContext) expand(path string) string {
	for k, v := range tc.saved {
		path = strings.ReplaceAll(path, "{"+k+"}", v)
	}
	return path
}

func (tc *TestContext) StatusCode() int { return tc.lastStatus }

func (tc *TestContext) ResponseBody() []byte { return tc.lastBody }

// GetResponseField returns a top-level or dotted field from the last JSON body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		if doc, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return doc, nil
}

func (tc *TestContext) Save(name, value string) { tc.saved[name] = value }
