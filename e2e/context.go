//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"didlab/internal/credential/handler"
	"didlab/pkg/platform/middleware/apikey"
)

// TestContext holds state between steps of one scenario.
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	IssueAPIKey      string
	ExportAPIKey     string
	LastResponse     *http.Response
	LastResponseBody []byte

	// Subject is random per scenario so runs against a shared server do not
	// collide.
	Subject         string
	LastFingerprint string
}

func NewTestContext() *TestContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &TestContext{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		IssueAPIKey:  os.Getenv("DIDLAB_SECURITY_ISSUE_API_KEY"),
		ExportAPIKey: os.Getenv("DIDLAB_SECURITY_EXPORT_API_KEY"),
		Subject:      randomAddress(),
	}
}

func randomAddress() string {
	buf := make([]byte, 20)
	_, _ = rand.Read(buf) //nolint:errcheck // crypto/rand does not fail
	return "0x" + hex.EncodeToString(buf)
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

func (tc *TestContext) POST(path string, body any, headers map[string]string) error {
	return tc.do(http.MethodPost, path, body, headers)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) issueHeaders() map[string]string {
	if tc.IssueAPIKey == "" {
		return nil
	}
	return map[string]string{apikey.Header: tc.IssueAPIKey}
}

func (tc *TestContext) exportHeaders() map[string]string {
	if tc.ExportAPIKey == "" {
		return nil
	}
	return map[string]string{apikey.Header: tc.ExportAPIKey}
}

func (tc *TestContext) revokeHeaders(caller string) map[string]string {
	return map[string]string{handler.SubjectHeader: caller}
}

// ResponseField returns a top-level field of the last JSON response.
func (tc *TestContext) ResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response: %s", field, tc.LastResponseBody)
	}
	return value, nil
}
