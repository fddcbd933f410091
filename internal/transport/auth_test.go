package transport

import (
	"net/http"
	"net/url"
	"testing"
)

// TestNoAuth tests that NoAuth applies no authentication.
func TestNoAuth(t *testing.T) {
	auth := &NoAuth{}
	req := &http.Request{
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	// Should not have any authentication headers
	if len(req.Header) != 0 {
		t.Errorf("Expected no headers, got %d", len(req.Header))
	}
}

// TestBearerAuth tests Bearer token authentication.
func TestBearerAuth(t *testing.T) {
	auth := &BearerAuth{}
	req := &http.Request{
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	authHeader := req.Header.Get("Authorization")
	expected := "Bearer test-api-key"
	if authHeader != expected {
		t.Errorf("Expected Authorization header '%s', got '%s'", expected, authHeader)
	}
}

// TestHeaderAuth tests custom header authentication.
func TestHeaderAuth(t *testing.T) {
	auth := &HeaderAuth{Header: "x-api-key"}
	req := &http.Request{
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	headerValue := req.Header.Get("x-api-key")
	if headerValue != "test-api-key" {
		t.Errorf("Expected x-api-key header 'test-api-key', got '%s'", headerValue)
	}

	// Should not have Authorization header
	if req.Header.Get("Authorization") != "" {
		t.Error("Should not have Authorization header")
	}
}

// TestQueryAuth tests query parameter authentication.
func TestQueryAuth(t *testing.T) {
	auth := &QueryAuth{Param: "key"}

	// Test with valid URL
	reqURL, _ := url.Parse("https://carrier.example.com/api/orders")
	req := &http.Request{
		URL:    reqURL,
		Header: make(http.Header),
	}

	auth.Apply(req, "test-api-key")

	// Check that the query parameter was added
	if req.URL.Query().Get("key") != "test-api-key" {
		t.Errorf("Expected query param 'key=test-api-key', got '%s'", req.URL.RawQuery)
	}

	// Test with existing query parameters
	reqURL2, _ := url.Parse("https://carrier.example.com/api/orders?status=open")
	req2 := &http.Request{
		URL:    reqURL2,
		Header: make(http.Header),
	}

	auth.Apply(req2, "test-api-key")

	query := req2.URL.Query()
	if query.Get("key") != "test-api-key" {
		t.Errorf("Expected query param 'key=test-api-key', got '%s'", query.Get("key"))
	}
	if query.Get("status") != "open" {
		t.Errorf("Expected status param to be preserved, got '%s'", query.Get("status"))
	}

	// Test with nil URL (should not panic)
	req3 := &http.Request{
		URL:    nil,
		Header: make(http.Header),
	}

	auth.Apply(req3, "test-api-key")
	// Should not panic and should do nothing
}

// TestSchemeAuth tests configurable header and query authentication.
func TestSchemeAuth(t *testing.T) {
	tests := []struct {
		name           string
		auth           *SchemeAuth
		expectedHeader string
		expectedValue  string
		queryParam     string
	}{
		{
			name:           "Bearer Auth",
			auth:           &SchemeAuth{Header: "Authorization", Scheme: SchemeBearer},
			expectedHeader: "Authorization",
			expectedValue:  "Bearer test-api-key",
		},
		{
			name:           "Direct Header Auth",
			auth:           &SchemeAuth{Header: "X-Shopify-Access-Token", Scheme: SchemeDirect},
			expectedHeader: "X-Shopify-Access-Token",
			expectedValue:  "test-api-key",
		},
		{
			name:       "Query Auth",
			auth:       &SchemeAuth{QueryParam: "api_key"},
			queryParam: "api_key",
		},
		{
			name:           "Default Authorization Header",
			auth:           &SchemeAuth{Scheme: SchemeToken},
			expectedHeader: "Authorization",
			expectedValue:  "Token test-api-key",
		},
		{
			name:           "Basic Auth Scheme",
			auth:           &SchemeAuth{Scheme: SchemeBasic},
			expectedHeader: "Authorization",
			expectedValue:  "Basic test-api-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqURL, _ := url.Parse("https://carrier.example.com/api/orders")
			req := &http.Request{
				URL:    reqURL,
				Header: make(http.Header),
			}

			tt.auth.Apply(req, "test-api-key")

			if tt.queryParam != "" {
				queryValue := req.URL.Query().Get(tt.queryParam)
				if queryValue != "test-api-key" {
					t.Errorf("Expected query param '%s=test-api-key', got '%s'", tt.queryParam, queryValue)
				}
				if len(req.Header) != 0 {
					t.Errorf("Expected no headers when using query param, got %v", req.Header)
				}
			} else {
				headerValue := req.Header.Get(tt.expectedHeader)
				if headerValue != tt.expectedValue {
					t.Errorf("Expected header '%s: %s', got '%s'", tt.expectedHeader, tt.expectedValue, headerValue)
				}
			}
		})
	}
}

// TestParseScheme tests scheme names from configuration.
func TestParseScheme(t *testing.T) {
	tests := map[string]Scheme{
		"bearer":  SchemeBearer,
		" Basic ": SchemeBasic,
		"TOKEN":   SchemeToken,
		"":        SchemeDirect,
		"unknown": SchemeDirect,
	}
	for in, want := range tests {
		if got := ParseScheme(in); got != want {
			t.Errorf("ParseScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
