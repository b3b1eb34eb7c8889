package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"flowcheck/infra/seed"
)

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		url     string
		bucket  string
		key     string
		wantErr bool
	}{
		{url: "s3://artifacts/reports/abc.xml", bucket: "artifacts", key: "reports/abc.xml"},
		{url: "s3://artifacts/deep/nested/key", bucket: "artifacts", key: "deep/nested/key"},
		{url: "https://example.com/x", wantErr: true},
		{url: "s3://bucket-only", wantErr: true},
		{url: "s3:///missing-bucket", wantErr: true},
		{url: "", wantErr: true},
	}

	for _, tt := range tests {
		bucket, key, err := parseS3URL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseS3URL(%q) succeeded, want error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseS3URL(%q) error: %v", tt.url, err)
		}
		if bucket != tt.bucket || key != tt.key {
			t.Fatalf("parseS3URL(%q) = (%q, %q), want (%q, %q)", tt.url, bucket, key, tt.bucket, tt.key)
		}
	}
}

func TestContractDataRoundTrip(t *testing.T) {
	suite, err := seed.Suite()
	if err != nil {
		t.Fatalf("seed.Suite() error: %v", err)
	}

	data, err := contractData(suite.Contract)
	if err != nil {
		t.Fatalf("contractData() error: %v", err)
	}
	for _, column := range []string{"id", "name", "description"} {
		if _, ok := data[column]; ok {
			t.Fatalf("contract data still carries %q, which has its own column", column)
		}
	}

	model := contractModel{
		ID:          suite.Contract.ID,
		Name:        suite.Name,
		Description: suite.Description,
		Data:        data,
	}
	contract, err := model.toAPI()
	if err != nil {
		t.Fatalf("toAPI() error: %v", err)
	}
	if len(contract.Nodes) != len(suite.Contract.Nodes) {
		t.Fatalf("round trip has %d nodes, want %d", len(contract.Nodes), len(suite.Contract.Nodes))
	}
	if contract.TestWebhookPath != suite.Contract.TestWebhookPath {
		t.Fatalf("round trip test webhook path = %q, want %q", contract.TestWebhookPath, suite.Contract.TestWebhookPath)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "Bearer abc123", want: "abc123"},
		{header: "Bearer   spaced  ", want: "spaced"},
		{header: "Basic abc123", want: ""},
		{header: "", want: ""},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(r); got != tt.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequireAuthDisabledWithoutAdminToken(t *testing.T) {
	a := &API{config: Config{}}

	called := false
	handler := a.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))

	if !called {
		t.Fatal("handler not invoked with auth disabled")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	a := &API{config: Config{AdminToken: "admin-secret"}}

	handler := a.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler invoked without credentials")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthAcceptsAdminToken(t *testing.T) {
	a := &API{config: Config{AdminToken: "admin-secret"}}

	called := false
	handler := a.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodPost, "/v1/runs", nil)
	r.Header.Set("Authorization", "Bearer admin-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if !called {
		t.Fatal("handler not invoked with admin token")
	}
}

func TestIssueTokenDisabledWithoutAdminToken(t *testing.T) {
	a := &API{config: Config{}}

	rec := httptest.NewRecorder()
	a.handleIssueToken(rec, httptest.NewRequest(http.MethodPost, "/v1/tokens", nil))

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
}

func TestIssueTokenRequiresAdmin(t *testing.T) {
	a := &API{config: Config{AdminToken: "admin-secret"}}

	r := httptest.NewRequest(http.MethodPost, "/v1/tokens", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	a.handleIssueToken(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
