package suites

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

const sampleSuite = `
name: uppercase-echo
description: On POST {msg}, reply with uppercase msg
contract:
  name: Uppercase Echo
  description: On POST {msg}, reply with uppercase msg
  nodes:
    - id: webhook
      type: Webhook
      name: Incoming Webhook
    - id: function
      type: Function
      name: Uppercase Function
      config:
        transform: uppercase
    - id: respond
      type: Respond
      name: HTTP Response
  edges:
    - source: webhook
      target: function
    - source: function
      target: respond
  test_webhook_path: /mock/test/uppercase
  prod_webhook_path: /mock/prod/uppercase
fixtures:
  - method: POST
    path: /mock/test/uppercase
    body:
      msg: hello
assertions:
  - operator: pathTaken
    args:
      nodes: [Webhook, Function, Respond]
    description: Workflow path includes Webhook, Function, Respond
  - id: 8b1ee976-07a3-4b48-9112-66b78ddb1518
    operator: eq
    args:
      jsonpath: $.response.body.upper
      value: HELLO
`

func TestParse(t *testing.T) {
	suite, err := Parse([]byte(sampleSuite))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if suite.Name != "uppercase-echo" {
		t.Fatalf("name = %q, want uppercase-echo", suite.Name)
	}
	if suite.Contract.ID == uuid.Nil {
		t.Fatalf("contract id not defaulted")
	}
	if len(suite.Contract.Nodes) != 3 || len(suite.Contract.Edges) != 2 {
		t.Fatalf("contract shape = %d nodes %d edges, want 3/2", len(suite.Contract.Nodes), len(suite.Contract.Edges))
	}
	if got := suite.Contract.Nodes[1].Config["transform"]; got != "uppercase" {
		t.Fatalf("function config transform = %v, want uppercase", got)
	}
	if len(suite.Fixtures) != 1 || suite.Fixtures[0].Body["msg"] != "hello" {
		t.Fatalf("fixtures = %+v, want one POST {msg: hello}", suite.Fixtures)
	}

	if len(suite.Assertions) != 2 {
		t.Fatalf("assertions = %d, want 2", len(suite.Assertions))
	}
	if suite.Assertions[0].ID == uuid.Nil {
		t.Fatalf("assertion id not defaulted")
	}
	if want := uuid.MustParse("8b1ee976-07a3-4b48-9112-66b78ddb1518"); suite.Assertions[1].ID != want {
		t.Fatalf("explicit assertion id = %s, want %s", suite.Assertions[1].ID, want)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	doc := strings.Replace(sampleSuite, "description: On POST", "descriptoin: On POST", 1)
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("Parse() accepted a misspelled field")
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "missing suite name",
			mutate:  func(s string) string { return strings.Replace(s, "name: uppercase-echo", `name: ""`, 1) },
			wantErr: "suite name is required",
		},
		{
			name: "no fixtures",
			mutate: func(s string) string {
				return strings.Replace(s, "fixtures:\n  - method: POST\n    path: /mock/test/uppercase\n    body:\n      msg: hello\n", "fixtures: []\n", 1)
			},
			wantErr: "at least one fixture",
		},
		{
			name:    "edge references unknown node",
			mutate:  func(s string) string { return strings.Replace(s, "target: function", "target: missing", 1) },
			wantErr: "unknown target node",
		},
		{
			name:    "assertion missing operator",
			mutate:  func(s string) string { return strings.Replace(s, "operator: pathTaken", `operator: ""`, 1) },
			wantErr: "operator is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(sampleSuite)))
			if err == nil {
				t.Fatalf("Parse() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDoesNotRejectUnknownOperators(t *testing.T) {
	doc := strings.Replace(sampleSuite, "operator: pathTaken", "operator: sometimesMaybe", 1)
	suite, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v, want unknown operator accepted", err)
	}
	if suite.Assertions[0].Operator != "sometimesMaybe" {
		t.Fatalf("operator = %q, want sometimesMaybe", suite.Assertions[0].Operator)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	second := strings.Replace(sampleSuite, "name: uppercase-echo", "name: second-suite", 1)
	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(second), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.yml"), []byte(sampleSuite), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	suites, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(suites) != 2 {
		t.Fatalf("LoadDir() = %d suites, want 2", len(suites))
	}
	if suites[0].Name != "uppercase-echo" || suites[1].Name != "second-suite" {
		t.Fatalf("LoadDir() order = %q, %q, want filename order", suites[0].Name, suites[1].Name)
	}
}

func TestLoadDirEmpty(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatalf("LoadDir() on empty dir = nil error")
	}
}
