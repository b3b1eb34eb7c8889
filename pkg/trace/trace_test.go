package trace

import (
	"testing"

	"flowcheck/pkg/jsonpath"
)

func TestDocumentShape(t *testing.T) {
	tr := &Trace{
		Nodes: []Node{
			{ID: "webhook", Type: "Webhook", Status: "completed"},
			{ID: "respond", Type: "Respond", Status: "completed"},
		},
		HTTPOutgoing: []OutgoingCall{
			{Method: "POST", URL: "https://api.example.com/v1/send", Meta: map[string]any{"attempt": 1}},
		},
		Response: Response{Status: 200, Body: map[string]any{"upper": "HELLO"}},
	}

	doc := tr.Document()

	tests := []struct {
		query string
		want  any
	}{
		{"$.nodes[0].type", "Webhook"},
		{"$.nodes[1].id", "respond"},
		{"$.httpOutgoing[0].method", "POST"},
		{"$.httpOutgoing[0].url", "https://api.example.com/v1/send"},
		{"$.httpOutgoing[0].attempt", 1},
		{"$.response.status", 200},
		{"$.response.body.upper", "HELLO"},
	}

	for _, tt := range tests {
		got, ok := jsonpath.Extract(doc, tt.query)
		if !ok {
			t.Fatalf("Extract(%q) reported absent", tt.query)
		}
		if got != tt.want {
			t.Fatalf("Extract(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestDocumentMetaDoesNotShadowCallFields(t *testing.T) {
	tr := &Trace{
		HTTPOutgoing: []OutgoingCall{
			{Method: "GET", URL: "https://example.com", Meta: map[string]any{"url": "bogus"}},
		},
		Response: Response{Status: 204},
	}

	got, ok := jsonpath.Extract(tr.Document(), "$.httpOutgoing[0].url")
	if !ok || got != "https://example.com" {
		t.Fatalf("url = %v, %v; want https://example.com, true", got, ok)
	}
}

func TestDocumentEmptyTrace(t *testing.T) {
	tr := &Trace{}
	doc := tr.Document()

	nodes, ok := doc["nodes"].([]any)
	if !ok || len(nodes) != 0 {
		t.Fatalf("nodes = %v, want empty sequence", doc["nodes"])
	}
	outgoing, ok := doc["httpOutgoing"].([]any)
	if !ok || len(outgoing) != 0 {
		t.Fatalf("httpOutgoing = %v, want empty sequence", doc["httpOutgoing"])
	}
	if _, ok := doc["response"].(map[string]any); !ok {
		t.Fatalf("response = %v, want mapping", doc["response"])
	}
}
