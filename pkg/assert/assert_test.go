package assert

import (
	"testing"

	"github.com/google/uuid"

	"flowcheck/pkg/trace"
)

func echoTrace() *trace.Trace {
	return &trace.Trace{
		Nodes: []trace.Node{
			{ID: "webhook", Type: "Webhook", Status: "completed"},
			{ID: "function", Type: "Function", Status: "completed"},
			{ID: "respond", Type: "Respond", Status: "completed"},
		},
		HTTPOutgoing: []trace.OutgoingCall{
			{Method: "post", URL: "https://hooks.example.com/notify?token=abc123"},
		},
		Response: trace.Response{
			Status: 200,
			Body: map[string]any{
				"upper": "HELLO",
				"tags":  []any{"alpha", "beta"},
				"count": float64(2),
			},
		},
	}
}

func evalOp(t *testing.T, op string, args map[string]any) Result {
	t.Helper()
	return Evaluate(Assertion{ID: uuid.New(), Operator: op, Args: args}, echoTrace())
}

func TestPathTaken(t *testing.T) {
	tests := []struct {
		name       string
		nodes      any
		wantPassed bool
		wantMsg    string
	}{
		{"exact sequence", []any{"Webhook", "Function", "Respond"}, true, "Path contains expected sequence"},
		{"subsequence with gap", []any{"Webhook", "Respond"}, true, "Path contains expected sequence"},
		{"single node", []any{"Function"}, true, "Path contains expected sequence"},
		{"empty sequence", []any{}, true, "Path contains expected sequence"},
		{"missing nodes argument", nil, true, "Path contains expected sequence"},
		{"order violated", []any{"Respond", "Webhook"}, false, "Missing node in path: Webhook"},
		{"unknown node", []any{"Webhook", "Database"}, false, "Missing node in path: Database"},
		{"repeat beyond occurrences", []any{"Webhook", "Webhook"}, false, "Missing node in path: Webhook"},
		{"non-string entry", []any{"Webhook", 7}, false, "Missing node in path: 7"},
		{"string slice form", []string{"Webhook", "Respond"}, true, "Path contains expected sequence"},
		{"scalar nodes argument", "Webhook", false, "pathTaken nodes argument must be a sequence, got Webhook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{}
			if tt.nodes != nil {
				args["nodes"] = tt.nodes
			}
			res := evalOp(t, OpPathTaken, args)
			if res.Passed != tt.wantPassed {
				t.Fatalf("passed = %v, want %v (message %q)", res.Passed, tt.wantPassed, res.Message)
			}
			if res.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", res.Message, tt.wantMsg)
			}
		})
	}
}

func TestHTTPOutgoing(t *testing.T) {
	tests := []struct {
		name       string
		args       map[string]any
		wantPassed bool
		wantMsg    string
	}{
		{"method match is case-insensitive", map[string]any{"method": "POST"}, true, "Found matching outgoing call"},
		{"url substring match", map[string]any{"urlContains": "hooks.example.com"}, true, "Found matching outgoing call"},
		{"method and url must both match", map[string]any{"method": "POST", "urlContains": "/notify"}, true, "Found matching outgoing call"},
		{"no filters matches any call", map[string]any{}, true, "Found matching outgoing call"},
		{"method mismatch", map[string]any{"method": "GET"}, false, "No matching outgoing call"},
		{"url mismatch", map[string]any{"urlContains": "other.example.com"}, false, "No matching outgoing call"},
		{"exists false passes on no match", map[string]any{"method": "DELETE", "exists": false}, true, "No outgoing call as expected"},
		{"exists false fails on match", map[string]any{"urlContains": "notify", "exists": false}, false, "Unexpected outgoing call found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evalOp(t, OpHTTPOutgoing, tt.args)
			if res.Passed != tt.wantPassed {
				t.Fatalf("passed = %v, want %v (message %q)", res.Passed, tt.wantPassed, res.Message)
			}
			if res.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", res.Message, tt.wantMsg)
			}
		})
	}
}

func TestHTTPOutgoingEmptyTrace(t *testing.T) {
	tr := &trace.Trace{Response: trace.Response{Status: 200}}
	res := Evaluate(Assertion{Operator: OpHTTPOutgoing, Args: map[string]any{}}, tr)
	if res.Passed {
		t.Fatalf("passed = true on empty outgoing calls, message %q", res.Message)
	}

	res = Evaluate(Assertion{Operator: OpHTTPOutgoing, Args: map[string]any{"exists": false}}, tr)
	if !res.Passed || res.Message != "No outgoing call as expected" {
		t.Fatalf("exists=false on empty trace: passed = %v, message %q", res.Passed, res.Message)
	}
}

func TestEqNeq(t *testing.T) {
	tests := []struct {
		name       string
		op         string
		args       map[string]any
		wantPassed bool
		wantMsg    string
	}{
		{"string equal", OpEq, map[string]any{"jsonpath": "$.response.body.upper", "value": "HELLO"}, true, "HELLO == HELLO"},
		{"string not equal", OpEq, map[string]any{"jsonpath": "$.response.body.upper", "value": "WORLD"}, false, "HELLO != WORLD"},
		{"neq inverse of eq", OpNeq, map[string]any{"jsonpath": "$.response.body.upper", "value": "WORLD"}, true, "HELLO != WORLD"},
		{"neq fails on equal", OpNeq, map[string]any{"jsonpath": "$.response.body.upper", "value": "HELLO"}, false, "HELLO == HELLO"},
		{"numeric cross-kind", OpEq, map[string]any{"jsonpath": "$.response.status", "value": float64(200)}, true, "200 == 200"},
		{"numeric int argument", OpEq, map[string]any{"jsonpath": "$.response.body.count", "value": 2}, true, "2 == 2"},
		{"absent equals null", OpEq, map[string]any{"jsonpath": "$.response.body.missing", "value": nil}, true, "<absent> == <nil>"},
		{"absent never equals value", OpEq, map[string]any{"jsonpath": "$.response.body.missing", "value": "HELLO"}, false, "<absent> != HELLO"},
		{"neq passes on absent vs value", OpNeq, map[string]any{"jsonpath": "$.response.body.missing", "value": "HELLO"}, true, "<absent> != HELLO"},
		{"sequence structural equality", OpEq, map[string]any{"jsonpath": "$.response.body.tags", "value": []any{"alpha", "beta"}}, true, `["alpha","beta"] == ["alpha","beta"]`},
		{"number never equals string", OpEq, map[string]any{"jsonpath": "$.response.status", "value": "200"}, false, "200 != 200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evalOp(t, tt.op, tt.args)
			if res.Passed != tt.wantPassed {
				t.Fatalf("passed = %v, want %v (message %q)", res.Passed, tt.wantPassed, res.Message)
			}
			if res.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", res.Message, tt.wantMsg)
			}
		})
	}
}

func TestEqNeqAreExactInverses(t *testing.T) {
	argSets := []map[string]any{
		{"jsonpath": "$.response.body.upper", "value": "HELLO"},
		{"jsonpath": "$.response.body.upper", "value": "WORLD"},
		{"jsonpath": "$.response.status", "value": 200},
		{"jsonpath": "$.response.body.missing", "value": nil},
		{"jsonpath": "$.response.body.tags", "value": []any{"alpha", "beta"}},
	}

	for _, args := range argSets {
		eq := evalOp(t, OpEq, args)
		neq := evalOp(t, OpNeq, args)
		if eq.Passed == neq.Passed {
			t.Fatalf("eq and neq agree for %v: eq=%v neq=%v", args, eq.Passed, neq.Passed)
		}
	}
}

func TestGtLt(t *testing.T) {
	tests := []struct {
		name       string
		op         string
		args       map[string]any
		wantPassed bool
		wantMsg    string
	}{
		{"gt passes", OpGt, map[string]any{"jsonpath": "$.response.status", "value": 100}, true, "200 > 100"},
		{"gt fails", OpGt, map[string]any{"jsonpath": "$.response.status", "value": 500}, false, "200 !> 500"},
		{"lt passes", OpLt, map[string]any{"jsonpath": "$.response.body.count", "value": 10}, true, "2 < 10"},
		{"lt fails on equal", OpLt, map[string]any{"jsonpath": "$.response.body.count", "value": 2}, false, "2 !< 2"},
		{"numeric string coerces", OpGt, map[string]any{"jsonpath": "$.response.status", "value": "199.5"}, true, "200 > 199.5"},
		{"non-numeric actual fails not errors", OpGt, map[string]any{"jsonpath": "$.response.body.upper", "value": "1"}, false, "Non-numeric compare: HELLO, 1"},
		{"non-numeric value fails not errors", OpLt, map[string]any{"jsonpath": "$.response.status", "value": "abc"}, false, "Non-numeric compare: 200, abc"},
		{"absent fails not errors", OpGt, map[string]any{"jsonpath": "$.response.body.missing", "value": 1}, false, "Non-numeric compare: <absent>, 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evalOp(t, tt.op, tt.args)
			if res.Passed != tt.wantPassed {
				t.Fatalf("passed = %v, want %v (message %q)", res.Passed, tt.wantPassed, res.Message)
			}
			if res.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", res.Message, tt.wantMsg)
			}
		})
	}
}

func TestContainsNotContains(t *testing.T) {
	tests := []struct {
		name       string
		op         string
		args       map[string]any
		wantPassed bool
		wantMsg    string
	}{
		{"element in sequence", OpContains, map[string]any{"jsonpath": "$.response.body.tags", "value": "beta"}, true, "contains ok"},
		{"element missing from sequence", OpContains, map[string]any{"jsonpath": "$.response.body.tags", "value": "gamma"}, false, `Expected gamma in ["alpha","beta"]`},
		{"substring in text", OpContains, map[string]any{"jsonpath": "$.response.body.upper", "value": "ELL"}, true, "contains ok"},
		{"substring missing from text", OpContains, map[string]any{"jsonpath": "$.response.body.upper", "value": "xyz"}, false, "Expected xyz in HELLO"},
		{"notContains passes when missing", OpNotContains, map[string]any{"jsonpath": "$.response.body.tags", "value": "gamma"}, true, "notContains ok"},
		{"notContains fails when present", OpNotContains, map[string]any{"jsonpath": "$.response.body.upper", "value": "HEL"}, false, "Did not expect HEL in HELLO"},
		{"scalar extracted value fails", OpContains, map[string]any{"jsonpath": "$.response.status", "value": 2}, false, "Actual not list/str: 200"},
		{"mapping extracted value fails", OpContains, map[string]any{"jsonpath": "$.response.body", "value": "upper"}, false, `Actual not list/str: {"count":2,"tags":["alpha","beta"],"upper":"HELLO"}`},
		{"absent fails", OpContains, map[string]any{"jsonpath": "$.response.body.missing", "value": "x"}, false, "Actual not list/str: <absent>"},
		{"non-string needle on text fails", OpContains, map[string]any{"jsonpath": "$.response.body.upper", "value": 5}, false, "Cannot test membership of 5 in text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evalOp(t, tt.op, tt.args)
			if res.Passed != tt.wantPassed {
				t.Fatalf("passed = %v, want %v (message %q)", res.Passed, tt.wantPassed, res.Message)
			}
			if res.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", res.Message, tt.wantMsg)
			}
		})
	}
}

func TestContainsNumericElementCrossKind(t *testing.T) {
	tr := &trace.Trace{Response: trace.Response{Status: 200, Body: map[string]any{"ids": []any{float64(1), float64(2)}}}}
	res := Evaluate(Assertion{Operator: OpContains, Args: map[string]any{"jsonpath": "$.response.body.ids", "value": 2}}, tr)
	if !res.Passed {
		t.Fatalf("passed = false, message %q", res.Message)
	}
}

func TestBodyContains(t *testing.T) {
	tests := []struct {
		name       string
		args       map[string]any
		wantPassed bool
		wantMsg    string
	}{
		{"substring present", map[string]any{"jsonpath": "$.response.body.upper", "contains": "HEL"}, true, "'HEL' in 'HELLO'"},
		{"substring missing", map[string]any{"jsonpath": "$.response.body.upper", "contains": "WOR"}, false, "Expected 'WOR' in 'HELLO'"},
		{"absent stringifies empty", map[string]any{"jsonpath": "$.response.body.missing", "contains": "HEL"}, false, "Expected 'HEL' in ''"},
		{"number stringified", map[string]any{"jsonpath": "$.response.status", "contains": "20"}, true, "'20' in '200'"},
		{"numeric needle stringified", map[string]any{"jsonpath": "$.response.body.count", "contains": 2}, true, "'2' in '2'"},
		{"composite stringified as json", map[string]any{"jsonpath": "$.response.body.tags", "contains": "beta"}, true, `'beta' in '["alpha","beta"]'`},
		{"missing contains argument", map[string]any{"jsonpath": "$.response.body.upper"}, false, "bodyContains requires a contains argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evalOp(t, OpBodyContains, tt.args)
			if res.Passed != tt.wantPassed {
				t.Fatalf("passed = %v, want %v (message %q)", res.Passed, tt.wantPassed, res.Message)
			}
			if res.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", res.Message, tt.wantMsg)
			}
		})
	}
}

func TestUnknownOperator(t *testing.T) {
	res := evalOp(t, "matches", map[string]any{"jsonpath": "$.response.body.upper"})
	if res.Passed {
		t.Fatal("unknown operator passed")
	}
	if res.Message != "Unknown operator: matches" {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestEvaluateNilTrace(t *testing.T) {
	res := Evaluate(Assertion{Operator: OpEq, Args: map[string]any{"jsonpath": "$.a", "value": 1}}, nil)
	if res.Passed {
		t.Fatal("evaluation against nil trace passed")
	}
	if res.Message != "No trace available" {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	assertions := []Assertion{
		{ID: uuid.New(), Operator: OpPathTaken, Args: map[string]any{"nodes": []any{"Webhook", "Respond"}}},
		{ID: uuid.New(), Operator: OpEq, Args: map[string]any{"jsonpath": "$.response.body.upper", "value": "WORLD"}},
		{ID: uuid.New(), Operator: OpGt, Args: map[string]any{"jsonpath": "$.response.body.upper", "value": 1}},
		{ID: uuid.New(), Operator: "bogus", Args: nil},
	}

	tr := echoTrace()
	first := EvaluateAll(assertions, tr)
	second := EvaluateAll(assertions, tr)

	if len(first) != len(assertions) || len(second) != len(assertions) {
		t.Fatalf("result counts = %d, %d; want %d", len(first), len(second), len(assertions))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("result %d differs between evaluations: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEvaluateAllPreservesOrderAndIdentity(t *testing.T) {
	a1 := Assertion{ID: uuid.New(), Operator: OpEq, Args: map[string]any{"jsonpath": "$.response.body.upper", "value": "HELLO"}}
	a2 := Assertion{ID: uuid.New(), Operator: OpBodyContains, Args: map[string]any{"jsonpath": "$.response.body.upper", "contains": "HEL"}}

	results := EvaluateAll([]Assertion{a1, a2}, echoTrace())
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].AssertionID != a1.ID || results[1].AssertionID != a2.ID {
		t.Fatal("results out of input order")
	}
	if results[0].Operator != OpEq || results[1].Operator != OpBodyContains {
		t.Fatalf("operators = %s, %s", results[0].Operator, results[1].Operator)
	}
	if !AllPassed(results) {
		t.Fatalf("expected all passing, got %+v", results)
	}
}

func TestAllPassedEmptySet(t *testing.T) {
	if !AllPassed(nil) {
		t.Fatal("AllPassed(nil) = false, want true")
	}
}

func TestMessagesAreRedacted(t *testing.T) {
	tr := &trace.Trace{Response: trace.Response{Status: 200, Body: map[string]any{"detail": "auth password=hunter2 rejected"}}}
	res := Evaluate(Assertion{Operator: OpEq, Args: map[string]any{"jsonpath": "$.response.body.detail", "value": "nope"}}, tr)
	if res.Passed {
		t.Fatal("unexpected pass")
	}
	want := "auth password=*** rejected != nope"
	if res.Message != want {
		t.Fatalf("message = %q, want %q", res.Message, want)
	}
}
