package assert

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"flowcheck/pkg/jsonpath"
	"flowcheck/pkg/trace"
)

func evaluate(op string, args map[string]any, tr *trace.Trace) (bool, string) {
	switch op {
	case OpPathTaken:
		return evalPathTaken(args, tr)
	case OpHTTPOutgoing:
		return evalHTTPOutgoing(args, tr)
	case OpEq, OpNeq:
		return evalEquality(op, args, tr)
	case OpGt, OpLt:
		return evalOrdering(op, args, tr)
	case OpContains, OpNotContains:
		return evalMembership(op, args, tr)
	case OpBodyContains:
		return evalBodyContains(args, tr)
	default:
		return false, fmt.Sprintf("Unknown operator: %s", op)
	}
}

// evalPathTaken checks that the expected node type names appear in the
// trace as an ordered subsequence, matched greedily left to right.
func evalPathTaken(args map[string]any, tr *trace.Trace) (bool, string) {
	expected, ok := sequenceArg(args["nodes"])
	if !ok {
		return false, fmt.Sprintf("pathTaken nodes argument must be a sequence, got %s", formatValue(args["nodes"]))
	}

	next := 0
	for _, want := range expected {
		name, isString := want.(string)
		found := -1
		if isString {
			for i := next; i < len(tr.Nodes); i++ {
				if tr.Nodes[i].Type == name {
					found = i
					break
				}
			}
		}
		if found < 0 {
			return false, fmt.Sprintf("Missing node in path: %s", formatValue(want))
		}
		next = found + 1
	}
	return true, "Path contains expected sequence"
}

// evalHTTPOutgoing scans outgoing calls for the first entry matching the
// optional method and URL-substring filters.
func evalHTTPOutgoing(args map[string]any, tr *trace.Trace) (bool, string) {
	method := strings.ToUpper(cast.ToString(args["method"]))
	urlContains := cast.ToString(args["urlContains"])

	found := false
	for _, call := range tr.HTTPOutgoing {
		if method != "" && method != strings.ToUpper(call.Method) {
			continue
		}
		if urlContains != "" && !strings.Contains(call.URL, urlContains) {
			continue
		}
		found = true
		break
	}

	exists := true
	if v, ok := args["exists"]; ok {
		if parsed, err := cast.ToBoolE(v); err == nil {
			exists = parsed
		}
	}

	if exists {
		if found {
			return true, "Found matching outgoing call"
		}
		return false, "No matching outgoing call"
	}
	if !found {
		return true, "No outgoing call as expected"
	}
	return false, "Unexpected outgoing call found"
}

func evalEquality(op string, args map[string]any, tr *trace.Trace) (bool, string) {
	actual, present := extractArg(args, tr)
	expected := args["value"]

	equal := looseEqual(actual, present, expected)

	fa := formatExtracted(actual, present)
	fe := formatValue(expected)
	relation := fmt.Sprintf("%s != %s", fa, fe)
	if equal {
		relation = fmt.Sprintf("%s == %s", fa, fe)
	}

	return equal == (op == OpEq), relation
}

func evalOrdering(op string, args map[string]any, tr *trace.Trace) (bool, string) {
	actual, present := extractArg(args, tr)
	expected := args["value"]

	a, okA := coerceFloat(actual, present)
	b, okB := coerceFloat(expected, true)
	if !okA || !okB {
		return false, fmt.Sprintf("Non-numeric compare: %s, %s",
			formatExtracted(actual, present), formatValue(expected))
	}

	if op == OpGt {
		if a > b {
			return true, fmt.Sprintf("%v > %v", a, b)
		}
		return false, fmt.Sprintf("%v !> %v", a, b)
	}
	if a < b {
		return true, fmt.Sprintf("%v < %v", a, b)
	}
	return false, fmt.Sprintf("%v !< %v", a, b)
}

// evalMembership tests needle membership in a sequence (element equality)
// or text (substring). Any other extracted shape is a failing result, not
// an error.
func evalMembership(op string, args map[string]any, tr *trace.Trace) (bool, string) {
	actual, present := extractArg(args, tr)
	needle := args["value"]

	if !present {
		return false, "Actual not list/str: <absent>"
	}

	var found bool
	switch hay := actual.(type) {
	case []any:
		for _, elem := range hay {
			if looseEqual(elem, true, needle) {
				found = true
				break
			}
		}
	case string:
		s, ok := needle.(string)
		if !ok {
			return false, fmt.Sprintf("Cannot test membership of %s in text", formatValue(needle))
		}
		found = strings.Contains(hay, s)
	default:
		return false, fmt.Sprintf("Actual not list/str: %s", formatValue(actual))
	}

	if op == OpContains {
		if found {
			return true, "contains ok"
		}
		return false, fmt.Sprintf("Expected %s in %s", formatValue(needle), formatValue(actual))
	}
	if !found {
		return true, "notContains ok"
	}
	return false, fmt.Sprintf("Did not expect %s in %s", formatValue(needle), formatValue(actual))
}

func evalBodyContains(args map[string]any, tr *trace.Trace) (bool, string) {
	needleArg, ok := args["contains"]
	if !ok || needleArg == nil {
		return false, "bodyContains requires a contains argument"
	}
	needle := stringify(needleArg)

	actual, present := extractArg(args, tr)
	hay := ""
	if present {
		hay = stringify(actual)
	}

	if strings.Contains(hay, needle) {
		return true, fmt.Sprintf("'%s' in '%s'", needle, hay)
	}
	return false, fmt.Sprintf("Expected '%s' in '%s'", needle, hay)
}

// extractArg resolves the assertion's jsonpath argument against the trace
// document. A missing or non-string jsonpath argument reports absent, the
// same as a query that misses.
func extractArg(args map[string]any, tr *trace.Trace) (any, bool) {
	raw, ok := args["jsonpath"].(string)
	if !ok || raw == "" {
		return nil, false
	}
	return jsonpath.Extract(tr.Document(), raw)
}

// sequenceArg accepts the decoded forms a sequence argument arrives in:
// []any from JSON, []string from YAML or Go callers. A missing argument is
// an empty sequence; any other shape reports not-ok.
func sequenceArg(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case []any:
		return s, true
	case []string:
		out := make([]any, 0, len(s))
		for _, e := range s {
			out = append(out, e)
		}
		return out, true
	default:
		return nil, false
	}
}
