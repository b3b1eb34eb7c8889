// Package trace models the observable outcome of one workflow execution:
// the nodes visited in order, the outgoing HTTP calls attempted, and the
// final response. A Trace is built once by an executor and never mutated
// afterwards.
package trace

// Node records one workflow node visit in execution order.
type Node struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// OutgoingCall records one HTTP call the workflow attempted. Meta carries
// executor-specific extras (headers, payload summaries) without a fixed
// schema.
type OutgoingCall struct {
	Method string         `json:"method"`
	URL    string         `json:"url"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Response is the final answer the workflow produced for the fixture
// request.
type Response struct {
	Status int `json:"status"`
	Body   any `json:"body"`
}

// Trace is one execution's recorded outcome.
type Trace struct {
	Nodes        []Node         `json:"nodes"`
	HTTPOutgoing []OutgoingCall `json:"httpOutgoing"`
	Response     Response       `json:"response"`
}

// Document renders the trace in the fixed nested map form that path
// queries resolve against: nodes, httpOutgoing, response. The returned
// maps share leaf values with the trace; callers must treat the result as
// read-only.
func (t *Trace) Document() map[string]any {
	nodes := make([]any, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		nodes = append(nodes, map[string]any{
			"id":     n.ID,
			"type":   n.Type,
			"status": n.Status,
		})
	}

	outgoing := make([]any, 0, len(t.HTTPOutgoing))
	for _, call := range t.HTTPOutgoing {
		entry := map[string]any{
			"method": call.Method,
			"url":    call.URL,
		}
		for k, v := range call.Meta {
			if _, taken := entry[k]; !taken {
				entry[k] = v
			}
		}
		outgoing = append(outgoing, entry)
	}

	return map[string]any{
		"nodes":        nodes,
		"httpOutgoing": outgoing,
		"response": map[string]any{
			"status": t.Response.Status,
			"body":   t.Response.Body,
		},
	}
}
