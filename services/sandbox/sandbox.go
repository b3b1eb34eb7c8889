// Package sandbox is the in-process Executor: it interprets a contract's
// node list against one fixture and records the resulting trace without
// touching the network.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"flowcheck/pkg/trace"
	"flowcheck/services/runner"
	"flowcheck/services/suites"
)

const (
	nodeStatusCompleted = "completed"
	nodeStatusSkipped   = "skipped"
)

// Sandbox provisions in-memory execution instances. Each instance is
// owned by the single run that provisioned it and released exactly once.
type Sandbox struct {
	mu        sync.Mutex
	instances map[uuid.UUID]*Instance

	provisionErr error
	executeErr   error
}

// Option adjusts sandbox behaviour, mainly failure injection for tests
// and for exercising the FAIL branches end to end.
type Option func(*Sandbox)

// WithProvisionFailure makes every Provision call fail with err.
func WithProvisionFailure(err error) Option {
	return func(s *Sandbox) { s.provisionErr = err }
}

// WithExecuteFailure makes every Execute call fail with err.
func WithExecuteFailure(err error) Option {
	return func(s *Sandbox) { s.executeErr = err }
}

// New builds a Sandbox.
func New(opts ...Option) *Sandbox {
	s := &Sandbox{instances: make(map[uuid.UUID]*Instance)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Instance is one provisioned execution target.
type Instance struct {
	ID       uuid.UUID
	contract suites.Contract
	sandbox  *Sandbox

	mu       sync.Mutex
	released bool
}

// Release frees the instance. Releasing twice is an error so tests can
// assert the lifecycle's exactly-once obligation.
func (i *Instance) Release(ctx context.Context) error {
	if i == nil {
		return errors.New("nil instance")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.released {
		return fmt.Errorf("instance %s already released", i.ID)
	}
	i.released = true

	i.sandbox.mu.Lock()
	delete(i.sandbox.instances, i.ID)
	i.sandbox.mu.Unlock()
	return nil
}

// Provision allocates an instance for the contract.
func (s *Sandbox) Provision(ctx context.Context, contract suites.Contract) (runner.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.provisionErr != nil {
		return nil, s.provisionErr
	}

	inst := &Instance{ID: uuid.New(), contract: contract, sandbox: s}
	s.mu.Lock()
	s.instances[inst.ID] = inst
	s.mu.Unlock()
	return inst, nil
}

// Execute interprets the contract's nodes in declared order against the
// fixture and returns the recorded trace.
func (s *Sandbox) Execute(ctx context.Context, target runner.Target, fixture suites.Fixture) (*trace.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.executeErr != nil {
		return nil, s.executeErr
	}

	inst, ok := target.(*Instance)
	if !ok || inst == nil {
		return nil, errors.New("target was not provisioned by this sandbox")
	}
	s.mu.Lock()
	_, live := s.instances[inst.ID]
	s.mu.Unlock()
	if !live {
		return nil, fmt.Errorf("instance %s is not provisioned", inst.ID)
	}

	input := fixture.Body
	if input == nil {
		input = map[string]any{}
	}
	output := map[string]any{}

	tr := &trace.Trace{
		Nodes:        make([]trace.Node, 0, len(inst.contract.Nodes)),
		HTTPOutgoing: []trace.OutgoingCall{},
	}

	responded := false
	for _, node := range inst.contract.Nodes {
		status := nodeStatusCompleted
		switch node.Type {
		case "Webhook":
			// Admits the fixture request; nothing to compute.
		case "Function":
			if !applyTransform(node, input, output) {
				status = nodeStatusSkipped
			}
		case "HTTP":
			tr.HTTPOutgoing = append(tr.HTTPOutgoing, outgoingCall(node))
		case "Respond":
			responseStatus := 200
			if v, ok := node.Config["status"]; ok {
				if parsed, err := cast.ToIntE(v); err == nil {
					responseStatus = parsed
				}
			}
			tr.Response = trace.Response{Status: responseStatus, Body: output}
			responded = true
		default:
			status = nodeStatusSkipped
		}
		tr.Nodes = append(tr.Nodes, trace.Node{ID: node.ID, Type: node.Type, Status: status})
	}

	if !responded {
		tr.Response = trace.Response{Status: 200, Body: output}
	}
	return tr, nil
}

// Active reports how many instances are currently provisioned.
func (s *Sandbox) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

// applyTransform runs a Function node's configured transform over the
// fixture body, accumulating derived fields into the response body. An
// unknown transform marks the node skipped rather than erroring.
func applyTransform(node suites.Node, input, output map[string]any) bool {
	name := "uppercase"
	if v, ok := node.Config["transform"]; ok {
		name = cast.ToString(v)
	}

	switch name {
	case "uppercase":
		output["upper"] = strings.ToUpper(cast.ToString(input["msg"]))
	case "lowercase":
		output["lower"] = strings.ToLower(cast.ToString(input["msg"]))
	case "echo":
		for k, v := range input {
			output[k] = v
		}
	default:
		return false
	}
	return true
}

func outgoingCall(node suites.Node) trace.OutgoingCall {
	method := "GET"
	if v, ok := node.Config["method"]; ok {
		if s := strings.ToUpper(cast.ToString(v)); s != "" {
			method = s
		}
	}
	url := cast.ToString(node.Config["url"])
	return trace.OutgoingCall{
		Method: method,
		URL:    url,
		Meta:   map[string]any{"node": node.ID},
	}
}
