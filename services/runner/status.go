package runner

// Status is a run's position in the lifecycle state machine.
type Status string

const (
	StatusQueued       Status = "QUEUED"
	StatusProvisioning Status = "PROVISIONING"
	StatusExecuting    Status = "EXECUTING"
	StatusAsserting    Status = "ASSERTING"
	StatusPass         Status = "PASS"
	StatusFail         Status = "FAIL"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusPass || s == StatusFail
}

// transitions holds the forward-only edges of the lifecycle. FAIL is
// reachable from every non-queued phase so provisioning and execution
// failures can short-circuit past assertion; PASS only from ASSERTING.
var transitions = map[Status][]Status{
	StatusQueued:       {StatusProvisioning},
	StatusProvisioning: {StatusExecuting, StatusFail},
	StatusExecuting:    {StatusAsserting, StatusFail},
	StatusAsserting:    {StatusPass, StatusFail},
}

// CanTransition reports whether moving from one status to another is
// legal. Terminal states admit nothing.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
