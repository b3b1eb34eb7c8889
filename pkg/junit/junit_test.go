package junit

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/google/uuid"

	"flowcheck/pkg/assert"
)

func TestBuild(t *testing.T) {
	passID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	failID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	results := []assert.Result{
		{AssertionID: passID, Operator: "pathTaken", Passed: true, Message: "Path contains expected sequence"},
		{AssertionID: failID, Operator: "eq", Passed: false, Message: "HELLO != WORLD"},
	}

	suite := Build(results)

	if suite.Name != SuiteName {
		t.Fatalf("suite name = %q, want %q", suite.Name, SuiteName)
	}
	if suite.Tests != 2 {
		t.Fatalf("tests = %d, want 2", suite.Tests)
	}
	if suite.Failures != 1 {
		t.Fatalf("failures = %d, want 1", suite.Failures)
	}

	if got, want := suite.Cases[0].Name, "pathTaken:"+passID.String(); got != want {
		t.Fatalf("case[0] name = %q, want %q", got, want)
	}
	if suite.Cases[0].Failure != nil {
		t.Fatalf("passing case carries a failure element")
	}

	fail := suite.Cases[1].Failure
	if fail == nil {
		t.Fatalf("failing case missing failure element")
	}
	if fail.Message != "HELLO != WORLD" || fail.Data != "HELLO != WORLD" {
		t.Fatalf("failure message/data = %q/%q, want both HELLO != WORLD", fail.Message, fail.Data)
	}
}

func TestBuildEmpty(t *testing.T) {
	suite := Build(nil)
	if suite.Tests != 0 || suite.Failures != 0 || len(suite.Cases) != 0 {
		t.Fatalf("empty build = tests %d failures %d cases %d, want all zero", suite.Tests, suite.Failures, len(suite.Cases))
	}

	data, err := suite.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !strings.Contains(string(data), `tests="0"`) {
		t.Fatalf("serialized empty suite missing tests=\"0\": %s", data)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	results := []assert.Result{
		{AssertionID: uuid.New(), Operator: "bodyContains", Passed: false, Message: "Expected 'HEL' in ''"},
	}

	data, err := Build(results).Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !strings.HasPrefix(string(data), xml.Header) {
		t.Fatalf("serialized suite missing XML header")
	}

	var decoded Testsuite
	if err := xml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal serialized suite: %v", err)
	}
	if decoded.Tests != 1 || decoded.Failures != 1 {
		t.Fatalf("round-trip tests/failures = %d/%d, want 1/1", decoded.Tests, decoded.Failures)
	}
	if decoded.Cases[0].Failure == nil || decoded.Cases[0].Failure.Message != "Expected 'HEL' in ''" {
		t.Fatalf("round-trip lost failure message: %+v", decoded.Cases[0])
	}
}
