// Package junit renders assertion results as a JUnit XML testsuite, the
// interchange format CI systems ingest for per-run reports.
package junit

import (
	"encoding/xml"
	"fmt"
	"io"

	"flowcheck/pkg/assert"
)

// SuiteName is the fixed name of the emitted testsuite element.
const SuiteName = "assertions"

// Testsuite is the document root. One suite covers one run's assertion
// pack.
type Testsuite struct {
	XMLName  xml.Name   `xml:"testsuite"`
	Name     string     `xml:"name,attr"`
	Tests    int        `xml:"tests,attr"`
	Failures int        `xml:"failures,attr"`
	Cases    []Testcase `xml:"testcase"`
}

// Testcase is one evaluated assertion. Passing cases carry no children.
type Testcase struct {
	XMLName xml.Name `xml:"testcase"`
	Name    string   `xml:"name,attr"`
	Failure *Failure `xml:"failure,omitempty"`
}

// Failure carries the evaluator's message both as an attribute and as
// character data, so both attribute-reading and text-reading consumers
// see it.
type Failure struct {
	Message string `xml:"message,attr"`
	Data    string `xml:",chardata"`
}

// Build assembles the testsuite for a slice of results. Case names are
// "<operator>:<assertion id>" so a CI view identifies the assertion
// without opening the suite file. An empty slice yields tests="0" with no
// cases.
func Build(results []assert.Result) *Testsuite {
	suite := &Testsuite{
		Name:  SuiteName,
		Tests: len(results),
		Cases: make([]Testcase, 0, len(results)),
	}

	for _, r := range results {
		tc := Testcase{Name: fmt.Sprintf("%s:%s", r.Operator, r.AssertionID)}
		if !r.Passed {
			suite.Failures++
			tc.Failure = &Failure{Message: r.Message, Data: r.Message}
		}
		suite.Cases = append(suite.Cases, tc)
	}

	return suite
}

// Bytes serializes the suite with the XML declaration and two-space
// indentation.
func (s *Testsuite) Bytes() ([]byte, error) {
	data, err := xml.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing junit report: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// Write streams the serialized suite to w.
func (s *Testsuite) Write(w io.Writer) error {
	data, err := s.Bytes()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing junit report: %w", err)
	}
	return nil
}
