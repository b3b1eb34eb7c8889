// Package seed embeds the example suite used for boot seeding, flowctl
// suites init, and tests.
package seed

import (
	_ "embed"

	"flowcheck/services/suites"
)

// UppercaseEchoFile is the filename flowctl writes when initialising a
// suites directory.
const UppercaseEchoFile = "uppercase-echo.yaml"

// UppercaseEcho is the canned Webhook → Function → Respond suite.
//
//go:embed uppercase-echo.yaml
var UppercaseEcho []byte

// Suite parses the embedded example suite.
func Suite() (*suites.Suite, error) {
	return suites.Parse(UppercaseEcho)
}
