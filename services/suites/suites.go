// Package suites loads workflow test suites from YAML: the workflow
// contract, the fixture pack that drives it, and the assertion pack that
// judges the resulting trace.
package suites

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"flowcheck/pkg/assert"
)

// Node is one workflow node in a contract. Config carries node-specific
// settings (transform name for Function nodes, method/url for HTTP nodes).
type Node struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Name   string         `json:"name" yaml:"name"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Edge connects two nodes by id.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Contract is a fully-formed workflow declaration. Contracts arrive
// complete; nothing in this repository generates them.
type Contract struct {
	ID              uuid.UUID `json:"id" yaml:"-"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description" yaml:"description"`
	Nodes           []Node    `json:"nodes" yaml:"nodes"`
	Edges           []Edge    `json:"edges" yaml:"edges"`
	TestWebhookPath string    `json:"test_webhook_path" yaml:"test_webhook_path"`
	ProdWebhookPath string    `json:"prod_webhook_path" yaml:"prod_webhook_path"`
}

// Fixture is one canned request. The core consumes it as-is and never
// validates method or path.
type Fixture struct {
	Method string         `json:"method" yaml:"method"`
	Path   string         `json:"path" yaml:"path"`
	Body   map[string]any `json:"body" yaml:"body"`
}

// Suite bundles a contract with its fixtures and assertions.
type Suite struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Contract    Contract           `json:"contract"`
	Fixtures    []Fixture          `json:"fixtures"`
	Assertions  []assert.Assertion `json:"assertions"`
}

// File-facing shapes: ids arrive as strings (possibly empty) and are
// parsed or defaulted during conversion, since a suite author should not
// have to mint UUIDs by hand.
type suiteFile struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Contract    Contract        `yaml:"contract"`
	Fixtures    []Fixture       `yaml:"fixtures"`
	Assertions  []assertionFile `yaml:"assertions"`
}

type assertionFile struct {
	ID          string         `yaml:"id"`
	Operator    string         `yaml:"operator"`
	Args        map[string]any `yaml:"args"`
	Description string         `yaml:"description"`
}

// Parse decodes one suite document. Unknown fields are rejected so typos
// in suite files surface at load time rather than as silently-ignored
// assertions.
func Parse(data []byte) (*Suite, error) {
	var file suiteFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode suite: %w", err)
	}

	suite := &Suite{
		Name:        strings.TrimSpace(file.Name),
		Description: strings.TrimSpace(file.Description),
		Contract:    file.Contract,
		Fixtures:    file.Fixtures,
	}
	suite.Contract.ID = uuid.New()
	if suite.Contract.Name == "" {
		suite.Contract.Name = suite.Name
	}

	for i, a := range file.Assertions {
		id, err := uuid.Parse(strings.TrimSpace(a.ID))
		if err != nil {
			id = uuid.New()
		}
		if strings.TrimSpace(a.Operator) == "" {
			return nil, fmt.Errorf("assertion %d: operator is required", i)
		}
		suite.Assertions = append(suite.Assertions, assert.Assertion{
			ID:          id,
			Operator:    a.Operator,
			Args:        a.Args,
			Description: a.Description,
		})
	}

	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return suite, nil
}

// Validate checks structural requirements. Operator names are not checked
// here: an unknown operator is an evaluation-time failing result, not a
// load error.
func (s *Suite) Validate() error {
	if s == nil {
		return errors.New("nil suite")
	}
	if s.Name == "" {
		return errors.New("suite name is required")
	}
	if len(s.Contract.Nodes) == 0 {
		return errors.New("contract requires at least one node")
	}

	ids := make(map[string]bool, len(s.Contract.Nodes))
	for i, n := range s.Contract.Nodes {
		if strings.TrimSpace(n.ID) == "" {
			return fmt.Errorf("node %d: id is required", i)
		}
		if strings.TrimSpace(n.Type) == "" {
			return fmt.Errorf("node %q: type is required", n.ID)
		}
		if ids[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		ids[n.ID] = true
	}

	for i, e := range s.Contract.Edges {
		if !ids[e.Source] {
			return fmt.Errorf("edge %d: unknown source node %q", i, e.Source)
		}
		if !ids[e.Target] {
			return fmt.Errorf("edge %d: unknown target node %q", i, e.Target)
		}
	}

	if len(s.Fixtures) == 0 {
		return errors.New("suite requires at least one fixture")
	}

	return nil
}

// Load reads and parses a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	suite, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suite, nil
}

// LoadDir parses every .yaml/.yml file directly under dir, sorted by
// filename for a stable run order.
func LoadDir(dir string) ([]*Suite, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read suites dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("no suite files in %s: %w", dir, fs.ErrNotExist)
	}

	suites := make([]*Suite, 0, len(names))
	for _, name := range names {
		suite, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		suites = append(suites, suite)
	}
	return suites, nil
}
