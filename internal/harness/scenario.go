package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario declares a boot conformance case: a script tree, the registry it
// boots against, and the assertions its analysis must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Scripts maps file names to decompiled Lua sources. The harness
	// materializes them into a fresh directory before analysis.
	Scripts map[string]string `yaml:"scripts"`

	// Registry holds the boot registry values. Strings, booleans,
	// integers, and floats are supported.
	Registry map[string]any `yaml:"registry,omitempty"`

	// ResumeSave replays the boot as a saved-game resume.
	ResumeSave bool `yaml:"resume_save,omitempty"`

	// Assertions validate the analysis output.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion is one check against the analyzed boot.
type Assertion struct {
	// Type selects the check:
	//   default_set   - the boot's default set file equals Value
	//   developer     - developer mode equals Enabled
	//   queued_script - a script named Name was queued during boot
	//   delta_event   - a delta event with Subsystem/Target/Method exists
	//   actor_created - an actor named Name appears in the replay snapshot
	Type string `yaml:"type"`

	Value     string `yaml:"value,omitempty"`
	Enabled   bool   `yaml:"enabled,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Subsystem string `yaml:"subsystem,omitempty"`
	Target    string `yaml:"target,omitempty"`
	Method    string `yaml:"method,omitempty"`
}

var assertionTypes = map[string]bool{
	"default_set":   true,
	"developer":     true,
	"queued_script": true,
	"delta_event":   true,
	"actor_created": true,
}

// LoadScenario reads and validates a scenario file. Unknown YAML fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	return ParseScenario(raw, filepath.Base(path))
}

// ParseScenario decodes a scenario document. source names the origin for
// error messages.
func ParseScenario(raw []byte, source string) (*Scenario, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)

	var scenario Scenario
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", source, err)
	}
	if err := scenario.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", source, err)
	}
	return &scenario, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Scripts) == 0 {
		return fmt.Errorf("at least one script is required")
	}
	for i, assertion := range s.Assertions {
		if !assertionTypes[assertion.Type] {
			return fmt.Errorf("assertion %d has unknown type %q", i, assertion.Type)
		}
	}
	return nil
}
