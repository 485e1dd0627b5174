// Package recipe runs YAML files describing a sequence of spreadsheet steps:
// register a file, ask about it, edit it, ask about the edited copy.
package recipe

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Recipe is a complete step list.
type Recipe struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
	Steps   []Step `yaml:"steps" json:"steps"`
}

// Step is one action. File is a catalog reference (id, id prefix or path) or,
// for add, a path on disk.
type Step struct {
	ID          string `yaml:"id" json:"id"`
	Action      string `yaml:"action" json:"action"`
	File        string `yaml:"file" json:"file"`
	Question    string `yaml:"question,omitempty" json:"question,omitempty"`
	Instruction string `yaml:"instruction,omitempty" json:"instruction,omitempty"`
	OnFailure   string `yaml:"on_failure,omitempty" json:"onFailure,omitempty"`
}

// StepResult holds the output of a completed step. For add and edit the
// output is the id of the recorded file.
type StepResult struct {
	StepID  string `json:"stepId"`
	Output  string `json:"output"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   error  `json:"-"`
}

// Load reads and parses a recipe file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("recipe file not found: %s", path)
		}
		return nil, fmt.Errorf("could not read recipe file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a recipe from YAML bytes.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid recipe YAML: %w", err)
	}
	if err := validate(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func validate(r *Recipe) error {
	if r.Name == "" {
		return fmt.Errorf("recipe is missing a 'name' field")
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("recipe %q has no steps defined", r.Name)
	}

	seen := make(map[string]bool)
	for i, step := range r.Steps {
		if step.ID == "" {
			return fmt.Errorf("step %d is missing an 'id' field", i+1)
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step ID %q", step.ID)
		}
		seen[step.ID] = true

		if step.File == "" {
			return fmt.Errorf("step %q is missing a 'file' field", step.ID)
		}
		switch step.Action {
		case ActionAdd, ActionAnalyze:
		case ActionAsk:
			if step.Question == "" {
				return fmt.Errorf("step %q (ask) is missing a 'question' field", step.ID)
			}
		case ActionEdit:
			if step.Instruction == "" {
				return fmt.Errorf("step %q (edit) is missing an 'instruction' field", step.ID)
			}
		case "":
			return fmt.Errorf("step %q is missing an 'action' field", step.ID)
		default:
			return fmt.Errorf("step %q has unknown action %q (expected add, ask, analyze or edit)", step.ID, step.Action)
		}
		switch step.OnFailure {
		case "", "stop", "skip":
		default:
			return fmt.Errorf("step %q: on_failure must be stop or skip, got %q", step.ID, step.OnFailure)
		}
	}
	return nil
}
