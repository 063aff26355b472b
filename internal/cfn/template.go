package cfn

import (
	"encoding/json"
	"fmt"

	"github.com/awslabs/goformation/v7/cloudformation"
	"gopkg.in/yaml.v3"
)

// Template is a synthesized CloudFormation template together with the
// dependency graph of its resources.
type Template struct {
	*cloudformation.Template

	order []string
	deps  map[string][]string
}

// Order returns the logical ids of all resources in dependency order: every
// resource appears after everything it depends on.
func (t *Template) Order() []string {
	order := make([]string, len(t.order))
	copy(order, t.order)
	return order
}

// DependsOn reports whether resource id depends on resource dep, either
// directly or transitively, through references or explicit DependsOn.
func (t *Template) DependsOn(id, dep string) bool {
	seen := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range t.deps[current] {
			if d == dep {
				return true
			}
			if !seen[d] {
				seen[d] = true
				stack = append(stack, d)
			}
		}
	}
	return false
}

// YAML returns the YAML encoding of the template. Intrinsics keep their
// long JSON form, so the output parses without custom tags.
func (t *Template) YAML() ([]byte, error) {
	data, err := t.Template.JSON()
	if err != nil {
		return nil, fmt.Errorf("error encoding template: %w", err)
	}

	var normalized map[string]any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("error normalizing template: %w", err)
	}

	out, err := yaml.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("error encoding template: %w", err)
	}
	return out, nil
}
