package cfn

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/awslabs/goformation/v7/cloudformation"
)

var (
	ErrDuplicateLogicalID = errors.New("duplicate logical id")
	ErrDanglingReference  = errors.New("reference to undeclared logical id")
	ErrDependencyCycle    = errors.New("dependency cycle")
)

// Handle is a typed reference to a resource declared on a Builder.
type Handle struct {
	id  string
	typ string
}

// LogicalID returns the logical id of the resource.
func (h Handle) LogicalID() string {
	return h.id
}

// Type returns the CloudFormation type of the resource.
func (h Handle) Type() string {
	return h.typ
}

// IsZero reports whether the handle was never assigned.
func (h Handle) IsZero() bool {
	return h.id == ""
}

// Ref returns a Ref to the resource.
func (h Handle) Ref() string {
	return cloudformation.Ref(h.id)
}

// GetAtt returns a Fn::GetAtt for the given attribute of the resource.
func (h Handle) GetAtt(attribute string) string {
	return cloudformation.GetAtt(h.id, attribute)
}

// Var returns the Fn::Sub variable referencing the resource, or one of its
// attributes when attribute is not empty.
func (h Handle) Var(attribute string) string {
	if attribute == "" {
		return "${" + h.id + "}"
	}
	return "${" + h.id + "." + attribute + "}"
}

// LogicalIDs returns the logical ids of handles, for use as an explicit
// DependsOn list.
func LogicalIDs(handles ...Handle) []string {
	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		ids = append(ids, h.id)
	}
	return ids
}

type entry struct {
	id       string
	index    int
	resource cloudformation.Resource
}

// Builder collects resources, parameters and outputs and synthesizes them
// into a Template.
type Builder struct {
	description string
	entries     []*entry
	index       map[string]*entry
	parameters  map[string]cloudformation.Parameter
	outputs     map[string]cloudformation.Output
	errs        []error
}

// NewBuilder creates an empty template builder.
func NewBuilder(description string) *Builder {
	return &Builder{
		description: description,
		index:       make(map[string]*entry),
		parameters:  make(map[string]cloudformation.Parameter),
		outputs:     make(map[string]cloudformation.Output),
	}
}

// Add declares a resource under the given logical id.
func (b *Builder) Add(id string, resource cloudformation.Resource) Handle {
	h := Handle{id: id, typ: resource.AWSCloudFormationType()}

	if _, ok := b.index[id]; ok {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateLogicalID, id))
		return h
	}
	if _, ok := b.parameters[id]; ok {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateLogicalID, id))
		return h
	}

	e := &entry{
		id:       id,
		index:    len(b.entries),
		resource: resource,
	}

	b.entries = append(b.entries, e)
	b.index[id] = e

	return h
}

// Parameter declares a template parameter and returns a Ref to it.
func (b *Builder) Parameter(name string, param cloudformation.Parameter) string {
	if _, ok := b.index[name]; ok {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateLogicalID, name))
	}
	b.parameters[name] = param
	return cloudformation.Ref(name)
}

// Output declares a template output.
func (b *Builder) Output(name string, output cloudformation.Output) {
	b.outputs[name] = output
}

// synthesized is the decoded shape of a template, as far as references are
// concerned.
type synthesized struct {
	Resources map[string]struct {
		Properties map[string]any `json:"Properties"`
		DependsOn  []string       `json:"DependsOn"`
	} `json:"Resources"`
	Outputs map[string]struct {
		Value any `json:"Value"`
	} `json:"Outputs"`
}

// Synth resolves all references and returns the template.
func (b *Builder) Synth() (*Template, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	tmpl := cloudformation.NewTemplate()
	tmpl.Description = b.description
	for name, param := range b.parameters {
		tmpl.Parameters[name] = param
	}
	for _, e := range b.entries {
		tmpl.Resources[e.id] = e.resource
	}
	for name, output := range b.outputs {
		tmpl.Outputs[name] = output
	}

	data, err := tmpl.JSON()
	if err != nil {
		return nil, fmt.Errorf("error encoding template: %w", err)
	}

	var decoded synthesized
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("error decoding template: %w", err)
	}

	deps := make(map[string][]string, len(b.entries))
	for _, e := range b.entries {
		res := decoded.Resources[e.id]

		refs := make(map[string]struct{})
		collectReferences(res.Properties, refs)

		resolved, err := b.resolve(e.id, refs)
		if err != nil {
			return nil, err
		}

		for _, dep := range res.DependsOn {
			if _, ok := b.index[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %q", ErrDanglingReference, e.id, dep)
			}
			resolved = appendUnique(resolved, dep)
		}

		deps[e.id] = resolved
	}

	outputs := make([]string, 0, len(decoded.Outputs))
	for name := range decoded.Outputs {
		outputs = append(outputs, name)
	}
	sort.Strings(outputs)

	for _, name := range outputs {
		refs := make(map[string]struct{})
		collectReferences(decoded.Outputs[name].Value, refs)
		if _, err := b.resolve("output "+name, refs); err != nil {
			return nil, err
		}
	}

	order, err := b.sort(deps)
	if err != nil {
		return nil, err
	}

	return &Template{
		Template: tmpl,
		order:    order,
		deps:     deps,
	}, nil
}

// resolve checks every referenced name and returns the referenced resources.
func (b *Builder) resolve(owner string, refs map[string]struct{}) ([]string, error) {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)

	var deps []string
	for _, name := range names {
		switch {
		case isPseudo(name):
		case b.isParameter(name):
		case b.index[name] != nil:
			deps = append(deps, name)
		default:
			return nil, fmt.Errorf("%w: %s references %q", ErrDanglingReference, owner, name)
		}
	}
	return deps, nil
}

func (b *Builder) isParameter(name string) bool {
	_, ok := b.parameters[name]
	return ok
}

// sort orders resources topologically. Among resources that are ready at the
// same time, declaration order wins, so the result is deterministic.
func (b *Builder) sort(deps map[string][]string) ([]string, error) {
	inDegree := make(map[string]int, len(b.entries))
	dependents := make(map[string][]string, len(b.entries))
	for _, e := range b.entries {
		inDegree[e.id] += 0
		for _, dep := range deps[e.id] {
			if dep == e.id {
				return nil, fmt.Errorf("%w: %s depends on itself", ErrDependencyCycle, e.id)
			}
			dependents[dep] = append(dependents[dep], e.id)
			inDegree[e.id]++
		}
	}

	var ready []*entry
	for _, e := range b.entries {
		if inDegree[e.id] == 0 {
			ready = append(ready, e)
		}
	}

	order := make([]string, 0, len(b.entries))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].index < ready[j].index })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next.id)

		for _, dependent := range dependents[next.id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, b.index[dependent])
			}
		}
	}

	if len(order) != len(b.entries) {
		var stuck []string
		for _, e := range b.entries {
			if inDegree[e.id] > 0 {
				stuck = append(stuck, e.id)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrDependencyCycle, stuck)
	}

	return order, nil
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
