// Package cfn declares CloudFormation templates on top of goformation and
// checks the references between resources before a template is emitted.
//
// Resources are goformation types. Intrinsics are built with the goformation
// helpers, usually through a Handle:
//
//	fn.Ref()          -> {"Ref": "MyFunction"}
//	fn.GetAtt("Arn")  -> {"Fn::GetAtt": ["MyFunction", "Arn"]}
//	fn.Var("Arn")     -> "${MyFunction.Arn}", for use inside Fn::Sub
package cfn

import (
	"regexp"
	"strings"
)

const pseudoPrefix = "AWS::"

func isPseudo(name string) bool {
	return strings.HasPrefix(name, pseudoPrefix)
}

var subVariable = regexp.MustCompile(`\$\{([^!}][^}]*)\}`)

// subReferences returns the logical ids referenced by the ${...} variables of
// a Fn::Sub template string. ${Name.Attr} references resource Name.
func subReferences(template string) []string {
	var refs []string
	for _, match := range subVariable.FindAllStringSubmatch(template, -1) {
		name, _, _ := strings.Cut(strings.TrimSpace(match[1]), ".")
		refs = append(refs, name)
	}
	return refs
}

// collectReferences walks a decoded JSON value and records every logical id
// referenced through Ref, Fn::GetAtt or Fn::Sub.
func collectReferences(value any, into map[string]struct{}) {
	switch v := value.(type) {
	case map[string]any:
		if ref, ok := v["Ref"].(string); ok && len(v) == 1 {
			into[ref] = struct{}{}
			return
		}
		if getAtt, ok := v["Fn::GetAtt"]; ok && len(v) == 1 {
			switch args := getAtt.(type) {
			case []any:
				if len(args) > 0 {
					if name, ok := args[0].(string); ok {
						into[name] = struct{}{}
					}
				}
			case string:
				name, _, _ := strings.Cut(args, ".")
				into[name] = struct{}{}
			}
			return
		}
		if sub, ok := v["Fn::Sub"]; ok && len(v) == 1 {
			switch s := sub.(type) {
			case string:
				for _, name := range subReferences(s) {
					into[name] = struct{}{}
				}
			case []any:
				if len(s) > 0 {
					if tmpl, ok := s[0].(string); ok {
						for _, name := range subReferences(tmpl) {
							into[name] = struct{}{}
						}
					}
				}
				for _, rest := range s[1:] {
					collectReferences(rest, into)
				}
			}
			return
		}
		for _, val := range v {
			collectReferences(val, into)
		}
	case []any:
		for _, elem := range v {
			collectReferences(elem, into)
		}
	}
}
