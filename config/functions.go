package config

import (
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// envFunction reads an environment variable, falling back to the optional second argument.
func envFunction(lookup func(string) (string, bool)) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
		},
		VarParam: &function.Parameter{Name: "default", Type: cty.String},
		Type:     function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			if value, ok := lookup(args[0].AsString()); ok {
				return cty.StringVal(value), nil
			}

			if len(args) > 1 {
				return args[1], nil
			}

			return cty.StringVal(""), nil
		},
	})
}

func functions(lookup func(string) (string, bool)) map[string]function.Function {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	return map[string]function.Function{
		"env":       envFunction(lookup),
		"concat":    stdlib.ConcatFunc,
		"format":    stdlib.FormatFunc,
		"join":      stdlib.JoinFunc,
		"lower":     stdlib.LowerFunc,
		"upper":     stdlib.UpperFunc,
		"replace":   stdlib.ReplaceFunc,
		"trimspace": stdlib.TrimSpaceFunc,
	}
}

// newEvalContext exposes the functions and, once the product block is read, the product variables.
func newEvalContext(lookup func(string) (string, bool), variables map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: variables,
		Functions: functions(lookup),
	}
}
