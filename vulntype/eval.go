package vulntype

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/zero-day-ai/swarm/finding"
)

// Signal is the outcome of evaluating one CEL expression against a report.
type Signal struct {
	// Expression is the source expression from the registry entry.
	Expression string `json:"expression"`

	// Matched is the boolean result. For validity criteria, true means the
	// criterion holds; for false-positive patterns, true means the report
	// matches the pattern.
	Matched bool `json:"matched"`

	// Err carries an evaluation error, for expressions that reference
	// fields the report does not populate.
	Err string `json:"err,omitempty"`
}

// typeEvaluator holds the compiled CEL programs for one type entry.
type typeEvaluator struct {
	validity      []compiledExpr
	falsePositive []compiledExpr
}

type compiledExpr struct {
	source  string
	program cel.Program
}

func newTypeEvaluator(t *Type) (*typeEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("report", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("evidence", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL environment: %w", err)
	}

	compile := func(exprs []string, kind string) ([]compiledExpr, error) {
		out := make([]compiledExpr, 0, len(exprs))
		for _, src := range exprs {
			ast, iss := env.Compile(src)
			if iss.Err() != nil {
				return nil, fmt.Errorf("invalid %s expression %q: %w", kind, src, iss.Err())
			}
			if ast.OutputType() != cel.BoolType {
				return nil, fmt.Errorf("%s expression %q must evaluate to bool, got %s", kind, src, ast.OutputType())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("failed to plan %s expression %q: %w", kind, src, err)
			}
			out = append(out, compiledExpr{source: src, program: prg})
		}
		return out, nil
	}

	validity, err := compile(t.ValidityCriteria, "validity")
	if err != nil {
		return nil, err
	}
	falsePositive, err := compile(t.FalsePositivePatterns, "false-positive")
	if err != nil {
		return nil, err
	}
	return &typeEvaluator{validity: validity, falsePositive: falsePositive}, nil
}

func evalAll(exprs []compiledExpr, activation map[string]any) []Signal {
	out := make([]Signal, 0, len(exprs))
	for _, e := range exprs {
		sig := Signal{Expression: e.source}
		val, _, err := e.program.Eval(activation)
		if err != nil {
			sig.Err = err.Error()
		} else if b, ok := val.Value().(bool); ok {
			sig.Matched = b
		} else {
			sig.Err = fmt.Sprintf("expression yielded %T, not bool", val.Value())
		}
		out = append(out, sig)
	}
	return out
}

// EvaluateValidity runs the type's validity criteria against a report.
// Returns one signal per criterion; unknown type ids are an error.
func (r *Registry) EvaluateValidity(typeID string, report finding.Report) ([]Signal, error) {
	ev, ok := r.evals[typeID]
	if !ok {
		return nil, fmt.Errorf("unknown vulnerability type %q", typeID)
	}
	activation, err := reportActivation(report)
	if err != nil {
		return nil, err
	}
	return evalAll(ev.validity, activation), nil
}

// MatchFalsePositives runs the type's false-positive patterns against a
// report. A matched signal means the report resembles a known false
// positive and deserves extra scrutiny.
func (r *Registry) MatchFalsePositives(typeID string, report finding.Report) ([]Signal, error) {
	ev, ok := r.evals[typeID]
	if !ok {
		return nil, fmt.Errorf("unknown vulnerability type %q", typeID)
	}
	activation, err := reportActivation(report)
	if err != nil {
		return nil, err
	}
	return evalAll(ev.falsePositive, activation), nil
}

// reportActivation converts a report into the CEL activation maps via a
// JSON round trip, so expressions see the same field names as the JSON
// serialization.
func reportActivation(report finding.Report) (map[string]any, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report for evaluation: %w", err)
	}
	var reportMap map[string]any
	if err := json.Unmarshal(raw, &reportMap); err != nil {
		return nil, fmt.Errorf("failed to decode report for evaluation: %w", err)
	}
	evidenceMap, _ := reportMap["evidence"].(map[string]any)
	if evidenceMap == nil {
		evidenceMap = map[string]any{}
	}
	return map[string]any{
		"report":   reportMap,
		"evidence": evidenceMap,
	}, nil
}
