package broker

import (
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/flowcursor/broker/internal/store"
)

// celFilter wraps a compiled CEL program evaluated against an Event. A
// zero-value celFilter (enabled=false) always accepts.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

// newCELFilter compiles expr, if non-empty, into a reusable program. A
// compile error is returned to the caller at subscribe time, per the
// filter's expression-scope rule.
func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("topic", cel.StringType),
		cel.Variable("stream", cel.StringType),
		cel.Variable("number", cel.IntType),
		cel.Variable("event_type", cel.StringType),
		cel.Variable("size", cel.IntType),
		// Parsed JSON payload, when the payload decodes as JSON.
		cel.Variable("json", cel.DynType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against ev. Any eval-time error
// (including an unset program on a disabled filter, which never reaches
// here) is treated as reject, matching the defensive posture this is
// grounded on.
func (f celFilter) Eval(ev store.Event) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(ev.Payload, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"topic":      ev.Topic,
		"stream":     ev.StreamID,
		"number":     int64(ev.Number),
		"event_type": ev.Type,
		"size":       int64(len(ev.Payload)),
		"json":       jsonObj,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
