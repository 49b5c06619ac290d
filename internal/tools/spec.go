// Package tools implements the Tool Registry & Executor (C1): tool
// declaration, JSON-Schema argument validation, and the built-in
// filesystem/command tools, plus one optional pluggable tool
// demonstrating the registry is genuinely open-ended.
//
// Grounded on the teacher's internal/tools package (filesystem.go,
// shell.go, result.go, policy.go), adapted from managed-mode
// per-tenant tool routing to a single project-scoped registry.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nextlevelbuilder/forgecode/internal/errs"
)

// ToolSpec declares one callable tool: its name, a human description,
// and a JSON Schema describing its argument object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema, {type: object, properties, required}
}

// Call is the normalized invocation the LLM Client hands to Execute:
// a tool name plus a string-keyed argument map, per spec.md §3's
// ToolCall definition.
type Call struct {
	ExecutionID string
	Name        string
	Arguments   map[string]any
}

// Handler executes one validated call and returns its Result.
type Handler func(ctx context.Context, args map[string]any) Result

type registeredTool struct {
	spec    ToolSpec
	schema  *jsonschema.Schema
	handler Handler
}

// Registry is the process-wide tool registry and executor. register
// is idempotent by name (spec.md §4.1): re-registering the same name
// with an identical schema is a no-op; a different schema is an error.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
	clock func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*registeredTool),
		clock: time.Now,
	}
}

// Register compiles the tool's parameter schema once and wires its
// handler. A duplicate name with a non-identical schema fails per the
// registry's uniqueness invariant (spec.md §3: "tool names are
// globally unique within a registry").
func (r *Registry) Register(spec ToolSpec, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tools[spec.Name]; ok {
		if !schemasEqual(existing.spec.Parameters, spec.Parameters) {
			return errs.New(errs.KindAlreadyExists,
				fmt.Sprintf("tool %q already registered with a different schema", spec.Name))
		}
		return nil
	}

	compiled, err := compileSchema(spec.Name, spec.Parameters)
	if err != nil {
		return errs.Wrap(errs.KindInvalidArguments, "invalid tool parameter schema", err)
	}

	r.tools[spec.Name] = &registeredTool{spec: spec, schema: compiled, handler: handler}
	return nil
}

// List returns every registered ToolSpec, in no particular order (the
// caller — C2's request builder — sorts or orders as it needs).
func (r *Registry) List() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.spec)
	}
	return specs
}

// Execute validates the call's arguments against the tool's declared
// schema, then dispatches to its handler. Validation failures return
// invalid_arguments before any handler runs, never a panic, matching
// spec.md §4.1's "missing required keys or wrong types fail with
// invalid_arguments before any side effect."
func (r *Registry) Execute(ctx context.Context, call Call) Result {
	if call.ExecutionID == "" {
		call.ExecutionID = uuid.NewString()
	}

	start := r.clock()

	r.mu.RLock()
	t, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		// unknown_tool is an invalid_arguments-class failure (spec.md §7),
		// not its own outcome: the LLM named a tool the registry never
		// declared, which is a malformed call, not an execution error.
		logInvocation(call, OutcomeInvalidArguments, start, r.clock(), 0)
		return Failure(OutcomeInvalidArguments, fmt.Sprintf("unknown tool %q", call.Name))
	}

	if err := validateArgs(t.schema, call.Arguments); err != nil {
		logInvocation(call, OutcomeInvalidArguments, start, r.clock(), 0)
		return Failure(OutcomeInvalidArguments, err.Error())
	}

	result := t.handler(ctx, call.Arguments)
	logInvocation(call, result.Outcome, start, r.clock(), len(result.Content))
	return result
}

func validateArgs(schema *jsonschema.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}
	// jsonschema validates against decoded-JSON values (map[string]any
	// with float64 numbers); round-trip through JSON so caller-supplied
	// Go values (e.g. int) normalize the same way.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("arguments not serializable: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("arguments not serializable: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("argument validation failed: %w", err)
	}
	return nil
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	resourceURL := "mem://tools/" + name + ".json"
	if err := c.AddResource(resourceURL, decoded); err != nil {
		return nil, err
	}
	return c.Compile(resourceURL)
}

func schemasEqual(a, b map[string]any) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}
