package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/irfndi/carprice-ai-go/internal/llm"
)

// ErrUnknownAction is returned by Dispatch for a name with no registered action.
var ErrUnknownAction = errors.New("unknown action")

// Action is one step the reasoner may request. Execute receives the raw JSON
// arguments and returns a JSON-encodable result.
type Action interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Execute(ctx context.Context, args json.RawMessage) (interface{}, error)
}

// Registry is the closed set of actions available to one orchestrator.
type Registry struct {
	actions map[string]Action
	order   []string
}

// NewRegistry builds a registry, failing on an empty or duplicate name.
func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		name := a.Name()
		if name == "" {
			return nil, errors.New("action with empty name")
		}
		if _, exists := r.actions[name]; exists {
			return nil, fmt.Errorf("duplicate action %q", name)
		}
		r.actions[name] = a
		r.order = append(r.order, name)
	}
	return r, nil
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Tools describes every action as a reasoner tool definition.
func (r *Registry) Tools() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		a := r.actions[name]
		specs = append(specs, llm.ToolSpec{
			Name:        name,
			Description: a.Description(),
			Parameters:  a.Schema(),
		})
	}
	return specs
}

// Dispatch runs the named action.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return a.Execute(ctx, args)
}

// argsValidator reports validation failures by JSON field name.
var argsValidator = newArgsValidator()

func newArgsValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeArgs strictly decodes raw into T and validates it. Empty arguments
// decode as an empty object so required-field errors stay readable.
func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		data = []byte("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := argsValidator.Struct(args); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return args, validationError(verrs)
		}
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

func validationError(verrs validator.ValidationErrors) error {
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		fields = append(fields, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	sort.Strings(fields)
	return fmt.Errorf("invalid arguments: %s", strings.Join(fields, ", "))
}
