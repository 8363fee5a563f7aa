package task

import (
	"reflect"
	"sort"
	"strings"

	"github.com/flowerchecker/taskchain/engine/config"
	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BoundParam is one ParamSpec together with the value resolved for it.
type BoundParam struct {
	Spec  ParamSpec
	Value any
}

// ParameterSet is every task's resolved, bound parameter values, plus
// the machinery to turn them into the fingerprint engine's stable
// persistence representation. Grounded on ParameterRegistry in
// original_source/src/taskchain/parameter.py.
type ParameterSet struct {
	ordered []BoundParam
	byName  map[string]BoundParam
}

// Get returns the bound value of name, panicking if it was not
// declared — mirroring ParameterRegistry.__getattr__'s AttributeError
// for an unknown parameter, which callers aren't meant to recover from.
func (p *ParameterSet) Get(name string) any {
	bp, ok := p.byName[name]
	if !ok {
		panic("task: parameter `" + name + "` was not declared by this task")
	}
	return bp.Value
}

// Has reports whether name was declared on this task.
func (p *ParameterSet) Has(name string) bool {
	_, ok := p.byName[name]
	return ok
}

// Names returns every declared parameter's name, in declaration order.
func (p *ParameterSet) Names() []string {
	out := make([]string, 0, len(p.ordered))
	for _, bp := range p.ordered {
		out = append(out, bp.Spec.Name)
	}
	return out
}

// ReprOf returns the stable string representation of one parameter's
// bound value, for the run-info sidecar — not filtered by
// IgnorePersistence/DontPersistDefaultValue the way Repr() is, since
// the sidecar records every value actually used regardless of whether
// it affects the fingerprint.
func (p *ParameterSet) ReprOf(name string) string {
	bp, ok := p.byName[name]
	if !ok {
		return ""
	}
	return valueRepr(bp.Value)
}

// Repr renders the persistence-relevant parameters as a single stable
// string: `name=value_repr` entries, sorted by name and joined by
// "###", skipping parameters with IgnorePersistence or whose value
// equals an unpersisted default. Grounded on
// ParameterRegistry.repr/AbstractParameter.repr in the same module.
func (p *ParameterSet) Repr() string {
	reprs := make([]string, 0, len(p.ordered))
	for _, bp := range p.ordered {
		r := paramRepr(bp)
		if r != "" {
			reprs = append(reprs, r)
		}
	}
	sort.Strings(reprs)
	return strings.Join(reprs, "###")
}

func paramRepr(bp BoundParam) string {
	spec := bp.Spec
	if spec.IgnorePersistence {
		return ""
	}
	if spec.DontPersistDefaultValue && spec.HasDefault && valuesEqual(bp.Value, spec.Default) {
		return ""
	}
	return spec.Name + "=" + valueRepr(bp.Value)
}

func valueRepr(v any) string {
	if po, ok := v.(ParameterObject); ok {
		return po.Repr()
	}
	return string(core.StableJSONBytes(v))
}

func valuesEqual(a, b any) bool {
	return string(core.StableJSONBytes(a)) == string(core.StableJSONBytes(b))
}

// BindOption configures one Bind call.
type BindOption func(*bindConfig)

type bindConfig struct {
	lenient bool
}

// Lenient binds a required parameter with no value anywhere in the
// config chain to nil instead of failing, matching EngineOptions'
// "lenient" parameter_mode.
func Lenient() BindOption {
	return func(c *bindConfig) { c.lenient = true }
}

// Bind resolves every declared ParamSpec against node's own data and
// then, nearest first, each of node.Ancestors() — the breadth-first
// "nearest config wins" search of spec.md §4.3's Parameter Binder.
func Bind(node *config.Node, specs []ParamSpec, opts ...BindOption) (*ParameterSet, error) {
	cfg := &bindConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	chain := append([]*config.Node{node}, node.Ancestors()...)

	set := &ParameterSet{byName: map[string]BoundParam{}}
	for _, spec := range specs {
		bp, err := bindOne(chain, spec, cfg)
		if err != nil {
			return nil, err
		}
		set.ordered = append(set.ordered, bp)
		set.byName[spec.Name] = bp
	}
	return set, nil
}

func bindOne(chain []*config.Node, spec ParamSpec, cfg *bindConfig) (BoundParam, error) {
	key := spec.configKey()
	if core.IsReservedParameterName(spec.Name) {
		return BoundParam{}, core.ParameterError("RESERVED_PARAMETER_NAME", "parameter `"+spec.Name+"` uses a reserved name", nil, map[string]any{
			"name": spec.Name,
		})
	}

	var raw any
	found := false
	for _, node := range chain {
		if v, ok := node.Get(key); ok {
			raw = v
			found = true
			break
		}
	}

	if !found {
		if !spec.HasDefault {
			if cfg.lenient {
				return BoundParam{Spec: spec, Value: nil}, nil
			}
			return BoundParam{}, core.ParameterError("MISSING_REQUIRED_PARAMETER", "no value found for required parameter `"+spec.Name+"`", nil, map[string]any{
				"name": spec.Name,
			})
		}
		return BoundParam{Spec: spec, Value: spec.Default}, nil
	}

	value, err := coerce(raw, spec)
	if err != nil {
		return BoundParam{}, err
	}

	if spec.ValidateTag != "" {
		if err := validate.Var(value, spec.ValidateTag); err != nil {
			return BoundParam{}, core.ParameterError("PARAMETER_VALIDATION_FAILED", "parameter `"+spec.Name+"` failed validation: "+err.Error(), err, map[string]any{
				"name": spec.Name,
			})
		}
	}

	return BoundParam{Spec: spec, Value: value}, nil
}

// coerce turns a raw decoded-YAML value into the type the task
// declared: a parameter-object mapping is instantiated via the
// registered factory; everything else goes through mapstructure's
// weakly-typed decoder, matching the original's looser isinstance
// check (it accepts a str for a declared Path, for instance).
func coerce(raw any, spec ParamSpec) (any, error) {
	if objData, ok := isParameterObjectShape(raw); ok {
		obj, err := BuildParameterObject(objData)
		if err != nil {
			return nil, err
		}
		return obj, nil
	}

	if spec.Type == nil {
		return raw, nil
	}

	if spec.Type == reflect.TypeOf(core.Path("")) {
		s, ok := raw.(string)
		if !ok {
			return nil, core.ParameterError("PARAMETER_TYPE_MISMATCH", "parameter `"+spec.Name+"` expects a path string", nil, map[string]any{
				"name": spec.Name,
			})
		}
		return core.Path(s), nil
	}

	target := reflect.New(spec.Type)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target.Interface(),
	})
	if err != nil {
		return nil, core.ParameterError("DECODER_SETUP_FAILED", err.Error(), err, nil)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, core.ParameterError("PARAMETER_TYPE_MISMATCH", "parameter `"+spec.Name+"` could not be coerced to the declared type: "+err.Error(), err, map[string]any{
			"name": spec.Name,
		})
	}
	return target.Elem().Interface(), nil
}
