package templates

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/acrebrook/modelgrid/internal/recipe"
)

// Input is one declared template parameter. A non-empty Default is
// formula text used when the instance binds nothing; inputs without a
// default are required.
type Input struct {
	Key     string
	Default string
	Doc     string
}

// Required reports whether an instance must bind this input.
func (in Input) Required() bool { return in.Default == "" }

// Output is one calculation blueprint. Formula text may use the
// placeholder forms $input.KEY, $input.KEY.Start, $input.KEY.End,
// $self.KEY, $M{n}.KEY and the M_SELF. prefix. Solver outputs carry a
// fixed formula an external optimizer overwrites.
type Output struct {
	Key     string
	Name    string
	Formula string
	Type    recipe.ValueType
	Solver  bool
}

// Template is one registered module template.
type Template struct {
	Kind    string
	Doc     string
	Inputs  []Input
	Outputs []Output
}

var inputPlaceholder = regexp.MustCompile(`\$input\.([A-Za-z_]\w*)`)

// Input returns the declared input with the given key.
func (t *Template) Input(key string) (Input, bool) {
	for _, in := range t.Inputs {
		if in.Key == key {
			return in, true
		}
	}
	return Input{}, false
}

// OutputIndex returns the 1-based position of an output key, the
// position module cross-references address.
func (t *Template) OutputIndex(key string) (int, bool) {
	for i, out := range t.Outputs {
		if out.Key == key {
			return i + 1, true
		}
	}
	return 0, false
}

func (t *Template) validate() error {
	if t.Kind == "" {
		return fmt.Errorf("template kind must not be empty")
	}
	if len(t.Outputs) == 0 {
		return fmt.Errorf("template %q declares no outputs", t.Kind)
	}
	seen := map[string]bool{}
	for _, in := range t.Inputs {
		if in.Key == "" {
			return fmt.Errorf("template %q: input with empty key", t.Kind)
		}
		if seen[in.Key] {
			return fmt.Errorf("template %q: duplicate input %q", t.Kind, in.Key)
		}
		seen[in.Key] = true
	}
	seen = map[string]bool{}
	for _, out := range t.Outputs {
		if out.Key == "" {
			return fmt.Errorf("template %q: output with empty key", t.Kind)
		}
		if seen[out.Key] {
			return fmt.Errorf("template %q: duplicate output %q", t.Kind, out.Key)
		}
		seen[out.Key] = true
		if out.Formula == "" {
			return fmt.Errorf("template %q: output %q has no formula", t.Kind, out.Key)
		}
		for _, m := range inputPlaceholder.FindAllStringSubmatch(out.Formula, -1) {
			if _, ok := t.Input(m[1]); !ok {
				return fmt.Errorf("template %q: output %q references undeclared input %q", t.Kind, out.Key, m[1])
			}
		}
	}
	return nil
}

// Registry holds the templates one compilation may instantiate.
type Registry struct {
	templates map[string]*Template
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Builtins creates a Registry preloaded with the built-in templates.
func Builtins() *Registry {
	r := New()
	for _, t := range builtins() {
		if err := r.Register(t); err != nil {
			panic(fmt.Sprintf("builtin template: %v", err))
		}
	}
	return r
}

// Register adds a template. Registering an invalid template or a kind
// that already exists is an error.
func (r *Registry) Register(t *Template) error {
	if err := t.validate(); err != nil {
		return err
	}
	if _, exists := r.templates[t.Kind]; exists {
		return fmt.Errorf("template %q already registered", t.Kind)
	}
	r.templates[t.Kind] = t
	return nil
}

// Get returns the template registered under kind.
func (r *Registry) Get(kind string) (*Template, bool) {
	t, ok := r.templates[kind]
	return t, ok
}

// Kinds lists the registered template kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.templates))
	for k := range r.templates {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
