package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Params are the caller inputs of a fragment kind, e.g. {"cores": 6, "smt": "off"}.
type Params map[string]any

// ResolveFunc turns params into the parts of a fragment for one action.
type ResolveFunc func(action domain.Action, params Params) ([]domain.Part, error)

// Kind is a registered fragment kind.
type Kind struct {
	Name        string
	Doc         document.Kind
	Description string
	Usage       string // accepted params
	Resolve     ResolveFunc
}

// Registry is the catalog of fragment kinds. It accepts registrations until
// Freeze is called and is read-only afterwards.
type Registry struct {
	mu     sync.RWMutex
	kinds  map[string]Kind
	frozen bool
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Kind),
	}
}

// Default returns a frozen registry holding every built-in kind.
func Default() *Registry {
	r := NewRegistry()
	for _, k := range builtins() {
		if err := r.Register(k); err != nil {
			panic(err)
		}
	}
	r.Freeze()
	return r
}

// Register adds a kind. Registering after Freeze or registering a name twice fails.
func (r *Registry) Register(k Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry is frozen, cannot register %s", k.Name)
	}
	if _, exists := r.kinds[k.Name]; exists {
		return fmt.Errorf("fragment kind %s already registered", k.Name)
	}
	if k.Resolve == nil {
		return fmt.Errorf("fragment kind %s has no resolver", k.Name)
	}
	r.kinds[k.Name] = k
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[name]
	return k, ok
}

// Kinds lists the registered kinds sorted by name.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve builds the fragment for kind. Unknown kinds and invalid params are
// PreconditionErrors; nothing is ever silently skipped.
func (r *Registry) Resolve(kind string, action domain.Action, params Params) (*domain.Fragment, error) {
	k, ok := r.Lookup(kind)
	if !ok {
		return nil, domain.Errorf(domain.CodePrecondition, "%w: %s", domain.ErrUnknownKind, kind)
	}

	// Status queries the apply shape of the fragment.
	resolveAs := action
	if action == domain.ActionStatus {
		resolveAs = domain.ActionApply
	}
	if resolveAs != domain.ActionApply && resolveAs != domain.ActionRemove {
		return nil, domain.Errorf(domain.CodePrecondition, "unsupported action %q", action)
	}

	parts, err := k.Resolve(resolveAs, params)
	if err != nil {
		return nil, domain.Errorf(domain.CodePrecondition, "resolve %s: %w", kind, err)
	}
	if resolveAs == domain.ActionRemove {
		for _, p := range parts {
			if p.Node != nil {
				p.Node.Policy = domain.PolicyRemoveIfPresent
			} else {
				p.Token.Policy = domain.PolicyRemoveIfPresent
				p.Token.Tokens = nil
			}
		}
	}

	return &domain.Fragment{
		Kind:    kind,
		Action:  action,
		DocKind: k.Doc,
		Parts:   parts,
	}, nil
}

// decode maps params onto out. Unknown keys are rejected so typos do not go unnoticed.
func decode(params Params, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       switchHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(params))
}

// switchHook accepts on/off and yes/no for booleans, as operators write them.
func switchHook(from, to reflect.Kind, data any) (any, error) {
	s, ok := data.(string)
	if !ok || from != reflect.String || to != reflect.Bool {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "enabled":
		return true, nil
	case "off", "no", "disabled":
		return false, nil
	}
	return data, nil
}
