package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/trimmer"
)

// CodeUnknownMethod rejects calls to names nothing registered.
const CodeUnknownMethod = "E_UNKNOWN_METHOD"

// Args are the named arguments of a call.
type Args map[string]interface{}

// String returns a string argument.
func (a Args) String(key string) (string, error) {
	raw, ok := a[key]
	if !ok {
		return "", errors.Errorf("missing argument %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", errors.Errorf("argument %q must be a string, got %T", key, raw)
	}
	return s, nil
}

// Float returns a numeric argument as float64.
func (a Args) Float(key string) (float64, error) {
	raw, ok := a[key]
	if !ok {
		return 0, errors.Errorf("missing argument %q", key)
	}
	switch n := raw.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, errors.Errorf("argument %q must be a number, got %T", key, raw)
	}
}

// Method implements one registered operation. It must settle p before returning.
type Method func(ctx context.Context, args Args, p *Promise)

// Registry maps "Module.method" names to methods.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]Method
}

func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Method)}
}

// MethodName joins a module and method name.
func MethodName(module, method string) string {
	return module + "." + method
}

// Register adds module.method. Registering a name twice is an error.
func (r *Registry) Register(module, method string, fn Method) error {
	if module == "" || method == "" || strings.Contains(module, ".") {
		return errors.Errorf("invalid method name %q", MethodName(module, method))
	}
	name := MethodName(module, method)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.methods[name]; ok {
		return errors.Errorf("method %s already registered", name)
	}
	r.methods[name] = fn
	return nil
}

func (r *Registry) Lookup(name string) (Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.methods[name]
	return fn, ok
}

// Names lists the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs name synchronously and returns its settled promise.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) *Promise {
	p := NewPromise()
	fn, ok := r.Lookup(name)
	if !ok {
		p.Reject(CodeUnknownMethod, fmt.Sprintf("No method registered as %s", name), nil)
		return p
	}
	call(ctx, fn, args, p)
	return p
}

// call runs fn and guarantees p is settled afterwards, also when fn panics.
func call(ctx context.Context, fn Method, args Args, p *Promise) {
	defer func() {
		if rec := recover(); rec != nil {
			p.Reject(trimmer.CodeTrimFailed, fmt.Sprintf("Operation panicked: %v", rec), errors.Errorf("panic: %v", rec))
		}
		p.Reject(trimmer.CodeTrimFailed, "Operation returned without a result", nil)
	}()
	fn(ctx, args, p)
}
