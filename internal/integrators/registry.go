package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/recore/internal/dynamo"
)

// Default is the integrator used when none is named.
const Default = "rk4"

var factories = map[string]func() dynamo.Integrator{
	"rk4":   func() dynamo.Integrator { return NewRK4() },
	"euler": func() dynamo.Integrator { return NewEuler() },
}

// New returns a fresh integrator by name. An empty name selects RK4.
func New(name string) (dynamo.Integrator, error) {
	if name == "" {
		name = Default
	}
	fn, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (available: %v)", name, Names())
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
