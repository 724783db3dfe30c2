package sites

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownSite = errors.New("site desconhecido")

var registry = map[string]Site{}

func register(sites ...Site) {
	for _, s := range sites {
		registry[s.Name()] = s
	}
}

func init() {
	register(
		hidencloud{},
		alwaysdata(),
		heliohost(),
		webhostmost(),
		sprinthost{},
		zampto{},
		turnstileDemo{},
	)
}

// Lookup devolve o roteiro registrado com name.
func Lookup(name string) (Site, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, name)
	}
	return s, nil
}

// Names lista os sites registrados em ordem alfabética.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known diz se name tem roteiro.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}
