package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module currently rejects mutations.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a fixed set of paused module names, typically loaded from
// configuration.
type StaticPauses map[string]bool

func NewStaticPauses(modules []string) StaticPauses {
	set := make(StaticPauses, len(modules))
	for _, module := range modules {
		module = strings.ToLower(strings.TrimSpace(module))
		if module != "" {
			set[module] = true
		}
	}
	return set
}

func (s StaticPauses) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	return s[strings.ToLower(module)]
}
