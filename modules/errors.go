package modules

import (
	"errors"
	"fmt"
)

// ErrDuplicateModule is returned when a module id is registered twice.
var ErrDuplicateModule = errors.New("modules: duplicate module")

// ErrDependency is returned when a module declares a dependency or
// conflict on an id the registry does not know.
var ErrDependency = errors.New("modules: unresolved dependency")

// ErrInvalidModule is returned for definitions missing an id or an HTML
// function.
var ErrInvalidModule = errors.New("modules: invalid module definition")

// DuplicateModuleError names the id registered twice.
type DuplicateModuleError struct {
	ID string
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("modules: module %q already registered", e.ID)
}

func (e *DuplicateModuleError) Unwrap() error { return ErrDuplicateModule }

// DependencyError names a module whose declared relations reference an
// unknown id. It is a configuration error, raised at startup.
type DependencyError struct {
	Module   string
	Relation string // "dependency" or "conflict"
	Target   string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("modules: module %q declares %s on unknown module %q", e.Module, e.Relation, e.Target)
}

func (e *DependencyError) Unwrap() error { return ErrDependency }
