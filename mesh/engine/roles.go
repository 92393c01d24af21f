package engine

import "fmt"

// Role selects the discovery and announcement policy of a node. All roles
// share the registry, the failure detector and the payload framing; they
// differ in who broadcasts, who acknowledges, and where application payloads
// are accepted from.
type Role int

const (
	// RoleMesh forms a flat mesh: every node announces while alone and adopts
	// any sender it hears.
	RoleMesh Role = iota

	// RoleController waits for workers, acknowledges them and probes them.
	RoleController

	// RoleWorker announces until a controller acknowledges it, then talks to
	// that controller only.
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleMesh:
		return "mesh"
	case RoleController:
		return "controller"
	case RoleWorker:
		return "worker"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "mesh":
		return RoleMesh, nil
	case "controller":
		return RoleController, nil
	case "worker":
		return RoleWorker, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}
