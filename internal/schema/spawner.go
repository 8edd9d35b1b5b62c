package schema

import "context"

// TaskSpawner launches detached background work. Implementations never
// block the caller and only log task failures.
type TaskSpawner interface {
	Spawn(name string, task func(ctx context.Context) error)
}
