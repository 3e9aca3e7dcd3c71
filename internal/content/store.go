package content

import "context"

// Store is the durable byte storage contract for uploaded documents. Put
// returns an opaque reference; callers persist the reference, never a path.
// Get returns sentinel.ErrNotFound (wrapped) for unknown references. Delete is
// the compensating action for every failure path after a Put: it must remove
// the blob, not best-effort skip it.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}
