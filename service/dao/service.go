package dao

import (
	"context"
)

// Service is a generic persistence contract shared by every store in the
// module (checkpoints, approval requests, decisions).
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context) ([]*T, error)
}
