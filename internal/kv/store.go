// Package kv holds the key-value backends behind the durable store. Values
// are opaque JSON blobs; a missing key is reported with ok == false rather
// than an error.
package kv

import (
	"context"
	"errors"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	Set(ctx context.Context, key string, value []byte) error

	Remove(ctx context.Context, key string) error
}

var ErrEmptyKey = errors.New("kv: key must not be empty")
