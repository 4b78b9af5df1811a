package pool

import "errors"

var (
	// ErrPoolClosed is returned when submitting to a released pool.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrPoolNotFound is returned by Manager lookups for unknown pool names.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrPoolAlreadyExists is returned when registering a name twice.
	ErrPoolAlreadyExists = errors.New("pool already exists")
	// ErrPoolOverload 非阻塞池已满。
	ErrPoolOverload = errors.New("pool is overloaded")
)
