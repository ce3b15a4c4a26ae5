// SPDX-License-Identifier: Apache-2.0

// Package supervisor owns the worker fleet: one isolated container per
// logging session or listener, created with resource caps and identifying
// labels, fed by a bind-mounted credential bundle, and reaped when it dies.
//
// The interface to the container runtime is deliberately narrow: create with
// labels, start, inspect, stop, remove, list. Any runtime satisfying that
// contract can replace Docker.
package supervisor

import (
	"context"
	"errors"
	"time"
)

// ErrContainerNotFound is returned by runtime operations targeting a
// container that does not exist.
var ErrContainerNotFound = errors.New("container not found")

// ErrContainerLaunchFailed wraps any failure between row reservation and a
// running container.
var ErrContainerLaunchFailed = errors.New("container launch failed")

// ContainerSpec describes one worker container to create.
type ContainerSpec struct {
	Name   string
	Image  string
	Env    []string
	Labels map[string]string

	// BundleHostPath is bind-mounted read-only at the bundle mount point
	// inside the container.
	BundleHostPath string

	Network string

	// Resource caps. Zero values fall back to the runtime defaults.
	Memory     int64
	MemorySwap int64
	NanoCPUs   int64
	PidsLimit  int64
}

// ContainerInfo is the runtime's view of one container.
type ContainerInfo struct {
	ID       string
	Name     string
	Running  bool
	ExitCode int
	Status   string
	Labels   map[string]string
}

// ContainerRuntime is the narrow port the supervisor drives.
type ContainerRuntime interface {
	// CreateAndStart creates the container and starts it, returning the
	// container id.
	CreateAndStart(ctx context.Context, spec ContainerSpec) (string, error)

	// Inspect reports the container state. ErrContainerNotFound when absent.
	Inspect(ctx context.Context, nameOrID string) (ContainerInfo, error)

	// Stop signals SIGTERM and waits up to grace before killing.
	// ErrContainerNotFound when absent.
	Stop(ctx context.Context, nameOrID string, grace time.Duration) error

	// Remove force-removes the container. ErrContainerNotFound when absent.
	Remove(ctx context.Context, nameOrID string) error

	// List returns containers matching all given labels, running or not.
	List(ctx context.Context, labels map[string]string) ([]ContainerInfo, error)
}
