// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-units"

	"github.com/solanagram/solanagram/internal/logger"
)

// Default resource caps for worker containers: loggers are lightweight, so
// the soft caps sit well under the per-user maximums.
var (
	defaultMemory, _     = units.RAMInBytes("128m")
	defaultMemorySwap, _ = units.RAMInBytes("256m")
)

const (
	defaultNanoCPUs  = 250_000_000 // 0.25 CPU
	defaultPidsLimit = 50

	// bundleMountPoint is where the bundle directory appears inside the
	// container, read-only.
	bundleMountPoint = "/app/config"
)

// dockerRuntime implements ContainerRuntime over the Docker Engine API.
type dockerRuntime struct {
	cli *client.Client
	log *logger.Logger
}

// NewDockerRuntime connects to the Docker daemon. host overrides the
// endpoint; empty uses the environment convention (DOCKER_HOST or the
// default unix socket).
func NewDockerRuntime(host string, log *logger.Logger) (ContainerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating docker client: %w", err)
	}

	return &dockerRuntime{cli: cli, log: log}, nil
}

// CreateAndStart implements ContainerRuntime. A leftover container with the
// same name (e.g. from a crashed orchestrator) is force-removed first so the
// deterministic name stays usable.
func (d *dockerRuntime) CreateAndStart(ctx context.Context, spec ContainerSpec) (string, error) {
	if err := d.Remove(ctx, spec.Name); err != nil && err != ErrContainerNotFound {
		return "", err
	}

	memory := spec.Memory
	if memory == 0 {
		memory = defaultMemory
	}
	memorySwap := spec.MemorySwap
	if memorySwap == 0 {
		memorySwap = defaultMemorySwap
	}
	nanoCPUs := spec.NanoCPUs
	if nanoCPUs == 0 {
		nanoCPUs = defaultNanoCPUs
	}
	pidsLimit := spec.PidsLimit
	if pidsLimit == 0 {
		pidsLimit = defaultPidsLimit
	}

	hostConfig := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
		Resources: container.Resources{
			Memory:     memory,
			MemorySwap: memorySwap,
			NanoCPUs:   nanoCPUs,
			PidsLimit:  &pidsLimit,
		},
	}
	if spec.BundleHostPath != "" {
		hostConfig.Binds = []string{spec.BundleHostPath + ":" + bundleMountPoint + ":ro"}
	}
	if spec.Network != "" {
		hostConfig.NetworkMode = container.NetworkMode(spec.Network)
	}

	created, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:  spec.Image,
		Env:    spec.Env,
		Labels: spec.Labels,
	}, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}

	if err := d.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		// Do not leave a created-but-dead container behind the name.
		_ = d.cli.ContainerRemove(ctx, created.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("container start: %w", err)
	}

	d.log.Info().Str("name", spec.Name).Str("id", created.ID).Msg("worker container started")
	return created.ID, nil
}

// Inspect implements ContainerRuntime.
func (d *dockerRuntime) Inspect(ctx context.Context, nameOrID string) (ContainerInfo, error) {
	inspected, err := d.cli.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ContainerInfo{}, ErrContainerNotFound
		}
		return ContainerInfo{}, fmt.Errorf("container inspect: %w", err)
	}

	info := ContainerInfo{
		ID:   inspected.ID,
		Name: strings.TrimPrefix(inspected.Name, "/"),
	}
	if inspected.Config != nil {
		info.Labels = inspected.Config.Labels
	}
	if inspected.State != nil {
		info.Running = inspected.State.Running
		info.ExitCode = inspected.State.ExitCode
		info.Status = inspected.State.Status
	}
	return info, nil
}

// Stop implements ContainerRuntime.
func (d *dockerRuntime) Stop(ctx context.Context, nameOrID string, grace time.Duration) error {
	seconds := int(grace.Seconds())
	err := d.cli.ContainerStop(ctx, nameOrID, container.StopOptions{Timeout: &seconds})
	if err != nil {
		if client.IsErrNotFound(err) {
			return ErrContainerNotFound
		}
		return fmt.Errorf("container stop: %w", err)
	}
	return nil
}

// Remove implements ContainerRuntime.
func (d *dockerRuntime) Remove(ctx context.Context, nameOrID string) error {
	err := d.cli.ContainerRemove(ctx, nameOrID, container.RemoveOptions{Force: true})
	if err != nil {
		if client.IsErrNotFound(err) {
			return ErrContainerNotFound
		}
		return fmt.Errorf("container remove: %w", err)
	}
	return nil
}

// List implements ContainerRuntime.
func (d *dockerRuntime) List(ctx context.Context, labels map[string]string) ([]ContainerInfo, error) {
	args := filters.NewArgs()
	for key, value := range labels {
		args.Add("label", key+"="+value)
	}

	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	infos := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		infos = append(infos, ContainerInfo{
			ID:      c.ID,
			Name:    name,
			Running: c.State == "running",
			Status:  c.Status,
			Labels:  c.Labels,
		})
	}
	return infos, nil
}
