package docker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/artpar/pushdock/internal/core/domain"
)

// ReplaceContainer force-removes any existing container named spec.Name
// and starts a fresh one from spec. Removal of a missing container is not
// an error; replacement is idempotent.
//
// There is no rollback: once the old container is gone, a failed start
// leaves the target down until the next deploy. Accepted limitation in
// exchange for a fixed container name and port.
func (d *DockerClient) ReplaceContainer(ctx context.Context, spec ContainerSpec) error {
	if err := d.removeIfExists(ctx, spec.Name); err != nil {
		return err
	}

	internalPort, err := nat.NewPort("tcp", strconv.Itoa(domain.ContainerPort))
	if err != nil {
		return NewEngineError("ReplaceContainer", spec.Name, fmt.Sprintf("invalid container port: %v", err), ErrStartFailed)
	}

	config := &container.Config{
		Image:        spec.Image,
		ExposedPorts: nat.PortSet{internalPort: struct{}{}},
	}
	if spec.Injection.Override() {
		config.Entrypoint = spec.Injection.Entrypoint
		config.Env = spec.Injection.Env
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			internalPort: []nat.PortBinding{{HostPort: strconv.Itoa(spec.HostPort)}},
		},
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}

	var networkConfig *network.NetworkingConfig
	if spec.Network != "" {
		networkConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.Network: {},
			},
		}
	}

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, spec.Name)
	if err != nil {
		return NewEngineError("ReplaceContainer", spec.Name, fmt.Sprintf("create container: %v", err), ErrStartFailed)
	}
	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return NewEngineError("ReplaceContainer", spec.Name, fmt.Sprintf("start container: %v", err), ErrStartFailed)
	}
	return nil
}

func (d *DockerClient) removeIfExists(ctx context.Context, name string) error {
	err := d.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !client.IsErrNotFound(err) {
		return NewEngineError("ReplaceContainer", name, fmt.Sprintf("remove existing container: %v", err), ErrStartFailed)
	}
	return nil
}
