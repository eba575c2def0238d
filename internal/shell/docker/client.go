// Package docker is the container engine client for pushdock.
//
// It wraps the Docker SDK behind the small set of operations the deploy
// pipeline needs: build an image from a working copy, probe and mutate an
// image for secrets tooling, and replace a running container.
package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/artpar/pushdock/internal/core/secrets"
)

// Client is the container engine contract consumed by the deploy engine.
type Client interface {
	// BuildImage builds dir into an image tagged tag, using the named
	// dockerfile relative to dir.
	BuildImage(ctx context.Context, dir, dockerfile, tag string) error

	// HasBinary reports whether the image contains the named executable.
	HasBinary(ctx context.Context, imageTag, binary string) (bool, error)

	// InstallSecretsClient layers the secrets client tooling on top of
	// imageTag, re-tagging the result under the same tag.
	InstallSecretsClient(ctx context.Context, imageTag string) error

	// ReplaceContainer force-removes any container with spec.Name and
	// starts a fresh one from spec.
	ReplaceContainer(ctx context.Context, spec ContainerSpec) error

	// EnsureNetwork creates the named bridge network if it is missing.
	EnsureNetwork(ctx context.Context, name string) error

	// Ping checks daemon reachability.
	Ping(ctx context.Context) error

	// Close releases client resources.
	Close() error
}

// ContainerSpec describes the single container a site target runs as.
type ContainerSpec struct {
	Name     string
	Image    string
	HostPort int
	Network  string

	// Injection optionally overrides the container entrypoint and
	// environment per the secret injection plan.
	Injection secrets.Plan
}

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerClient implements Client using the Docker SDK.
type DockerClient struct {
	cli *client.Client
}

var _ Client = (*DockerClient)(nil)

// NewDockerClient creates a Docker client. If host is empty, the default
// Docker host from the environment is used.
func NewDockerClient(host string) (*DockerClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewEngineError("NewDockerClient", "", "failed to create client", ErrConnectionFailed)
	}
	return &DockerClient{cli: cli}, nil
}

// Ping checks if the Docker daemon is reachable.
func (d *DockerClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewEngineError("Ping", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// EnsureNetwork creates the named bridge network if it does not exist.
func (d *DockerClient) EnsureNetwork(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	if _, err := d.cli.NetworkInspect(ctx, name, network.InspectOptions{}); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return NewEngineError("EnsureNetwork", name, fmt.Sprintf("inspect network: %v", err), err)
	}
	if _, err := d.cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"}); err != nil {
		return NewEngineError("EnsureNetwork", name, fmt.Sprintf("create network: %v", err), err)
	}
	return nil
}
