package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
)

// installDockerfile layers the secrets client CLI on top of an existing
// image using the base image's own package manager. Images not based on
// Alpine fail this build, which callers treat as "cannot add tooling".
const installDockerfile = `FROM %s
RUN apk add --no-cache bash curl && \
    curl -1sLf https://artifacts-cli.infisical.com/setup.sh | bash && \
    apk add infisical
`

// HasBinary reports whether imageTag contains the named executable on its
// PATH, by running a throwaway container that probes with the shell.
func (d *DockerClient) HasBinary(ctx context.Context, imageTag, binary string) (bool, error) {
	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:      imageTag,
		Entrypoint: []string{"sh", "-c", "command -v " + binary},
	}, nil, nil, nil, "")
	if err != nil {
		return false, NewEngineError("HasBinary", imageTag, fmt.Sprintf("create probe container: %v", err), ErrProbeFailed)
	}
	defer func() {
		_ = d.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return false, NewEngineError("HasBinary", imageTag, fmt.Sprintf("start probe container: %v", err), ErrProbeFailed)
	}

	statusCh, errCh := d.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return false, NewEngineError("HasBinary", imageTag, fmt.Sprintf("wait for probe: %v", err), ErrProbeFailed)
	case status := <-statusCh:
		return status.StatusCode == 0, nil
	case <-ctx.Done():
		return false, NewEngineError("HasBinary", imageTag, "probe cancelled", ctx.Err())
	}
}

// InstallSecretsClient rebuilds imageTag with the secrets client layered
// on top, keeping the same tag. The build context is a single in-memory
// Dockerfile; no working copy is involved.
func (d *DockerClient) InstallSecretsClient(ctx context.Context, imageTag string) error {
	content := fmt.Sprintf(installDockerfile, imageTag)
	buildCtx, err := singleFileTar("Dockerfile", []byte(content))
	if err != nil {
		return NewEngineError("InstallSecretsClient", imageTag, fmt.Sprintf("create build context: %v", err), ErrBuildFailed)
	}

	return d.runBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{imageTag},
		Dockerfile:  "Dockerfile",
		Remove:      true,
		ForceRemove: true,
	}, imageTag)
}

// singleFileTar wraps one file into a tar stream suitable as a build context.
func singleFileTar(name string, content []byte) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(content)),
	}); err != nil {
		return nil, err
	}
	if _, err := tw.Write(content); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
