package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/archive"
)

// BuildImage builds the working copy at dir into an image tagged tag.
// dockerfile names the build descriptor relative to dir: "Dockerfile" for
// repo-owned descriptors, the generated name for templated builds.
//
// The daemon only tags the image when the whole build succeeds, so a
// failed build never leaves a partial image under the tag.
func (d *DockerClient) BuildImage(ctx context.Context, dir, dockerfile, tag string) error {
	buildCtx, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return NewEngineError("BuildImage", tag, fmt.Sprintf("create build context: %v", err), ErrBuildFailed)
	}
	defer buildCtx.Close()

	return d.runBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  dockerfile,
		Remove:      true,
		ForceRemove: true,
	}, tag)
}

// runBuild streams a build to the daemon and scans the JSON message stream
// for errors. The stream is consumed fully even on success; the daemon
// reports failures mid-stream, not via the initial response.
func (d *DockerClient) runBuild(ctx context.Context, buildCtx io.Reader, opts types.ImageBuildOptions, tag string) error {
	resp, err := d.cli.ImageBuild(ctx, buildCtx, opts)
	if err != nil {
		return NewEngineError("BuildImage", tag, fmt.Sprintf("image build: %v", err), ErrBuildFailed)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var msg buildMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return NewEngineError("BuildImage", tag, fmt.Sprintf("decode build output: %v", err), ErrBuildFailed)
		}
		if errMsg := msg.errorMessage(); errMsg != "" {
			return NewEngineError("BuildImage", tag, errMsg, ErrBuildFailed)
		}
	}
}

// buildMessage is one JSON document from the daemon's build stream.
type buildMessage struct {
	Stream      string `json:"stream"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

func (m buildMessage) errorMessage() string {
	if s := strings.TrimSpace(m.Error); s != "" {
		return s
	}
	return strings.TrimSpace(m.ErrorDetail.Message)
}
