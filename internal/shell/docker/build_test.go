package docker

import (
	"archive/tar"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage_ErrorMessage(t *testing.T) {
	assert.Empty(t, buildMessage{Stream: "Step 1/5 : FROM node:22-alpine\n"}.errorMessage())

	m := buildMessage{Error: "The command '/bin/sh -c npm run build' returned a non-zero code: 1"}
	assert.Contains(t, m.errorMessage(), "non-zero code: 1")

	var detail buildMessage
	detail.ErrorDetail.Message = "no such file or directory"
	assert.Equal(t, "no such file or directory", detail.errorMessage())
}

func TestSingleFileTar(t *testing.T) {
	content := []byte("FROM site-prod:latest\nRUN apk add infisical\n")
	buf, err := singleFileTar("Dockerfile", content)
	require.NoError(t, err)

	tr := tar.NewReader(buf)
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "Dockerfile", hdr.Name)

	got, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = tr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestInstallDockerfile_TargetsBaseImage(t *testing.T) {
	// The mutation layer must build FROM the freshly built image so the
	// re-tag keeps the site content intact.
	assert.Contains(t, installDockerfile, "FROM %s")
	assert.Contains(t, installDockerfile, "apk add")
}
