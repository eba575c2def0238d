// Package dockerfile renders the build descriptor used for sites that
// supply no Dockerfile of their own.
//
// The template carries a closed set of placeholders. Rendering substitutes
// every one of them and rejects templates containing tokens outside that
// set, so a typo in a customized template fails loudly instead of shipping
// a literal "{{TYPO}}" into an image.
package dockerfile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/artpar/pushdock/internal/core/domain"
)

// GeneratedName is the filename the rendered descriptor is written under,
// beside the working copy. Distinct from "Dockerfile" so a later push that
// adds a repo-owned Dockerfile is never shadowed by a stale generated one.
const GeneratedName = "Dockerfile.pushdock"

// DefaultTemplate builds a Node static site and serves it on the fixed
// container port.
const DefaultTemplate = `FROM node:{{NODE_VERSION}}-alpine
WORKDIR /app
COPY . .
RUN {{BUILD_COMMAND}}
EXPOSE 3000
CMD ["sh", "-c", "{{SERVE_COMMAND}}"]
`

// Placeholder names the substitution points a template may use.
type Placeholder string

const (
	PlaceholderNodeVersion  Placeholder = "NODE_VERSION"
	PlaceholderBuildCommand Placeholder = "BUILD_COMMAND"
	PlaceholderServeCommand Placeholder = "SERVE_COMMAND"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Z_]+)\}\}`)

// Params are the values substituted into a template. Zero values fall back
// to the domain defaults.
type Params struct {
	NodeVersion  string
	BuildCommand string
	ServeCommand string
}

// ParamsFor derives render parameters from a site target's build settings.
func ParamsFor(site domain.SiteTarget) Params {
	return Params{
		NodeVersion:  site.NodeVersion,
		BuildCommand: site.BuildCommand,
		ServeCommand: site.ServeCommand,
	}
}

func (p Params) nodeVersion() string {
	if p.NodeVersion == "" {
		return domain.DefaultNodeVersion
	}
	return p.NodeVersion
}

func (p Params) buildCommand() string {
	if p.BuildCommand == "" {
		return domain.DefaultBuildCommand
	}
	return p.BuildCommand
}

// ServeOrDefault returns the serve command, falling back to the static
// default. Exported because the secret injector resolves the container
// start command through the same rule.
func (p Params) ServeOrDefault() string {
	if p.ServeCommand == "" {
		return domain.DefaultServeCommand
	}
	return p.ServeCommand
}

// Render substitutes params into template and validates that no unknown
// placeholder tokens remain.
func Render(template string, params Params) (string, error) {
	replacer := strings.NewReplacer(
		"{{"+string(PlaceholderNodeVersion)+"}}", params.nodeVersion(),
		"{{"+string(PlaceholderBuildCommand)+"}}", params.buildCommand(),
		"{{"+string(PlaceholderServeCommand)+"}}", params.ServeOrDefault(),
	)
	rendered := replacer.Replace(template)

	if m := placeholderPattern.FindStringSubmatch(rendered); m != nil {
		return "", fmt.Errorf("template contains unknown placeholder %q", m[1])
	}
	return rendered, nil
}

// RenderDefault renders the built-in template for a site target.
func RenderDefault(site domain.SiteTarget) (string, error) {
	return Render(DefaultTemplate, ParamsFor(site))
}
