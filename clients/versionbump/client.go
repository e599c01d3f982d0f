package versionbump

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

// Client rewrites the version literals in the configured target files
//go:generate mockgen -package=versionbump -destination ./mock.go -source=client.go
type Client interface {
	Apply(ctx context.Context, dir, version string) (changed []string, err error)
}

// NewClient returns a new versionbump.Client
func NewClient(config manifest.VersionConfig) (Client, error) {
	return &client{
		config: config,
	}, nil
}

type client struct {
	config manifest.VersionConfig
}

// Apply runs each substitution target against its file. A target whose literal
// pattern matches nothing leaves the file untouched and is reported as a warning,
// not an error; only files that actually changed are returned.
func (c *client) Apply(ctx context.Context, dir, version string) (changed []string, err error) {

	changed = []string{}

	for _, target := range c.config.Targets {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		path := filepath.Join(dir, target.File)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed reading version target %v: %w", target.File, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		pattern, replacement, err := substitutionFor(target, version)
		if err != nil {
			return nil, err
		}

		updated := pattern.ReplaceAll(data, replacement)
		if string(updated) == string(data) {
			log.Warn().Msgf("Version pattern %v matched nothing in %v, leaving file unchanged", target.Type, target.File)
			continue
		}

		if err := os.WriteFile(path, updated, info.Mode()); err != nil {
			return nil, err
		}

		log.Info().Msgf("Set version %v in %v", version, target.File)

		if !contains(changed, target.File) {
			changed = append(changed, target.File)
		}
	}

	return changed, nil
}

// substitutionFor builds the regex and replacement for a target; the patterns are
// deliberate fixed literals, a reformatted target file makes them match nothing
func substitutionFor(target manifest.VersionTarget, version string) (pattern *regexp.Regexp, replacement []byte, err error) {

	switch target.Type {
	case manifest.TargetTypeConstant:
		pattern, err = regexp.Compile(`(const\s+` + regexp.QuoteMeta(target.Constant) + `\s*=\s*')[^']*(';)`)
	case manifest.TargetTypePluginHeader:
		pattern, err = regexp.Compile(`(?m)^(\s*\*\s*Version:\s*)\S.*$`)
	case manifest.TargetTypeStableTag:
		pattern, err = regexp.Compile(`(?m)^(Stable tag:\s*)\S.*$`)
	default:
		return nil, nil, fmt.Errorf("unknown version target type %v", target.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	switch target.Type {
	case manifest.TargetTypeConstant:
		replacement = []byte("${1}" + version + "${2}")
	default:
		replacement = []byte("${1}" + version)
	}

	return pattern, replacement, nil
}

func contains(s []string, e string) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}
