package pruner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

// Client strips development-only files from the working tree before packaging
//go:generate mockgen -package=pruner -destination ./mock.go -source=client.go
type Client interface {
	Prune(ctx context.Context, dir string) (removed []string, err error)
}

// NewClient returns a new pruner.Client
func NewClient(config manifest.PruneConfig) (Client, error) {
	return &client{
		config: config,
	}, nil
}

type client struct {
	config manifest.PruneConfig
}

// Prune deletes all entries matching the configured name patterns, except patterns
// listed in keepRoot when the entry sits at the tree root. The .git directory is
// never touched, the commit-back stage still needs it.
func (c *client) Prune(ctx context.Context, dir string) (removed []string, err error) {

	removed = []string{}

	err = filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			// already removed as part of a pruned parent directory
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == dir {
			return nil
		}

		base := filepath.Base(path)
		if entry.IsDir() && base == ".git" {
			return filepath.SkipDir
		}

		matched, err := c.matchesPattern(base)
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		if relPath == base && contains(c.config.KeepRoot, base) {
			return nil
		}

		if err := os.RemoveAll(path); err != nil {
			return err
		}
		removed = append(removed, relPath)

		if entry.IsDir() {
			return filepath.SkipDir
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("Pruned %v development files from %v", len(removed), dir)

	return removed, nil
}

func (c *client) matchesPattern(base string) (bool, error) {

	for _, pattern := range c.config.Patterns {
		matched, err := filepath.Match(pattern, base)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}

	return false, nil
}

func contains(s []string, e string) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}
