package gitcommit

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rs/zerolog/log"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

// Client commits the version-bumped files back to the default branch
//go:generate mockgen -package=gitcommit -destination ./mock.go -source=client.go
type Client interface {
	CommitAndPush(ctx context.Context, dir string, files []string, message string) (err error)
	CurrentRef(dir string) (ref string, err error)
	TagExists(dir, tag string) (exists bool, err error)
}

// NewClient returns a new gitcommit.Client committing as the configured bot identity
func NewClient(config manifest.RepoConfig, token string) (Client, error) {
	return &client{
		config: config,
		token:  token,
	}, nil
}

type client struct {
	config manifest.RepoConfig
	token  string
}

func (c *client) CommitAndPush(ctx context.Context, dir string, files []string, message string) (err error) {

	if len(files) == 0 {
		// substitution matched nothing anywhere, there is nothing to commit
		log.Warn().Msg("No version files changed, skipping commit")
		return nil
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("failed opening repository at %v: %w", dir, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return err
	}

	for _, file := range files {
		if _, err = worktree.Add(filepath.ToSlash(file)); err != nil {
			return fmt.Errorf("failed staging %v: %w", file, err)
		}
	}

	commit, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.config.BotName,
			Email: c.config.BotEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return err
	}

	log.Info().Msgf("Committed %v files as %v (%v)", len(files), c.config.BotName, commit.String()[:7])

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%v:refs/heads/%v", c.config.Branch, c.config.Branch))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth: &githttp.BasicAuth{
			Username: "x-access-token",
			Password: c.token,
		},
	})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}

	return err
}

func (c *client) CurrentRef(dir string) (ref string, err error) {

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", err
	}

	return head.Name().String(), nil
}

func (c *client) TagExists(dir, tag string) (exists bool, err error) {

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return false, err
	}

	_, err = repo.Reference(plumbing.NewTagReferenceName(tag), true)
	if err == plumbing.ErrReferenceNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}
