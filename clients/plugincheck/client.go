package plugincheck

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/wprelease/wp-release-builder/clients/obfuscation"
	"github.com/wprelease/wp-release-builder/pkg/contracts"
	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

// Client runs the external plugin validation command against the pruned tree
//go:generate mockgen -package=plugincheck -destination ./mock.go -source=client.go
type Client interface {
	Check(ctx context.Context, stageName, dir string) (err error)
}

// NewClient returns a new plugincheck.Client streaming checker output to tailLogsChannel
func NewClient(config manifest.CheckConfig, obfuscationClient obfuscation.Client, tailLogsChannel chan contracts.TailLogLine) (Client, error) {
	return &client{
		config:            config,
		obfuscationClient: obfuscationClient,
		tailLogsChannel:   tailLogsChannel,
	}, nil
}

type client struct {
	config            manifest.CheckConfig
	obfuscationClient obfuscation.Client
	tailLogsChannel   chan contracts.TailLogLine
}

func (c *client) Check(ctx context.Context, stageName, dir string) (err error) {

	args := c.commandArgs(dir)

	log.Info().Msgf("[%v] Running command '%v %v'", stageName, c.config.Command, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, c.config.Command, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err = cmd.Start(); err != nil {
		return err
	}

	// tail stdout and stderr line by line
	var lineNumber int64
	g := new(errgroup.Group)
	g.Go(func() error {
		return c.tailPipe(stageName, "stdout", &lineNumber, bufio.NewScanner(stdout))
	})
	g.Go(func() error {
		return c.tailPipe(stageName, "stderr", &lineNumber, bufio.NewScanner(stderr))
	})

	if err = g.Wait(); err != nil {
		_ = cmd.Wait()
		return err
	}

	if err = cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("%v exited with code %v", c.config.Command, exitErr.ExitCode())
		}
		return err
	}

	return nil
}

func (c *client) commandArgs(dir string) (args []string) {

	args = append(args, c.config.Args...)
	args = append(args, dir)
	if len(c.config.ExcludeDirectories) > 0 {
		args = append(args, "--exclude-directories="+strings.Join(c.config.ExcludeDirectories, ","))
	}
	if len(c.config.ExcludeChecks) > 0 {
		args = append(args, "--exclude-checks="+strings.Join(c.config.ExcludeChecks, ","))
	}

	return args
}

func (c *client) tailPipe(stageName, streamType string, lineNumber *int64, scanner *bufio.Scanner) error {

	for scanner.Scan() {
		logLine := contracts.ReleaseLogLine{
			LineNumber: int(atomic.AddInt64(lineNumber, 1)),
			Timestamp:  time.Now().UTC(),
			StreamType: streamType,
			Text:       c.obfuscationClient.Obfuscate(scanner.Text()),
		}

		c.tailLogsChannel <- contracts.TailLogLine{
			Step:    stageName,
			LogLine: &logLine,
		}
	}

	return scanner.Err()
}
