package plugincheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wprelease/wp-release-builder/clients/obfuscation"
	"github.com/wprelease/wp-release-builder/pkg/contracts"
	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

func getClientAndChannel(t *testing.T, config manifest.CheckConfig) (Client, chan contracts.TailLogLine) {

	obfuscationClient, err := obfuscation.NewClient()
	assert.Nil(t, err)

	tailLogsChannel := make(chan contracts.TailLogLine, 100)

	client, err := NewClient(config, obfuscationClient, tailLogsChannel)
	assert.Nil(t, err)

	return client, tailLogsChannel
}

func drainLogLines(tailLogsChannel chan contracts.TailLogLine) (lines []contracts.TailLogLine) {
	for {
		select {
		case line := <-tailLogsChannel:
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

func TestCheck(t *testing.T) {

	t.Run("SucceedsForZeroExitCode", func(t *testing.T) {

		client, _ := getClientAndChannel(t, manifest.CheckConfig{Command: "true"})

		// act
		err := client.Check(context.Background(), "plugin-check", t.TempDir())

		assert.Nil(t, err)
	})

	t.Run("ReturnsExitCodeErrorForNonZeroExitCode", func(t *testing.T) {

		client, _ := getClientAndChannel(t, manifest.CheckConfig{Command: "false"})

		// act
		err := client.Check(context.Background(), "plugin-check", t.TempDir())

		assert.NotNil(t, err)
		assert.Equal(t, "false exited with code 1", err.Error())
	})

	t.Run("ReturnsErrorForMissingCommand", func(t *testing.T) {

		client, _ := getClientAndChannel(t, manifest.CheckConfig{Command: "does-not-exist-anywhere"})

		// act
		err := client.Check(context.Background(), "plugin-check", t.TempDir())

		assert.NotNil(t, err)
	})

	t.Run("StreamsCommandOutputToTailLogsChannel", func(t *testing.T) {

		client, tailLogsChannel := getClientAndChannel(t, manifest.CheckConfig{
			Command: "echo",
			Args:    []string{"checking plugin in"},
		})

		// act
		err := client.Check(context.Background(), "plugin-check", t.TempDir())

		assert.Nil(t, err)
		lines := drainLogLines(tailLogsChannel)
		assert.Equal(t, 1, len(lines))
		assert.Equal(t, "plugin-check", lines[0].Step)
		assert.Contains(t, lines[0].LogLine.Text, "checking plugin in")
		assert.Equal(t, "stdout", lines[0].LogLine.StreamType)
	})
}

func TestCommandArgs(t *testing.T) {

	t.Run("AppendsDirAfterConfiguredArgs", func(t *testing.T) {

		c := &client{config: manifest.CheckConfig{
			Command: "plugin-check",
			Args:    []string{"--format=json"},
		}}

		// act
		args := c.commandArgs("/work/checkout")

		assert.Equal(t, []string{"--format=json", "/work/checkout"}, args)
	})

	t.Run("AddsExcludeDirectoriesFlag", func(t *testing.T) {

		c := &client{config: manifest.CheckConfig{
			Command:            "plugin-check",
			ExcludeDirectories: []string{"vendor", "node_modules"},
		}}

		// act
		args := c.commandArgs("/work/checkout")

		assert.Equal(t, []string{"/work/checkout", "--exclude-directories=vendor,node_modules"}, args)
	})

	t.Run("AddsExcludeChecksFlag", func(t *testing.T) {

		c := &client{config: manifest.CheckConfig{
			Command:       "plugin-check",
			ExcludeChecks: []string{"file_type"},
		}}

		// act
		args := c.commandArgs("/work/checkout")

		assert.Equal(t, []string{"/work/checkout", "--exclude-checks=file_type"}, args)
	})
}
