package releaser

import (
	"fmt"
	"os"

	"github.com/logrusorgru/aurora"
	"github.com/olekukonko/tablewriter"

	"github.com/wprelease/wp-release-builder/pkg/contracts"
)

func contains(s []string, e string) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}

// HandleExit exits non-zero unless all stages succeeded
func HandleExit(releaseLogSteps []*contracts.ReleaseLogStep) {

	if !contracts.HasSucceededStatus(releaseLogSteps) {
		os.Exit(1)
	}

	os.Exit(0)
}

// RenderStats prints a summary table with per-stage durations and statuses
func RenderStats(releaseLogSteps []*contracts.ReleaseLogStep) {

	data := make([][]string, 0)

	durationTotal := 0.0
	statusTotal := contracts.GetAggregatedStatus(releaseLogSteps)

	for _, s := range releaseLogSteps {

		stage := s.Step
		stageDuration := fmt.Sprintf("%.0f", s.Duration.Seconds())

		durationTotal += s.Duration.Seconds()

		data = append(data, []string{
			stage,
			stageDuration,
			colorizeStatus(s.Status),
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Stage", "Duration (s)", "Status"})
	table.SetFooter([]string{"Total", fmt.Sprintf("%.0f", durationTotal), colorizeStatus(statusTotal)})
	table.SetBorder(false)
	table.AppendBulk(data)
	table.Render()
}

func colorizeStatus(status contracts.LogStatus) string {

	switch status {
	case contracts.LogStatusSucceeded:
		return aurora.Green(string(status)).String()
	case contracts.LogStatusFailed:
		return aurora.Red(string(status)).String()
	case contracts.LogStatusCanceled:
		return aurora.Yellow(string(status)).String()
	default:
		return aurora.Gray(12, string(status)).String()
	}
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}
