package contracts

import (
	"time"
)

// LogStatus is the status of a stage in the release log
type LogStatus string

const (
	LogStatusUnknown   LogStatus = ""
	LogStatusPending   LogStatus = "PENDING"
	LogStatusRunning   LogStatus = "RUNNING"
	LogStatusSucceeded LogStatus = "SUCCEEDED"
	LogStatusFailed    LogStatus = "FAILED"
	LogStatusSkipped   LogStatus = "SKIPPED"
	LogStatusCanceled  LogStatus = "CANCELED"
)

// ReleaseLogLine is a line of output logged during a stage
type ReleaseLogLine struct {
	LineNumber int       `json:"line"`
	Timestamp  time.Time `json:"timestamp"`
	StreamType string    `json:"streamType"`
	Text       string    `json:"text"`
}

// ReleaseLogStep is the exhaustive log for a single stage of the release pipeline
type ReleaseLogStep struct {
	Step         string           `json:"step"`
	LogLines     []ReleaseLogLine `json:"logLines"`
	Duration     time.Duration    `json:"duration"`
	ExitCode     int              `json:"exitCode"`
	Status       LogStatus        `json:"status"`
	AutoInjected bool             `json:"autoInjected,omitempty"`
}

// TailLogLine is used to transfer status updates and log lines for a stage while it runs
type TailLogLine struct {
	Step         string
	LogLine      *ReleaseLogLine
	Duration     *time.Duration
	ExitCode     *int
	Status       *LogStatus
	AutoInjected *bool
}

// IsFinalStatus returns true for statuses a stage can no longer leave
func IsFinalStatus(status LogStatus) bool {
	switch status {
	case LogStatusSucceeded,
		LogStatusFailed,
		LogStatusSkipped,
		LogStatusCanceled:
		return true
	}

	return false
}

// GetAggregatedStatus returns the status for the whole release based on the individual stage statuses
func GetAggregatedStatus(steps []*ReleaseLogStep) LogStatus {

	aggregatedStatus := LogStatusSucceeded
	for _, s := range steps {
		switch s.Status {
		case LogStatusCanceled:
			return LogStatusCanceled
		case LogStatusFailed:
			aggregatedStatus = LogStatusFailed
		}
	}

	return aggregatedStatus
}

// HasSucceededStatus returns true if aggregating the stage statuses results in succeeded
func HasSucceededStatus(steps []*ReleaseLogStep) bool {
	return GetAggregatedStatus(steps) == LogStatusSucceeded
}

// HasUnknownStatus returns true if any stage has not reached a final status
func HasUnknownStatus(steps []*ReleaseLogStep) bool {
	for _, s := range steps {
		if !IsFinalStatus(s.Status) {
			return true
		}
	}

	return false
}
