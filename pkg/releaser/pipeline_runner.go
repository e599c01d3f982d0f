package releaser

import (
	"context"
	"fmt"
	"strings"
	"time"

	foundation "github.com/estafette/estafette-foundation"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"

	"github.com/wprelease/wp-release-builder/clients/archive"
	"github.com/wprelease/wp-release-builder/clients/cache"
	"github.com/wprelease/wp-release-builder/clients/gitcommit"
	"github.com/wprelease/wp-release-builder/clients/ghrelease"
	"github.com/wprelease/wp-release-builder/clients/plugincheck"
	"github.com/wprelease/wp-release-builder/clients/pruner"
	"github.com/wprelease/wp-release-builder/clients/versionbump"
	"github.com/wprelease/wp-release-builder/pkg/contracts"
	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

// PipelineRunner is the interface for running the release pipeline stages
type PipelineRunner interface {
	RunStage(ctx context.Context, dir string, envvars map[string]string, stage manifest.ReleaseStage) (err error)
	RunStages(ctx context.Context, stages []*manifest.ReleaseStage, dir string, envvars map[string]string) (releaseLogSteps []*contracts.ReleaseLogStep, err error)
	StopPipelineOnCancellation(ctx context.Context)
	EnableReleaserInfoStageInjection()
}

// NewPipelineRunner returns a new PipelineRunner
func NewPipelineRunner(envvarHelper EnvvarHelper, whenEvaluator WhenEvaluator, cacheClient cache.Client, prunerClient pruner.Client, plugincheckClient plugincheck.Client, versionbumpClient versionbump.Client, gitcommitClient gitcommit.Client, archiveClient archive.Client, ghreleaseClient ghrelease.Client, tailLogsChannel chan contracts.TailLogLine, applicationInfo foundation.ApplicationInfo) PipelineRunner {
	return &pipelineRunnerImpl{
		envvarHelper:      envvarHelper,
		whenEvaluator:     whenEvaluator,
		cacheClient:       cacheClient,
		prunerClient:      prunerClient,
		plugincheckClient: plugincheckClient,
		versionbumpClient: versionbumpClient,
		gitcommitClient:   gitcommitClient,
		archiveClient:     archiveClient,
		ghreleaseClient:   ghreleaseClient,
		tailLogsChannel:   tailLogsChannel,
		releaseLogSteps:   make([]*contracts.ReleaseLogStep, 0),
		applicationInfo:   applicationInfo,
	}
}

type pipelineRunnerImpl struct {
	envvarHelper      EnvvarHelper
	whenEvaluator     WhenEvaluator
	cacheClient       cache.Client
	prunerClient      pruner.Client
	plugincheckClient plugincheck.Client
	versionbumpClient versionbump.Client
	gitcommitClient   gitcommit.Client
	archiveClient     archive.Client
	ghreleaseClient   ghrelease.Client

	tailLogsChannel         chan contracts.TailLogLine
	releaseLogSteps         []*contracts.ReleaseLogStep
	injectReleaserInfoStage bool
	applicationInfo         foundation.ApplicationInfo

	// state handed from one stage to the next
	changedVersionFiles []string
	artifactPath        string
}

func (pr *pipelineRunnerImpl) RunStage(ctx context.Context, dir string, envvars map[string]string, stage manifest.ReleaseStage) (err error) {

	span, ctx := opentracing.StartSpanFromContext(ctx, "RunStage")
	defer span.Finish()
	span.SetTag("stage", stage.Name)

	log.Info().Msgf("[%v] Starting stage", stage.Name)

	pr.sendStatusMessage(stage.Name, nil, contracts.LogStatusRunning)

	stageStart := time.Now()
	defer pr.handleStageFinish(ctx, stage, stageStart, &err)
	if pr.isCanceled(ctx) {
		return
	}

	err = pr.runStageAction(ctx, dir, stage)

	return
}

func (pr *pipelineRunnerImpl) runStageAction(ctx context.Context, dir string, stage manifest.ReleaseStage) (err error) {

	version := pr.envvarHelper.GetReleaseEnv("RELEASE_VERSION")

	switch stage.Action {
	case manifest.ActionRestoreCache:
		return pr.cacheClient.Restore(ctx, dir)

	case manifest.ActionPrune:
		removed, err := pr.prunerClient.Prune(ctx, dir)
		if err != nil {
			return err
		}
		pr.logToStage(stage.Name, fmt.Sprintf("Removed %v development files", len(removed)))
		return nil

	case manifest.ActionPluginCheck:
		return pr.plugincheckClient.Check(ctx, stage.Name, dir)

	case manifest.ActionBumpVersion:
		pr.changedVersionFiles, err = pr.versionbumpClient.Apply(ctx, dir, version)
		return err

	case manifest.ActionCommitFiles:
		return pr.gitcommitClient.CommitAndPush(ctx, dir, pr.changedVersionFiles, fmt.Sprintf("Bump version to %v", version))

	case manifest.ActionPackage:
		pr.artifactPath, err = pr.archiveClient.Package(ctx, dir, version)
		if err != nil {
			return err
		}
		pr.logToStage(stage.Name, fmt.Sprintf("Created artifact %v", pr.artifactPath))
		return nil

	case manifest.ActionPublish:
		return pr.ghreleaseClient.Publish(ctx, version, pr.artifactPath)
	}

	return fmt.Errorf("Stage %v has unsupported action %v", stage.Name, stage.Action)
}

func (pr *pipelineRunnerImpl) handleStageFinish(ctx context.Context, stage manifest.ReleaseStage, stageStart time.Time, errPointer *error) {

	err := *errPointer

	// finalize stage
	finalStatus := contracts.LogStatusSucceeded
	if pr.isCanceled(ctx) {
		log.Info().Msgf("[%v] Stage canceled", stage.Name)
		finalStatus = contracts.LogStatusCanceled
	} else if err != nil {
		log.Warn().Err(err).Msgf("[%v] Stage failed", stage.Name)
		finalStatus = contracts.LogStatusFailed
	} else {
		log.Info().Msgf("[%v] Stage succeeded", stage.Name)
	}

	runDurationValue := time.Since(stageStart)
	runDuration := &runDurationValue

	pr.sendStatusMessageWithDuration(stage.Name, nil, runDuration, finalStatus)
}

func (pr *pipelineRunnerImpl) RunStages(ctx context.Context, stages []*manifest.ReleaseStage, dir string, envvars map[string]string) (releaseLogSteps []*contracts.ReleaseLogStep, err error) {

	span, ctx := opentracing.StartSpanFromContext(ctx, "RunStages")
	defer span.Finish()

	if len(stages) == 0 {
		return releaseLogSteps, fmt.Errorf("Manifest has no stages, failing the release")
	}

	// start log tailing
	pr.releaseLogSteps = make([]*contracts.ReleaseLogStep, 0)
	tailLogsDone := make(chan struct{}, 1)
	go pr.tailLogs(ctx, tailLogsDone, stages)

	// set default release status at the start
	err = pr.envvarHelper.InitReleaseStatus()
	if err != nil {
		return
	}

	if pr.injectReleaserInfoStage {
		pr.logReleaserInfo(ctx, pr.applicationInfo)
	}

	log.Info().Msgf("Running %v stages", len(stages))

	var finalErr error
	for _, s := range stages {
		func(stage *manifest.ReleaseStage) {
			defer func(stage *manifest.ReleaseStage) {
				// handle cancellation happening in between stages
				if pr.isCanceled(ctx) {
					pr.forceStatusForStage(*stage, contracts.LogStatusCanceled)
				}
			}(stage)

			var whenEvaluationResult bool
			whenEvaluationResult, err = pr.whenEvaluator.Evaluate(stage.Name, stage.When, pr.whenEvaluator.GetParameters())
			if err != nil {
				pr.forceStatusForStage(*stage, contracts.LogStatusFailed)
				pr.markReleaseFailed(envvars)
				finalErr = err

				return
			}

			if pr.isCanceled(ctx) {
				return
			}

			if whenEvaluationResult {
				err = pr.RunStage(ctx, dir, envvars, *stage)
				if pr.isCanceled(ctx) {
					return
				}
				if err != nil {
					pr.markReleaseFailed(envvars)
					finalErr = err
				}
			} else {
				// a skipped stage still shows up in the result table
				pr.forceStatusForStage(*stage, contracts.LogStatusSkipped)
			}
		}(s)
	}

	<-tailLogsDone

	return pr.getLogs(ctx), finalErr
}

// markReleaseFailed flips the status consumed by when clauses, so stages gated on
// status == 'succeeded' get skipped after the first failure
func (pr *pipelineRunnerImpl) markReleaseFailed(envvars map[string]string) {

	envErr := pr.envvarHelper.SetReleaseEnv("RELEASE_STATUS", "failed")
	if envErr != nil {
		log.Warn().Err(envErr).Msg("Failed setting RELEASE_STATUS to failed")
	}
	envvars[pr.envvarHelper.GetReleaseEnvvarName("RELEASE_STATUS")] = "failed"
}

func (pr *pipelineRunnerImpl) StopPipelineOnCancellation(ctx context.Context) {

	// wait for cancellation
	<-ctx.Done()

	log.Info().Msg("Canceling release pipeline...")
}

func (pr *pipelineRunnerImpl) EnableReleaserInfoStageInjection() {
	pr.injectReleaserInfoStage = true
}

func (pr *pipelineRunnerImpl) isCanceled(ctx context.Context) bool {

	select {
	case <-ctx.Done():
		return true
	default:
	}

	return false
}

func (pr *pipelineRunnerImpl) sendStatusMessage(step string, runDuration *time.Duration, status contracts.LogStatus) {
	pr.sendStatusMessageWithDuration(step, nil, runDuration, status)
}

func (pr *pipelineRunnerImpl) sendStatusMessageWithDuration(step string, autoInjected *bool, runDuration *time.Duration, status contracts.LogStatus) {

	tailLogLine := contracts.TailLogLine{
		Step:         step,
		Duration:     runDuration,
		Status:       &status,
		AutoInjected: autoInjected,
	}

	pr.tailLogsChannel <- tailLogLine
}

func (pr *pipelineRunnerImpl) forceStatusForStage(stage manifest.ReleaseStage, status contracts.LogStatus) {
	pr.sendStatusMessageWithDuration(stage.Name, nil, nil, status)
}

func (pr *pipelineRunnerImpl) logToStage(step, text string) {

	logLineObject := contracts.ReleaseLogLine{
		LineNumber: 1,
		Timestamp:  time.Now().UTC(),
		StreamType: "stdout",
		Text:       text,
	}

	pr.tailLogsChannel <- contracts.TailLogLine{
		Step:    step,
		LogLine: &logLineObject,
	}
}

func (pr *pipelineRunnerImpl) tailLogs(ctx context.Context, tailLogsDone chan struct{}, stages []*manifest.ReleaseStage) {

	allLogsReceived := make(chan struct{}, 1)

	for {
		select {
		case tailLogLine := <-pr.tailLogsChannel:
			if tailLogLine.LogLine != nil {
				log.Info().Msgf("[%v] %v", tailLogLine.Step, strings.TrimSuffix(tailLogLine.LogLine.Text, "\n"))
			}

			pr.upsertTailLogLine(tailLogLine)

			if tailLogLine.Status != nil && pr.isFinalStageComplete(stages) {
				// signal that running stages have finished so taillogs can stop
				allLogsReceived <- struct{}{}
			}

		case <-allLogsReceived:
			// signal that tailing logs is done
			tailLogsDone <- struct{}{}
			return
		}
	}
}

func (pr *pipelineRunnerImpl) logReleaserInfo(ctx context.Context, applicationInfo foundation.ApplicationInfo) {

	releaserVersionMessage := fmt.Sprintf("Starting \x1b[1m%v\x1b[0m version \x1b[1m%v\x1b[0m... \x1b[36mbranch=\x1b[0m%v \x1b[36mbuildDate=\x1b[0m%v \x1b[36mgoVersion=\x1b[0m%v \x1b[36mos=\x1b[0m%v \x1b[36mrevision=\x1b[0m%v", applicationInfo.App, applicationInfo.Version, applicationInfo.Branch, applicationInfo.BuildDate, applicationInfo.GoVersion(), applicationInfo.OperatingSystem(), applicationInfo.Revision)

	logLineObject := contracts.ReleaseLogLine{
		LineNumber: 1,
		Timestamp:  time.Now().UTC(),
		StreamType: "stdout",
		Text:       releaserVersionMessage,
	}

	status := contracts.LogStatusSucceeded
	trueValue := true
	pr.tailLogsChannel <- contracts.TailLogLine{
		Step:         "releaser-info",
		LogLine:      &logLineObject,
		Status:       &status,
		AutoInjected: &trueValue,
	}
}

func (pr *pipelineRunnerImpl) getLogs(ctx context.Context) []*contracts.ReleaseLogStep {
	return pr.releaseLogSteps
}

func (pr *pipelineRunnerImpl) upsertTailLogLine(tailLogLine contracts.TailLogLine) {

	// check if tailLogLine.Step already exists in pr.releaseLogSteps
	step := pr.getReleaseLogStep(tailLogLine.Step)
	if step == nil {
		step = &contracts.ReleaseLogStep{
			Step: tailLogLine.Step,
		}
		pr.releaseLogSteps = append(pr.releaseLogSteps, step)
	}

	// set non-identifying properties
	if tailLogLine.LogLine != nil {
		step.LogLines = append(step.LogLines, *tailLogLine.LogLine)
	}
	if tailLogLine.Duration != nil {
		step.Duration = *tailLogLine.Duration
	}
	if tailLogLine.ExitCode != nil {
		step.ExitCode = *tailLogLine.ExitCode
	}
	if tailLogLine.Status != nil {
		step.Status = *tailLogLine.Status
	}
	if tailLogLine.AutoInjected != nil {
		step.AutoInjected = *tailLogLine.AutoInjected
	}
}

func (pr *pipelineRunnerImpl) getReleaseLogStep(stepName string) *contracts.ReleaseLogStep {

	for _, rls := range pr.releaseLogSteps {
		if rls.Step == stepName {
			return rls
		}
	}

	return nil
}

func (pr *pipelineRunnerImpl) isFinalStageComplete(stages []*manifest.ReleaseStage) bool {

	if len(pr.releaseLogSteps) > 0 && len(stages) > 0 {

		lastStage := stages[len(stages)-1]
		lastStep := pr.getReleaseLogStep(lastStage.Name)
		if lastStep == nil {
			return false
		}

		return contracts.IsFinalStatus(lastStep.Status)
	}

	return false
}
