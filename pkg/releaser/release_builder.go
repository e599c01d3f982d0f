package releaser

import (
	"context"
	"io"
	"os"

	foundation "github.com/estafette/estafette-foundation"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"

	"github.com/wprelease/wp-release-builder/clients/obfuscation"
	"github.com/wprelease/wp-release-builder/pkg/contracts"
	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

// ReleaseBuilder runs the release pipeline for a pushed tag end to end
type ReleaseBuilder interface {
	RunReleaseJob(ctx context.Context, pipelineRunner PipelineRunner, envvarHelper EnvvarHelper, obfuscationClient obfuscation.Client, fatalHandler FatalHandler, mft manifest.ReleaseManifest, gitRef, githubToken string)
}

type releaseBuilderImpl struct {
	applicationInfo foundation.ApplicationInfo
}

// NewReleaseBuilder returns a new ReleaseBuilder
func NewReleaseBuilder(applicationInfo foundation.ApplicationInfo) ReleaseBuilder {
	return &releaseBuilderImpl{
		applicationInfo: applicationInfo,
	}
}

func (b *releaseBuilderImpl) RunReleaseJob(ctx context.Context, pipelineRunner PipelineRunner, envvarHelper EnvvarHelper, obfuscationClient obfuscation.Client, fatalHandler FatalHandler, mft manifest.ReleaseManifest, gitRef, githubToken string) {

	closer := b.initJaeger(b.applicationInfo.App)
	defer closer.Close()

	rootSpan := opentracing.StartSpan("RunReleaseJob")
	defer rootSpan.Finish()

	ctx = opentracing.ContextWithSpan(ctx, rootSpan)

	// clear leftovers from the invoking environment so stale values can't leak into when clauses
	envvarHelper.UnsetReleaseEnvvars()

	err := envvarHelper.SetGlobalEnvvars(gitRef)
	if err != nil {
		fatalHandler.HandleFatal(err, "Setting global environment variables failed")
	}

	obfuscationClient.CollectSecrets(githubToken)

	// listen to cancellation in order to stop the pipeline
	go pipelineRunner.StopPipelineOnCancellation(ctx)

	dir := envvarHelper.GetWorkDir()
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			fatalHandler.HandleFatal(err, "Getting current working directory failed")
		}
	}
	if exists, _ := pathExists(dir); !exists {
		fatalHandler.HandleFatal(nil, "Working directory "+dir+" does not exist")
	}

	version := envvarHelper.GetReleaseEnv("RELEASE_VERSION")
	log.Info().Msgf("Starting release %v of plugin %v...", version, mft.Plugin)

	envvars := envvarHelper.OverrideEnvvars(envvarHelper.CollectReleaseEnvvars())

	pipelineRunner.EnableReleaserInfoStageInjection()
	releaseLogSteps, err := pipelineRunner.RunStages(ctx, mft.Stages, dir, envvars)
	if err != nil && contracts.HasUnknownStatus(releaseLogSteps) {
		fatalHandler.HandleFatal(err, "Executing stages from manifest failed")
	}

	RenderStats(releaseLogSteps)

	// finish and flush so it gets sent to the tracing backend
	rootSpan.Finish()
	closer.Close()

	HandleExit(releaseLogSteps)
}

// initJaeger returns an instance of Jaeger Tracer that can be configured with environment variables
// https://github.com/jaegertracing/jaeger-client-go#environment-variables
func (b *releaseBuilderImpl) initJaeger(service string) io.Closer {

	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Generating Jaeger config from environment variables failed")
	}

	// disable jaeger if service name is empty
	if cfg.ServiceName == "" {
		cfg.Disabled = true
	}

	closer, err := cfg.InitGlobalTracer(service, jaegercfg.Logger(jaeger.StdLogger))

	if err != nil {
		log.Fatal().Err(err).Msg("Generating Jaeger tracer failed")
	}

	return closer
}
