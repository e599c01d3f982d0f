package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin"
	foundation "github.com/estafette/estafette-foundation"

	"github.com/wprelease/wp-release-builder/clients/archive"
	"github.com/wprelease/wp-release-builder/clients/cache"
	"github.com/wprelease/wp-release-builder/clients/ghrelease"
	"github.com/wprelease/wp-release-builder/clients/gitcommit"
	"github.com/wprelease/wp-release-builder/clients/obfuscation"
	"github.com/wprelease/wp-release-builder/clients/plugincheck"
	"github.com/wprelease/wp-release-builder/clients/pruner"
	"github.com/wprelease/wp-release-builder/clients/versionbump"
	"github.com/wprelease/wp-release-builder/pkg/contracts"
	"github.com/wprelease/wp-release-builder/pkg/manifest"
	"github.com/wprelease/wp-release-builder/pkg/releaser"
)

var (
	appgroup  string
	app       string
	version   string
	branch    string
	revision  string
	buildDate string

	gitRef          = kingpin.Flag("git-ref", "Git reference that triggered the release, refs/tags/v1.2.3 for a tag push.").Envar("RELEASE_GIT_REF").Required().String()
	workDir         = kingpin.Flag("workdir", "Directory holding the plugin checkout.").Envar("RELEASE_WORKDIR").String()
	manifestPath    = kingpin.Flag("manifest-path", "Path to the release manifest.").Envar("RELEASE_MANIFEST_PATH").Default(".release.yaml").String()
	cacheDir        = kingpin.Flag("cache-dir", "Directory holding prebuilt dependency cache archives.").Envar("RELEASE_CACHE_DIR").Required().String()
	githubToken     = kingpin.Flag("github-token", "Token used for committing back and publishing the release.").Envar("RELEASE_GITHUB_TOKEN").Required().String()
	githubAPIURL    = kingpin.Flag("github-api-url", "Base url of the GitHub api.").Envar("RELEASE_GITHUB_API_URL").Default("https://api.github.com").String()
	githubUploadURL = kingpin.Flag("github-upload-url", "Base url for uploading release assets.").Envar("RELEASE_GITHUB_UPLOAD_URL").Default("https://uploads.github.com").String()
)

func main() {

	// parse command line parameters
	kingpin.Parse()

	applicationInfo := foundation.NewApplicationInfo(appgroup, app, version, branch, revision, buildDate)

	// init log format from envvar LOG_FORMAT
	foundation.InitLoggingFromEnv(applicationInfo)

	fatalHandler := releaser.NewFatalHandler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// cancel the pipeline on sigterm so running stages get a canceled status
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	mft, err := manifest.ReadManifestFromFile(*manifestPath)
	if err != nil {
		fatalHandler.HandleFatal(err, "Reading release manifest failed")
	}

	obfuscationClient, err := obfuscation.NewClient()
	if err != nil {
		fatalHandler.HandleFatal(err, "Creating obfuscation client failed")
	}

	cacheClient, err := cache.NewClient(mft.Cache, *cacheDir)
	if err != nil {
		fatalHandler.HandleFatal(err, "Creating cache client failed")
	}

	prunerClient, err := pruner.NewClient(mft.Prune)
	if err != nil {
		fatalHandler.HandleFatal(err, "Creating pruner client failed")
	}

	tailLogsChannel := make(chan contracts.TailLogLine, 10000)

	plugincheckClient, err := plugincheck.NewClient(mft.Check, obfuscationClient, tailLogsChannel)
	if err != nil {
		fatalHandler.HandleFatal(err, "Creating plugin-check client failed")
	}

	versionbumpClient, err := versionbump.NewClient(mft.Version)
	if err != nil {
		fatalHandler.HandleFatal(err, "Creating version-bump client failed")
	}

	gitcommitClient, err := gitcommit.NewClient(mft.Repo, *githubToken)
	if err != nil {
		fatalHandler.HandleFatal(err, "Creating git-commit client failed")
	}

	archiveClient, err := archive.NewClient(mft.Plugin, mft.Archive)
	if err != nil {
		fatalHandler.HandleFatal(err, "Creating archive client failed")
	}

	ghreleaseClient, err := ghrelease.NewClient(mft.Repo, mft.Publish, *githubToken, *githubAPIURL, *githubUploadURL)
	if err != nil {
		fatalHandler.HandleFatal(err, "Creating github release client failed")
	}

	if *workDir != "" {
		os.Setenv("RELEASE_WORKDIR", *workDir)
	}

	envvarHelper := releaser.NewEnvvarHelper("RELEASE_")
	whenEvaluator := releaser.NewWhenEvaluator(envvarHelper)

	pipelineRunner := releaser.NewPipelineRunner(envvarHelper, whenEvaluator, cacheClient, prunerClient, plugincheckClient, versionbumpClient, gitcommitClient, archiveClient, ghreleaseClient, tailLogsChannel, applicationInfo)

	releaseBuilder := releaser.NewReleaseBuilder(applicationInfo)
	releaseBuilder.RunReleaseJob(ctx, pipelineRunner, envvarHelper, obfuscationClient, fatalHandler, mft, *gitRef, *githubToken)
}
