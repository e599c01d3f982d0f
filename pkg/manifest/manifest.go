package manifest

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// StageAction identifies the built-in action a release stage executes
type StageAction string

const (
	ActionRestoreCache StageAction = "restore-cache"
	ActionPrune        StageAction = "prune"
	ActionPluginCheck  StageAction = "plugin-check"
	ActionBumpVersion  StageAction = "bump-version"
	ActionCommitFiles  StageAction = "commit-versioned-files"
	ActionPackage      StageAction = "package"
	ActionPublish      StageAction = "publish-release"
)

// ReleaseManifest describes the full release pipeline for a plugin repository
type ReleaseManifest struct {
	Plugin  string          `yaml:"plugin"`
	Repo    RepoConfig      `yaml:"repo"`
	Cache   CacheConfig     `yaml:"cache"`
	Prune   PruneConfig     `yaml:"prune"`
	Check   CheckConfig     `yaml:"check"`
	Version VersionConfig   `yaml:"version"`
	Archive ArchiveConfig   `yaml:"archive"`
	Publish PublishConfig   `yaml:"publish"`
	Stages  []*ReleaseStage `yaml:"stages"`
}

// ReleaseStage is a single stage of the release pipeline
type ReleaseStage struct {
	Name   string      `yaml:"name"`
	Action StageAction `yaml:"action"`
	When   string      `yaml:"when"`
}

// RepoConfig identifies the source repository and the identity used for committing back
type RepoConfig struct {
	Owner    string `yaml:"owner"`
	Name     string `yaml:"name"`
	Branch   string `yaml:"branch"`
	BotName  string `yaml:"botName"`
	BotEmail string `yaml:"botEmail"`
}

// CacheConfig configures restoring the prebuilt dependency cache
type CacheConfig struct {
	KeyPrefix string   `yaml:"keyPrefix"`
	LockFiles []string `yaml:"lockFiles"`
	Paths     []string `yaml:"paths"`
}

// PruneConfig lists the development-only file patterns stripped before packaging
type PruneConfig struct {
	Patterns []string `yaml:"patterns"`
	KeepRoot []string `yaml:"keepRoot"`
}

// CheckConfig configures the external plugin validation command
type CheckConfig struct {
	Command            string   `yaml:"command"`
	Args               []string `yaml:"args"`
	ExcludeDirectories []string `yaml:"excludeDirectories"`
	ExcludeChecks      []string `yaml:"excludeChecks"`
}

// VersionConfig lists the files receiving the version substitution
type VersionConfig struct {
	Targets []VersionTarget `yaml:"targets"`
}

// VersionTarget is a single file plus the kind of literal pattern rewritten in it
type VersionTarget struct {
	File     string `yaml:"file"`
	Type     string `yaml:"type"`
	Constant string `yaml:"constant"`
}

const (
	TargetTypeConstant     = "constant"
	TargetTypePluginHeader = "plugin-header"
	TargetTypeStableTag    = "stable-tag"
)

// ArchiveConfig configures where the zip artifact is written
type ArchiveConfig struct {
	OutputDir string `yaml:"outputDir"`
}

// PublishConfig configures the release created or updated for the pushed tag
type PublishConfig struct {
	Body       string `yaml:"body"`
	Draft      bool   `yaml:"draft"`
	Prerelease bool   `yaml:"prerelease"`
}

// ReadManifestFromFile reads the release manifest at the given path and applies defaults
func ReadManifestFromFile(path string) (mft ReleaseManifest, err error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return mft, err
	}

	return ReadManifest(data)
}

// ReadManifest unmarshals the release manifest, applies defaults and validates it
func ReadManifest(data []byte) (mft ReleaseManifest, err error) {

	if err := yaml.UnmarshalStrict(data, &mft); err != nil {
		return mft, err
	}

	mft.SetDefaults()

	if err := mft.Validate(); err != nil {
		return mft, err
	}

	return mft, nil
}

// SetDefaults sets defaults for unset manifest properties, including the canonical stage sequence
func (m *ReleaseManifest) SetDefaults() {

	if m.Repo.Branch == "" {
		m.Repo.Branch = "main"
	}
	if m.Repo.BotName == "" {
		m.Repo.BotName = "release-bot"
	}
	if m.Repo.BotEmail == "" {
		m.Repo.BotEmail = "release-bot@users.noreply.github.com"
	}

	if m.Cache.KeyPrefix == "" {
		m.Cache.KeyPrefix = "deps-prod"
	}
	if len(m.Cache.LockFiles) == 0 {
		m.Cache.LockFiles = []string{"composer.lock", "package-lock.json"}
	}
	if len(m.Cache.Paths) == 0 {
		m.Cache.Paths = []string{"vendor"}
	}

	if len(m.Prune.Patterns) == 0 {
		m.Prune.Patterns = []string{
			"composer.json",
			"composer.lock",
			"package.json",
			"package-lock.json",
			"phpunit.xml",
			"phpunit.xml.dist",
			"phpcs.xml",
			"phpcs.xml.dist",
			"phpstan.neon",
			"phpstan.neon.dist",
			".distignore",
			".editorconfig",
			".gitattributes",
			".gitignore",
			".github",
			"node_modules",
			"tests",
			"docs",
		}
	}
	if len(m.Prune.KeepRoot) == 0 {
		m.Prune.KeepRoot = []string{"composer.json"}
	}

	if m.Check.Command == "" {
		m.Check.Command = "plugin-check"
	}

	if len(m.Version.Targets) == 0 && m.Plugin != "" {
		m.Version.Targets = []VersionTarget{
			{File: m.Plugin + ".php", Type: TargetTypeConstant, Constant: "PLUGIN_VERSION"},
			{File: m.Plugin + ".php", Type: TargetTypePluginHeader},
			{File: "readme.txt", Type: TargetTypeStableTag},
		}
	}
	for i := range m.Version.Targets {
		if m.Version.Targets[i].Type == TargetTypeConstant && m.Version.Targets[i].Constant == "" {
			m.Version.Targets[i].Constant = "PLUGIN_VERSION"
		}
	}

	if len(m.Stages) == 0 {
		m.Stages = []*ReleaseStage{
			{Name: "restore-cache", Action: ActionRestoreCache},
			{Name: "prune", Action: ActionPrune},
			{Name: "plugin-check", Action: ActionPluginCheck},
			{Name: "bump-version", Action: ActionBumpVersion},
			{Name: "commit-versioned-files", Action: ActionCommitFiles},
			{Name: "package", Action: ActionPackage},
			{Name: "publish-release", Action: ActionPublish},
		}
	}

	for _, s := range m.Stages {
		if s.Name == "" {
			s.Name = string(s.Action)
		}
		if s.When == "" {
			s.When = "status == 'succeeded'"
		}
	}
}

// Validate checks the manifest is complete enough to run a release
func (m *ReleaseManifest) Validate() (err error) {

	if m.Plugin == "" {
		return fmt.Errorf("manifest has no plugin name")
	}
	if m.Repo.Owner == "" || m.Repo.Name == "" {
		return fmt.Errorf("manifest has no repo owner and name")
	}
	if len(m.Stages) == 0 {
		return fmt.Errorf("manifest has no stages")
	}

	knownActions := map[StageAction]bool{
		ActionRestoreCache: true,
		ActionPrune:        true,
		ActionPluginCheck:  true,
		ActionBumpVersion:  true,
		ActionCommitFiles:  true,
		ActionPackage:      true,
		ActionPublish:      true,
	}
	for _, s := range m.Stages {
		if !knownActions[s.Action] {
			return fmt.Errorf("stage %v has unknown action %v", s.Name, s.Action)
		}
	}

	for _, t := range m.Version.Targets {
		switch t.Type {
		case TargetTypeConstant, TargetTypePluginHeader, TargetTypeStableTag:
		default:
			return fmt.Errorf("version target %v has unknown type %v", t.File, t.Type)
		}
	}

	return nil
}
