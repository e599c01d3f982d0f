package releaser

import (
	"fmt"
	"os"
	"strings"
)

// EnvvarHelper is the interface for getting, setting and retrieving RELEASE_ environment variables
type EnvvarHelper interface {
	DeriveVersionFromRef(ref string) string
	SetGlobalEnvvars(gitRef string) error
	InitReleaseStatus() error
	CollectReleaseEnvvars() map[string]string
	UnsetReleaseEnvvars()
	GetReleaseEnv(key string) string
	SetReleaseEnv(key, value string) error
	UnsetReleaseEnv(key string) error
	GetReleaseEnvvarName(key string) string
	OverrideEnvvars(envvarMaps ...map[string]string) map[string]string
	GetWorkDir() string
}

type envvarHelper struct {
	prefix  string
	workDir string
}

// NewEnvvarHelper returns a new EnvvarHelper
func NewEnvvarHelper(prefix string) EnvvarHelper {
	return &envvarHelper{
		prefix:  prefix,
		workDir: os.Getenv("RELEASE_WORKDIR"),
	}
}

// DeriveVersionFromRef strips the refs/tags/ or refs/heads/ prefix from a git reference;
// a tag refs/tags/v1.2.3 yields v1.2.3, unchanged otherwise. Only the first matching
// prefix is stripped, so a tag named refs/heads/odd survives intact.
func (h *envvarHelper) DeriveVersionFromRef(ref string) string {

	if strings.HasPrefix(ref, "refs/tags/") {
		return strings.TrimPrefix(ref, "refs/tags/")
	}
	if strings.HasPrefix(ref, "refs/heads/") {
		return strings.TrimPrefix(ref, "refs/heads/")
	}

	return ref
}

func (h *envvarHelper) SetGlobalEnvvars(gitRef string) (err error) {

	if gitRef == "" {
		return fmt.Errorf("git ref is empty, cannot derive release version")
	}

	err = h.SetReleaseEnv("RELEASE_GIT_REF", gitRef)
	if err != nil {
		return err
	}

	err = h.SetReleaseEnv("RELEASE_VERSION", h.DeriveVersionFromRef(gitRef))
	if err != nil {
		return err
	}

	if strings.HasPrefix(gitRef, "refs/heads/") {
		err = h.SetReleaseEnv("RELEASE_GIT_BRANCH", strings.TrimPrefix(gitRef, "refs/heads/"))
		if err != nil {
			return err
		}
	}

	return h.InitReleaseStatus()
}

// InitReleaseStatus sets the status consumed by when clauses to succeeded at the start of a run
func (h *envvarHelper) InitReleaseStatus() error {
	return h.SetReleaseEnv("RELEASE_STATUS", "succeeded")
}

func (h *envvarHelper) CollectReleaseEnvvars() (envvars map[string]string) {

	envvars = map[string]string{}

	for _, e := range os.Environ() {
		kvPair := strings.SplitN(e, "=", 2)

		if len(kvPair) == 2 {
			envvarName := kvPair[0]
			envvarValue := kvPair[1]

			if strings.HasPrefix(envvarName, h.prefix) {
				envvars[envvarName] = envvarValue
			}
		}
	}

	return envvars
}

func (h *envvarHelper) UnsetReleaseEnvvars() {

	envvarsToUnset := h.CollectReleaseEnvvars()
	for key := range envvarsToUnset {
		err := h.unsetEnv(key)
		if err != nil {
			continue
		}
	}
}

func (h *envvarHelper) GetReleaseEnv(key string) string {

	key = h.GetReleaseEnvvarName(key)

	if strings.HasPrefix(key, h.prefix) {
		return os.Getenv(key)
	}

	return ""
}

func (h *envvarHelper) SetReleaseEnv(key, value string) error {

	key = h.GetReleaseEnvvarName(key)

	return os.Setenv(key, value)
}

func (h *envvarHelper) UnsetReleaseEnv(key string) error {

	key = h.GetReleaseEnvvarName(key)

	return h.unsetEnv(key)
}

// GetReleaseEnvvarName returns the envvar name with the RELEASE_ prefix replaced by the
// actual prefix used by this instance, allowing tests to run against a custom prefix
func (h *envvarHelper) GetReleaseEnvvarName(key string) string {
	return strings.Replace(key, "RELEASE_", h.prefix, 1)
}

func (h *envvarHelper) OverrideEnvvars(envvarMaps ...map[string]string) (envvars map[string]string) {

	envvars = make(map[string]string)
	for _, envvarMap := range envvarMaps {
		if envvarMap != nil && len(envvarMap) > 0 {
			for k, v := range envvarMap {
				envvars[k] = v
			}
		}
	}

	return envvars
}

func (h *envvarHelper) GetWorkDir() string {
	return h.workDir
}

func (h *envvarHelper) unsetEnv(key string) error {
	return os.Unsetenv(key)
}
