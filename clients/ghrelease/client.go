package ghrelease

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/opentracing-contrib/go-stdlib/nethttp"
	"github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog/log"
	"github.com/sethgrid/pester"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

// Client creates or updates the release for a pushed tag and attaches the zip artifact
//go:generate mockgen -package=ghrelease -destination ./mock.go -source=client.go
type Client interface {
	Publish(ctx context.Context, version, assetPath string) (err error)
}

// NewClient returns a new ghrelease.Client talking to the given API and upload base URLs
func NewClient(repo manifest.RepoConfig, publish manifest.PublishConfig, token, apiBaseURL, uploadBaseURL string) (Client, error) {
	return &client{
		repo:          repo,
		publish:       publish,
		token:         token,
		apiBaseURL:    apiBaseURL,
		uploadBaseURL: uploadBaseURL,
	}, nil
}

type client struct {
	repo          manifest.RepoConfig
	publish       manifest.PublishConfig
	token         string
	apiBaseURL    string
	uploadBaseURL string
}

type release struct {
	ID      int64   `json:"id"`
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	Assets  []asset `json:"assets"`
}

type asset struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Publish is idempotent by tag: a re-run for the same tag updates the existing
// release (preserving its body) and replaces the artifact instead of duplicating it.
func (c *client) Publish(ctx context.Context, version, assetPath string) (err error) {

	span, ctx := opentracing.StartSpanFromContext(ctx, "PublishRelease")
	defer span.Finish()
	span.SetTag("tag", version)

	existingRelease, err := c.getReleaseByTag(ctx, version)
	if err != nil {
		return err
	}

	var rel *release
	if existingRelease == nil {
		rel, err = c.createRelease(ctx, version)
		if err != nil {
			return err
		}
		log.Info().Msgf("Created release %v for tag %v", rel.ID, version)
	} else {
		rel, err = c.updateRelease(ctx, existingRelease.ID, version)
		if err != nil {
			return err
		}
		// carry over the asset list for replacement below
		rel.Assets = existingRelease.Assets
		log.Info().Msgf("Updated existing release %v for tag %v", rel.ID, version)
	}

	return c.uploadAsset(ctx, rel, assetPath)
}

func (c *client) getReleaseByTag(ctx context.Context, tag string) (rel *release, err error) {

	url := fmt.Sprintf("%v/repos/%v/%v/releases/tags/%v", c.apiBaseURL, c.repo.Owner, c.repo.Name, tag)
	statusCode, body, err := c.doRequest(ctx, "GET", url, "", nil)
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusNotFound {
		return nil, nil
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching release for tag %v failed with status %v", tag, statusCode)
	}

	rel = &release{}
	if err = json.Unmarshal(body, rel); err != nil {
		return nil, err
	}

	return rel, nil
}

func (c *client) createRelease(ctx context.Context, tag string) (rel *release, err error) {

	payload := map[string]interface{}{
		"tag_name":   tag,
		"name":       tag,
		"body":       c.publish.Body,
		"draft":      c.publish.Draft,
		"prerelease": c.publish.Prerelease,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%v/repos/%v/%v/releases", c.apiBaseURL, c.repo.Owner, c.repo.Name)
	statusCode, body, err := c.doRequest(ctx, "POST", url, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusCreated {
		return nil, fmt.Errorf("creating release for tag %v failed with status %v", tag, statusCode)
	}

	rel = &release{}
	if err = json.Unmarshal(body, rel); err != nil {
		return nil, err
	}

	return rel, nil
}

func (c *client) updateRelease(ctx context.Context, id int64, tag string) (rel *release, err error) {

	// the body field is omitted on purpose so release notes edited through the
	// web interface survive a re-run for the same tag
	payload := map[string]interface{}{
		"tag_name": tag,
		"name":     tag,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%v/repos/%v/%v/releases/%v", c.apiBaseURL, c.repo.Owner, c.repo.Name, id)
	statusCode, body, err := c.doRequest(ctx, "PATCH", url, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("updating release %v failed with status %v", id, statusCode)
	}

	rel = &release{}
	if err = json.Unmarshal(body, rel); err != nil {
		return nil, err
	}

	return rel, nil
}

func (c *client) uploadAsset(ctx context.Context, rel *release, assetPath string) (err error) {

	assetName := filepath.Base(assetPath)

	// a release keeps at most one asset per name; replace instead of duplicating
	for _, a := range rel.Assets {
		if a.Name == assetName {
			url := fmt.Sprintf("%v/repos/%v/%v/releases/assets/%v", c.apiBaseURL, c.repo.Owner, c.repo.Name, a.ID)
			statusCode, _, err := c.doRequest(ctx, "DELETE", url, "", nil)
			if err != nil {
				return err
			}
			if statusCode != http.StatusNoContent {
				return fmt.Errorf("deleting existing asset %v failed with status %v", a.Name, statusCode)
			}
			log.Info().Msgf("Deleted existing asset %v from release %v", a.Name, rel.ID)
		}
	}

	assetFile, err := os.Open(assetPath)
	if err != nil {
		return err
	}
	defer assetFile.Close()

	url := fmt.Sprintf("%v/repos/%v/%v/releases/%v/assets?name=%v", c.uploadBaseURL, c.repo.Owner, c.repo.Name, rel.ID, assetName)
	statusCode, _, err := c.doRequest(ctx, "POST", url, "application/zip", assetFile)
	if err != nil {
		return err
	}
	if statusCode != http.StatusCreated {
		return fmt.Errorf("uploading asset %v failed with status %v", assetName, statusCode)
	}

	log.Info().Msgf("Uploaded asset %v to release %v", assetName, rel.ID)

	return nil
}

func (c *client) doRequest(ctx context.Context, method, url, contentType string, requestBody io.Reader) (statusCode int, body []byte, err error) {

	span, ctx := opentracing.StartSpanFromContext(ctx, "GithubApiRequest")
	defer span.Finish()
	span.SetTag("method", method)
	span.SetTag("url", url)

	// create client, in order to add headers
	client := pester.NewExtendedClient(&http.Client{Transport: &nethttp.Transport{}})
	client.MaxRetries = 3
	client.Backoff = pester.ExponentialJitterBackoff
	client.KeepLog = true
	client.Timeout = time.Second * 60

	request, err := http.NewRequest(method, url, requestBody)
	if err != nil {
		return 0, nil, err
	}

	// a file body does not carry its own length; the uploads endpoint
	// rejects chunked encoding, so set Content-Length explicitly
	if file, ok := requestBody.(*os.File); ok {
		info, err := file.Stat()
		if err != nil {
			return 0, nil, err
		}
		request.ContentLength = info.Size()
	}

	// add tracing context
	request = request.WithContext(opentracing.ContextWithSpan(request.Context(), span))

	// collect additional information on setting up connections
	request, ht := nethttp.TraceRequest(span.Tracer(), request)

	// add headers
	request.Header.Add("Authorization", fmt.Sprintf("Bearer %v", c.token))
	request.Header.Add("Accept", "application/vnd.github+json")
	if contentType != "" {
		request.Header.Add("Content-Type", contentType)
	}

	// perform actual request
	response, err := client.Do(request)
	if err != nil {
		log.Error().Err(err).Str("pesterLogs", client.LogString()).Msgf("Failed performing http request to %v", url)
		return 0, nil, err
	}

	defer response.Body.Close()
	ht.Finish()

	body, err = io.ReadAll(response.Body)
	if err != nil {
		return response.StatusCode, nil, err
	}

	return response.StatusCode, body, nil
}
