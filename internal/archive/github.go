package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"astra-setup/internal/logger"
)

// GitHubAPI is the API root release lookups go to.
var GitHubAPI = "https://api.github.com"

// Release is the subset of a GitHub release response used to pick an asset.
type Release struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// ReleaseAsset looks up a release of repo ("owner/name") and returns the
// download URL of the first supported archive whose name contains pattern
// (case-insensitive). An empty tag selects the latest release.
func ReleaseAsset(ctx context.Context, repo, tag, pattern string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", GitHubAPI, repo)
	if tag != "" {
		url = fmt.Sprintf("%s/repos/%s/releases/tags/%s", GitHubAPI, repo, tag)
	}
	logger.Debug("[DEBUG] Fetching GitHub release from URL: %s\n", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch release of %s: %w", repo, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close HTTP response body: %v\n", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub release fetch failed for %s: HTTP status %d", repo, resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to decode GitHub release JSON for %s: %w", repo, err)
	}
	logger.Debug("[DEBUG] Release tag: %s with %d assets\n", release.TagName, len(release.Assets))

	pattern = strings.ToLower(pattern)
	for _, asset := range release.Assets {
		name := strings.ToLower(asset.Name)
		if strings.Contains(name, pattern) && Supported(name) {
			logger.Debug("[DEBUG] Found matching asset: %s\n", asset.Name)
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("no archive matching %q in release %s of %s", pattern, release.TagName, repo)
}
