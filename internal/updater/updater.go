package updater

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/guiyumin/chnl/internal/core/version"
)

const (
	repoOwner = "guiyumin"
	repoName  = "chnl"
)

func newUpdater() (*selfupdate.Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, err
	}
	return selfupdate.NewUpdater(selfupdate.Config{
		Source: source,
	})
}

// currentVersion is the running version without its 'v' prefix
func currentVersion() string {
	return strings.TrimPrefix(version.Version, "v")
}

// CheckUpdate reports the latest release and whether it is newer than the
// running binary
func CheckUpdate(ctx context.Context) (*selfupdate.Release, bool, error) {
	updater, err := newUpdater()
	if err != nil {
		return nil, false, err
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.NewRepositorySlug(repoOwner, repoName))
	if err != nil {
		return nil, false, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	if latest.LessOrEqual(currentVersion()) {
		return latest, false, nil
	}
	return latest, true, nil
}

// Update replaces the running binary with the latest release
func Update(ctx context.Context, w io.Writer) error {
	updater, err := newUpdater()
	if err != nil {
		return err
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.NewRepositorySlug(repoOwner, repoName))
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return fmt.Errorf("no releases found for %s/%s (want asset %s)", repoOwner, repoName, PlatformAssetName())
	}

	current := currentVersion()
	if latest.LessOrEqual(current) {
		fmt.Fprintf(w, "Already up to date (v%s)\n", current)
		return nil
	}

	fmt.Fprintf(w, "Updating from v%s to %s...\n", current, latest.Version())

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("failed to update: %w", err)
	}

	fmt.Fprintf(w, "Successfully updated to %s\n", latest.Version())
	return nil
}

// PlatformAssetName returns the expected asset name for the current platform
func PlatformAssetName() string {
	return fmt.Sprintf("%s_%s_%s", repoName, runtime.GOOS, runtime.GOARCH)
}
