package actions

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"astra-setup/internal/archive"
	"astra-setup/internal/component"
	"astra-setup/internal/logger"
	"astra-setup/internal/probe"
)

// Archive unpacks an IDE or runtime distribution into Dest. The archive is
// a local Source, a URL, or an asset of a GitHub release (Repo, Tag, Asset);
// remote archives are cached in CacheDir.
type Archive struct {
	URL      string
	Source   string
	Repo     string
	Tag      string
	Asset    string
	CacheDir string
	Dest     string
}

func (a Archive) cachePath(url string) string {
	cache := a.CacheDir
	if cache == "" {
		cache = os.TempDir()
	}
	return filepath.Join(cache, path.Base(url))
}

func (a Archive) source() string {
	if a.URL != "" {
		return a.cachePath(a.URL)
	}
	return a.Source
}

func (a Archive) Apply(ctx context.Context, ex component.Executor) error {
	if ex.DryRun() {
		switch {
		case a.Repo != "":
			logger.Dry("[DRY] Would download %q from the %s release of %s\n", a.Asset, tagOrLatest(a.Tag), a.Repo)
		case a.URL != "":
			logger.Dry("[DRY] Would download %s to %s\n", a.URL, a.source())
		}
		logger.Dry("[DRY] Would extract to %s\n", a.Dest)
		return nil
	}

	url := a.URL
	if a.Repo != "" {
		var err error
		if url, err = archive.ReleaseAsset(ctx, a.Repo, a.Tag, a.Asset); err != nil {
			return err
		}
	}

	src := a.Source
	if url != "" {
		src = a.cachePath(url)
		if _, err := os.Stat(src); err == nil {
			logger.Info("[INFO] Using cached %s\n", src)
		} else {
			logger.Info("[INFO] Downloading %s\n", url)
			if err := archive.Download(ctx, url, src); err != nil {
				return err
			}
		}
	}

	n, err := archive.Extract(src, a.Dest)
	if err != nil {
		return fmt.Errorf("extract %s: %w", src, err)
	}
	logger.Info("[INFO] Extracted %d files from %s to %s\n", n, filepath.Base(src), a.Dest)
	return nil
}

func tagOrLatest(tag string) string {
	if tag == "" {
		return "latest"
	}
	return tag
}

func (a Archive) String() string {
	if a.Repo != "" {
		return fmt.Sprintf("extract %s release asset %q to %s", a.Repo, a.Asset, a.Dest)
	}
	return "extract " + a.source() + " to " + a.Dest
}

// ConfigLines appends lines to a configuration file unless they are already
// present, so re-running it never duplicates anything.
type ConfigLines struct {
	Path  string
	Lines []string
}

func (c ConfigLines) Apply(_ context.Context, ex component.Executor) error {
	existing, err := probe.ReadLineSet(c.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		existing = make(map[string]bool)
	}

	var missing []string
	for _, line := range c.Lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || existing[trimmed] {
			logger.Debug("[DEBUG] Config line already present or empty: %s\n", trimmed)
			continue
		}
		missing = append(missing, trimmed)
		existing[trimmed] = true
	}
	if len(missing) == 0 {
		return nil
	}

	if ex.DryRun() {
		for _, line := range missing {
			logger.Dry("[DRY] Would add to %s: %s\n", c.Path, line)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", c.Path, err)
	}
	terminated, err := endsWithNewline(c.Path)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(c.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("unable to open %s for appending: %w", c.Path, err)
	}
	defer file.Close()

	if !terminated {
		if _, err := file.WriteString("\n"); err != nil {
			return fmt.Errorf("write %s: %w", c.Path, err)
		}
	}

	for _, line := range missing {
		if _, err := file.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write %s: %w", c.Path, err)
		}
		logger.Info("[INFO] Added to %s: %s\n", c.Path, line)
	}
	return nil
}

// endsWithNewline reports whether path is missing, empty or ends in '\n'.
func endsWithNewline(path string) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return last[0] == '\n', nil
}

func (c ConfigLines) String() string { return fmt.Sprintf("add %d lines to %s", len(c.Lines), c.Path) }

// Shortcut writes a freedesktop .desktop launcher.
type Shortcut struct {
	Path    string
	Name    string
	Comment string
	Exec    string
	Icon    string
	// Categories is the menu category list, e.g. "Development;IDE;".
	Categories string
}

// Entry renders the launcher file.
func (s Shortcut) Entry() string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", s.Name)
	if s.Comment != "" {
		fmt.Fprintf(&b, "Comment=%s\n", s.Comment)
	}
	fmt.Fprintf(&b, "Exec=%s\n", s.Exec)
	if s.Icon != "" {
		fmt.Fprintf(&b, "Icon=%s\n", s.Icon)
	}
	if s.Categories != "" {
		fmt.Fprintf(&b, "Categories=%s\n", s.Categories)
	}
	b.WriteString("Terminal=false\n")
	return b.String()
}

func (s Shortcut) Apply(_ context.Context, ex component.Executor) error {
	if ex.DryRun() {
		logger.Dry("[DRY] Would write shortcut %s\n", s.Path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", s.Path, err)
	}
	if err := os.WriteFile(s.Path, []byte(s.Entry()), 0755); err != nil {
		return fmt.Errorf("write shortcut %s: %w", s.Path, err)
	}
	logger.Info("[INFO] Created shortcut %s\n", s.Path)
	return nil
}

func (s Shortcut) String() string { return "shortcut " + s.Path }
