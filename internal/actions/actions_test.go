package actions

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astra-setup/internal/archive"
	"astra-setup/internal/component"
)

type fakeExecutor struct {
	dry   bool
	steps []component.Step
	fail  map[string]bool
}

func (f *fakeExecutor) Run(_ context.Context, step component.Step) error {
	f.steps = append(f.steps, step)
	if f.fail[step.Name] {
		return errors.New(step.Name + " exited with code 100")
	}
	return nil
}

func (f *fakeExecutor) DryRun() bool { return f.dry }

func TestAptInstall(t *testing.T) {
	ex := &fakeExecutor{}
	require.NoError(t, AptInstall{Packages: []string{"wine", "winetricks"}}.Apply(context.Background(), ex))

	require.Len(t, ex.steps, 1)
	step := ex.steps[0]
	assert.Equal(t, "apt-get", step.Name)
	assert.Equal(t, []string{"install", "wine", "winetricks"}, step.Args)
	assert.Contains(t, step.Env, "DEBIAN_FRONTEND=readline")
	assert.True(t, step.Privileged)

	assert.Error(t, AptInstall{}.Apply(context.Background(), ex))
}

func TestAptUpgradeStopsAfterFailedUpdate(t *testing.T) {
	ex := &fakeExecutor{fail: map[string]bool{"apt-get": true}}
	err := AptUpgrade{Dist: true}.Apply(context.Background(), ex)
	assert.Error(t, err)
	assert.Len(t, ex.steps, 1)

	ex = &fakeExecutor{}
	require.NoError(t, AptUpgrade{Dist: true}.Apply(context.Background(), ex))
	require.Len(t, ex.steps, 2)
	assert.Equal(t, []string{"update"}, ex.steps[0].Args)
	assert.Equal(t, []string{"dist-upgrade"}, ex.steps[1].Args)
}

func TestWineActionsSetPrefix(t *testing.T) {
	ex := &fakeExecutor{}
	ctx := context.Background()

	require.NoError(t, WineBoot{Prefix: "/home/dev/.wine-ide", Arch: "win64"}.Apply(ctx, ex))
	require.NoError(t, Winetricks{Prefix: "/home/dev/.wine-ide", Verbs: []string{"vcrun2019"}}.Apply(ctx, ex))
	require.NoError(t, Wine{Prefix: "/home/dev/.wine-ide", Program: "setup.exe", Args: []string{"/S"}}.Apply(ctx, ex))

	require.Len(t, ex.steps, 3)
	for _, step := range ex.steps {
		assert.Contains(t, step.Env, "WINEPREFIX=/home/dev/.wine-ide")
		assert.False(t, step.Privileged)
	}
	assert.Contains(t, ex.steps[0].Env, "WINEARCH=win64")
	assert.Equal(t, []string{"-q", "--unattended", "vcrun2019"}, ex.steps[1].Args)
	assert.Equal(t, []string{"setup.exe", "/S"}, ex.steps[2].Args)

	assert.Error(t, Winetricks{Prefix: "/p"}.Apply(ctx, ex))
}

func TestSequence(t *testing.T) {
	ex := &fakeExecutor{fail: map[string]bool{"wineboot": true}}
	seq := Sequence{
		Script{Script: "true"},
		WineBoot{Prefix: "/p"},
		Wine{Prefix: "/p", Program: "never.exe"},
	}

	err := seq.Apply(context.Background(), ex)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wineboot --init in /p")
	assert.Len(t, ex.steps, 2)
}

func TestSequenceHonoursCancellation(t *testing.T) {
	ex := &fakeExecutor{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sequence{Script{Script: "true"}}.Apply(ctx, ex)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, ex.steps)
}

func TestConfigLinesIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ide", "ide.conf")
	action := ConfigLines{Path: path, Lines: []string{"theme=dark", "  locale=ru_RU  ", ""}}
	ex := &fakeExecutor{}

	require.NoError(t, action.Apply(context.Background(), ex))
	require.NoError(t, action.Apply(context.Background(), ex))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "theme=dark\nlocale=ru_RU\n", string(data))
	assert.Empty(t, ex.steps)
}

func TestConfigLinesTerminatesLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ide.ini")
	require.NoError(t, os.WriteFile(path, []byte("[General]\nTheme=dark"), 0644))
	action := ConfigLines{Path: path, Lines: []string{"Locale=ru_RU"}}

	require.NoError(t, action.Apply(context.Background(), &fakeExecutor{}))
	require.NoError(t, action.Apply(context.Background(), &fakeExecutor{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[General]\nTheme=dark\nLocale=ru_RU\n", string(data))
}

func TestConfigLinesDryRunWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ide.conf")
	require.NoError(t, ConfigLines{Path: path, Lines: []string{"a=1"}}.Apply(context.Background(), &fakeExecutor{dry: true}))
	assert.NoFileExists(t, path)
}

func TestShortcut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applications", "ide.desktop")
	s := Shortcut{Path: path, Name: "IDE", Exec: "env WINEPREFIX=/p wine ide.exe", Icon: "ide", Categories: "Development;"}

	require.NoError(t, s.Apply(context.Background(), &fakeExecutor{}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Desktop Entry]\nType=Application\nName=IDE\nExec=env WINEPREFIX=/p wine ide.exe\nIcon=ide\nCategories=Development;\nTerminal=false\n", string(data))

	dryPath := filepath.Join(t.TempDir(), "dry.desktop")
	require.NoError(t, Shortcut{Path: dryPath, Name: "x", Exec: "x"}.Apply(context.Background(), &fakeExecutor{dry: true}))
	assert.NoFileExists(t, dryPath)
}

func TestArchiveFromLocalSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ide.zip")
	f, err := os.Create(src)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("IDE/ide.exe")
	require.NoError(t, err)
	_, err = io.WriteString(w, "MZ")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(dir, "prefix", "drive_c", "Program Files")
	require.NoError(t, Archive{Source: src, Dest: dest}.Apply(context.Background(), &fakeExecutor{}))
	assert.FileExists(t, filepath.Join(dest, "IDE", "ide.exe"))
}

func TestArchiveDryRun(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	a := Archive{URL: "https://example.invalid/ide.7z", CacheDir: t.TempDir(), Dest: dest}

	require.NoError(t, a.Apply(context.Background(), &fakeExecutor{dry: true}))
	assert.NoDirExists(t, dest)
	assert.Equal(t, "ide.7z", filepath.Base(a.source()))
}

func TestArchiveFromGitHubRelease(t *testing.T) {
	var payload bytes.Buffer
	zw := zip.NewWriter(&payload)
	w, err := zw.Create("runtime/readme.txt")
	require.NoError(t, err)
	_, err = io.WriteString(w, "runtime")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/vendor/runtime/releases/tags/v1.0":
			fmt.Fprintf(rw, `{"tag_name":"v1.0","assets":[{"name":"runtime-1.0.zip","browser_download_url":"%s/dl/runtime-1.0.zip"}]}`, srv.URL)
		case "/dl/runtime-1.0.zip":
			_, _ = rw.Write(payload.Bytes())
		default:
			http.NotFound(rw, r)
		}
	}))
	defer srv.Close()

	old := archive.GitHubAPI
	archive.GitHubAPI = srv.URL
	defer func() { archive.GitHubAPI = old }()

	dir := t.TempDir()
	a := Archive{Repo: "vendor/runtime", Tag: "v1.0", Asset: "runtime", CacheDir: filepath.Join(dir, "cache"), Dest: filepath.Join(dir, "out")}
	require.NoError(t, a.Apply(context.Background(), &fakeExecutor{}))

	assert.FileExists(t, filepath.Join(dir, "cache", "runtime-1.0.zip"))
	data, err := os.ReadFile(filepath.Join(dir, "out", "runtime", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "runtime", string(data))
	assert.Contains(t, a.String(), "vendor/runtime")
}
