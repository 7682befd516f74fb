package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ideFiles = map[string]string{
	"IDE/bin/ide.exe":    "MZ fake binary",
	"IDE/config/ide.ini": "[general]\ntheme=dark\n",
	"IDE/readme_ru.txt":  "Среда разработки",
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := io.WriteString(tw, content)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
}

func assertExtracted(t *testing.T, dest string) {
	t.Helper()
	for name, content := range ideFiles {
		data, err := os.ReadFile(filepath.Join(dest, name))
		require.NoError(t, err, name)
		assert.Equal(t, content, string(data))
	}
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ide.zip")
	writeZip(t, src, ideFiles)

	dest := filepath.Join(dir, "drive_c", "Program Files")
	n, err := Extract(src, dest)
	require.NoError(t, err)
	assert.Equal(t, len(ideFiles), n)
	assertExtracted(t, dest)
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ide.tgz")
	writeTarGz(t, src, ideFiles)

	dest := filepath.Join(dir, "out")
	n, err := Extract(src, dest)
	require.NoError(t, err)
	assert.Equal(t, len(ideFiles), n)
	assertExtracted(t, dest)

	info, err := os.Stat(filepath.Join(dest, "IDE/bin/ide.exe"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../../etc/evil.conf": "x"})

	_, err := Extract(src, filepath.Join(dir, "out"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "etc", "evil.conf"))
}

func TestExtractUnsupported(t *testing.T) {
	_, err := Extract("/tmp/ide.rar", t.TempDir())
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	for _, name := range []string{"a.zip", "a.7z", "a.tar", "a.tar.gz", "a.TGZ", "a.tar.bz2", "a.tar.xz"} {
		assert.True(t, Supported(name), name)
	}
	assert.False(t, Supported("a.rar"))
	assert.False(t, Supported("setup.exe"))
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ide.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "payload")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "cache", "ide.zip")
	require.NoError(t, Download(context.Background(), srv.URL+"/ide.zip", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	missing := filepath.Join(t.TempDir(), "missing.zip")
	err = Download(context.Background(), srv.URL+"/missing.zip", missing)
	assert.Error(t, err)
	assert.NoFileExists(t, missing)
}

func TestReleaseAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/vendor/ide/releases/latest", "/repos/vendor/ide/releases/tags/v2.1":
			_, _ = io.WriteString(w, `{"tag_name":"v2.1","assets":[
				{"name":"ide-2.1-setup.exe","browser_download_url":"https://dl/ide-2.1-setup.exe"},
				{"name":"IDE-2.1-Portable.7z","browser_download_url":"https://dl/IDE-2.1-Portable.7z"},
				{"name":"ide-2.1-portable.zip","browser_download_url":"https://dl/ide-2.1-portable.zip"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	old := GitHubAPI
	GitHubAPI = srv.URL
	defer func() { GitHubAPI = old }()

	ctx := context.Background()
	url, err := ReleaseAsset(ctx, "vendor/ide", "", "portable")
	require.NoError(t, err)
	assert.Equal(t, "https://dl/IDE-2.1-Portable.7z", url)

	url, err = ReleaseAsset(ctx, "vendor/ide", "v2.1", "portable.zip")
	require.NoError(t, err)
	assert.Equal(t, "https://dl/ide-2.1-portable.zip", url)

	_, err = ReleaseAsset(ctx, "vendor/ide", "", "setup")
	assert.Error(t, err)

	_, err = ReleaseAsset(ctx, "vendor/other", "", "portable")
	assert.Error(t, err)
}
