// Package archive unpacks the archive formats IDE distributions and Wine
// runtimes are shipped in.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip" // .7z archives
	"github.com/xi2/xz"          // .tar.xz archives

	"astra-setup/internal/logger"
)

// Supported reports whether Extract understands the file name's extension.
func Supported(name string) bool {
	_, ok := formatOf(name)
	return ok
}

type format int

const (
	formatZip format = iota
	format7z
	formatTar
	formatTarGz
	formatTarBz2
	formatTarXz
)

func formatOf(name string) (format, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return formatZip, true
	case strings.HasSuffix(lower, ".7z"):
		return format7z, true
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return formatTarGz, true
	case strings.HasSuffix(lower, ".tar.bz2"):
		return formatTarBz2, true
	case strings.HasSuffix(lower, ".tar.xz"):
		return formatTarXz, true
	case strings.HasSuffix(lower, ".tar"):
		return formatTar, true
	}
	return 0, false
}

// Extract unpacks src into dest and returns the number of files written.
// Entries that would escape dest are rejected.
func Extract(src, dest string) (int, error) {
	f, ok := formatOf(src)
	if !ok {
		return 0, fmt.Errorf("unsupported archive format: %s", src)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}
	logger.Debug("[DEBUG] Extracting %s to %s\n", src, dest)

	switch f {
	case formatZip:
		return extractZip(src, dest)
	case format7z:
		return extract7z(src, dest)
	default:
		return extractTar(src, dest, f)
	}
}

// target joins name onto dest, refusing paths that leave dest.
func target(dest, name string) (string, error) {
	path := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes %s", name, dest)
	}
	return path, nil
}

func writeFile(path string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if mode.Perm() == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func extractTar(src, dest string, f format) (int, error) {
	file, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var reader io.Reader = file
	switch f {
	case formatTarGz:
		gr, err := gzip.NewReader(file)
		if err != nil {
			return 0, err
		}
		defer gr.Close()
		reader = gr
	case formatTarBz2:
		reader = bzip2.NewReader(file)
	case formatTarXz:
		xzr, err := xz.NewReader(file, 0)
		if err != nil {
			return 0, err
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	count := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}

		path, err := target(dest, hdr.Name)
		if err != nil {
			return count, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0755); err != nil {
				return count, err
			}
		case tar.TypeReg:
			if err := writeFile(path, tr, hdr.FileInfo().Mode()); err != nil {
				return count, err
			}
			count++
		default:
			logger.Debug("[DEBUG] Skipping tar entry %s (type %c)\n", hdr.Name, hdr.Typeflag)
		}
	}
}

func extractZip(src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	count := 0
	for _, f := range r.File {
		path, err := target(dest, f.Name)
		if err != nil {
			return count, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return count, err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return count, err
		}
		err = writeFile(path, rc, f.Mode())
		rc.Close()
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func extract7z(src, dest string) (int, error) {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	count := 0
	for _, f := range r.File {
		path, err := target(dest, f.Name)
		if err != nil {
			return count, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return count, err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return count, err
		}
		err = writeFile(path, rc, f.Mode())
		rc.Close()
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
