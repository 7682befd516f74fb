// Package probe implements read-only checks of the live system used to
// decide whether a component is installed.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"astra-setup/internal/component"
	"astra-setup/internal/logger"
)

// QueryFunc runs a read-only command and returns its standard output.
type QueryFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecQuery runs the command with os/exec.
func ExecQuery(ctx context.Context, name string, args ...string) ([]byte, error) {
	logger.Debug("[DEBUG] probe: %s %s\n", name, strings.Join(args, " "))
	return exec.CommandContext(ctx, name, args...).Output()
}

// isExitError reports whether err means "the command ran and said no".
func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// Packages is installed when dpkg reports every package as installed.
type Packages struct {
	Names []string
	Query QueryFunc
}

func (p Packages) Installed(ctx context.Context) (bool, error) {
	query := p.Query
	if query == nil {
		query = ExecQuery
	}
	for _, name := range p.Names {
		out, err := query(ctx, "dpkg-query", "-W", "-f=${Status}", name)
		if err != nil {
			// dpkg-query exits 1 for packages it has never heard of.
			if isExitError(err) {
				return false, nil
			}
			return false, fmt.Errorf("query package %s: %w", name, err)
		}
		if !strings.HasSuffix(strings.TrimSpace(string(out)), "install ok installed") {
			return false, nil
		}
	}
	return true, nil
}

// Path is installed when the file or directory exists.
type Path struct {
	Path string
}

func (p Path) Installed(context.Context) (bool, error) {
	_, err := os.Stat(p.Path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", p.Path, err)
	}
}

// FileLines is installed when every line is present in the file, ignoring
// surrounding whitespace.
type FileLines struct {
	Path  string
	Lines []string
}

func (f FileLines) Installed(context.Context) (bool, error) {
	existing, err := ReadLineSet(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for _, line := range f.Lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !existing[trimmed] {
			return false, nil
		}
	}
	return true, nil
}

// ReadLineSet returns the set of trimmed lines of a file.
func ReadLineSet(path string) (map[string]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	existing := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		existing[strings.TrimSpace(scanner.Text())] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return existing, nil
}

// Command is installed when the command exits with status zero.
type Command struct {
	Name  string
	Args  []string
	Query QueryFunc
}

func (c Command) Installed(ctx context.Context) (bool, error) {
	query := c.Query
	if query == nil {
		query = ExecQuery
	}
	if _, err := query(ctx, c.Name, c.Args...); err != nil {
		if isExitError(err) {
			return false, nil
		}
		return false, fmt.Errorf("run %s: %w", c.Name, err)
	}
	return true, nil
}

// Only major.minor.patch is compared; further components are ignored.
var versionPattern = regexp.MustCompile(`\d+(\.\d+){1,2}`)

// Version is installed when the command prints a version satisfying
// Constraint, e.g. "wine --version" printing "wine-9.0 (Staging)".
type Version struct {
	Name       string
	Args       []string
	Constraint string
	Query      QueryFunc
}

func (v Version) Installed(ctx context.Context) (bool, error) {
	constraint, err := semver.NewConstraint(v.Constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint %q: %w", v.Constraint, err)
	}

	query := v.Query
	if query == nil {
		query = ExecQuery
	}
	out, err := query(ctx, v.Name, v.Args...)
	if err != nil {
		var execErr *exec.Error
		if isExitError(err) || errors.As(err, &execErr) {
			// Not installed, or not on PATH at all.
			return false, nil
		}
		return false, fmt.Errorf("run %s: %w", v.Name, err)
	}

	raw := versionPattern.FindString(string(out))
	if raw == "" {
		return false, fmt.Errorf("no version in %s output %q", v.Name, strings.TrimSpace(string(out)))
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s version %q: %w", v.Name, raw, err)
	}
	logger.Debug("[DEBUG] probe: %s version %s, want %s\n", v.Name, version, v.Constraint)
	return constraint.Check(version), nil
}

// All is installed when every checker is. An empty All is never installed.
type All []component.Checker

func (a All) Installed(ctx context.Context) (bool, error) {
	if len(a) == 0 {
		return false, nil
	}
	for _, c := range a {
		ok, err := c.Installed(ctx)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
