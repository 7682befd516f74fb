package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"astra-setup/internal/actions"
	"astra-setup/internal/component"
	"astra-setup/internal/probe"
)

//go:embed default_components.yaml
var defaultCatalog []byte

// Catalog is the declarative component table.
type Catalog struct {
	Components []ComponentSpec `yaml:"components"`
}

// ComponentSpec describes one component. Parents list children and carry
// neither checks nor install steps.
type ComponentSpec struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Category     string       `yaml:"category"`
	Priority     int          `yaml:"priority"`
	Dependencies []string     `yaml:"dependencies"`
	Children     []string     `yaml:"children"`
	Check        []CheckSpec  `yaml:"check"`
	Install      []ActionSpec `yaml:"install"`
}

// CheckSpec is one probe; exactly one field is set. A component is
// installed when all of its probes pass.
type CheckSpec struct {
	Packages  []string       `yaml:"packages"`
	Path      string         `yaml:"path"`
	FileLines *FileLinesSpec `yaml:"file_lines"`
	Command   []string       `yaml:"command"`
	Version   *VersionSpec   `yaml:"version"`
}

type FileLinesSpec struct {
	Path  string   `yaml:"path"`
	Lines []string `yaml:"lines"`
}

type VersionSpec struct {
	Command    []string `yaml:"command"`
	Constraint string   `yaml:"constraint"`
}

// ActionSpec is one install step; exactly one field is set.
type ActionSpec struct {
	Apt         []string       `yaml:"apt"`
	Upgrade     string         `yaml:"upgrade"` // "upgrade" or "dist"
	Script      *ScriptSpec    `yaml:"script"`
	WineBoot    *WineBootSpec  `yaml:"wineboot"`
	Wine        *WineSpec      `yaml:"wine"`
	Winetricks  []string       `yaml:"winetricks"`
	Archive     *ArchiveSpec   `yaml:"archive"`
	ConfigLines *FileLinesSpec `yaml:"config_lines"`
	Shortcut    *ShortcutSpec  `yaml:"shortcut"`
}

type ScriptSpec struct {
	Run        string   `yaml:"run"`
	Env        []string `yaml:"env"`
	Privileged bool     `yaml:"privileged"`
}

type WineBootSpec struct {
	Arch string `yaml:"arch"`
}

type WineSpec struct {
	Program string   `yaml:"program"`
	Args    []string `yaml:"args"`
}

type ArchiveSpec struct {
	URL    string `yaml:"url"`
	Source string `yaml:"source"`
	Repo   string `yaml:"repo"`
	Tag    string `yaml:"tag"`
	Asset  string `yaml:"asset"`
	Dest   string `yaml:"dest"`
}

type ShortcutSpec struct {
	Path       string `yaml:"path"`
	Name       string `yaml:"name"`
	Comment    string `yaml:"comment"`
	Exec       string `yaml:"exec"`
	Icon       string `yaml:"icon"`
	Categories string `yaml:"categories"`
}

// ParseCatalog decodes a YAML catalog. Unknown fields are rejected so a
// typo does not silently drop a step.
func ParseCatalog(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("component catalog is empty")
		}
		return nil, fmt.Errorf("failed to unmarshal component catalog: %w", err)
	}
	if len(c.Components) == 0 {
		return nil, fmt.Errorf("component catalog has no components")
	}
	return &c, nil
}

// LoadCatalog reads the catalog at path, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read component catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Vars maps placeholder names to values.
type Vars map[string]string

var placeholder = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)

// Expand replaces ${NAME} for every known NAME. Anything else, including
// plain $NAME shell references, is left for the shell.
func (v Vars) Expand(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		if val, ok := v[m[2:len(m)-1]]; ok {
			return val
		}
		return m
	})
}

func (v Vars) expandAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = v.Expand(s)
	}
	return out
}

// Build turns the catalog into a graph. Dangling references survive so
// that validation can report them; malformed entries do not.
func (c *Catalog) Build(vars Vars, cacheDir string) (*component.Graph, error) {
	components := make([]component.Component, 0, len(c.Components))
	for _, spec := range c.Components {
		comp, err := spec.build(vars, cacheDir)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", spec.ID, err)
		}
		components = append(components, comp)
	}
	return component.NewGraph(components...)
}

func (s ComponentSpec) build(vars Vars, cacheDir string) (component.Component, error) {
	comp := component.Component{
		ID:           s.ID,
		Name:         s.Name,
		Category:     component.Category(s.Category),
		Priority:     s.Priority,
		Dependencies: s.Dependencies,
		Children:     s.Children,
	}
	if len(s.Children) > 0 {
		if len(s.Check) > 0 || len(s.Install) > 0 {
			return comp, fmt.Errorf("a parent cannot have its own check or install steps")
		}
		return comp, nil
	}

	checks := make(probe.All, 0, len(s.Check))
	for i, cs := range s.Check {
		checker, err := cs.build(vars)
		if err != nil {
			return comp, fmt.Errorf("check[%d]: %w", i, err)
		}
		checks = append(checks, checker)
	}
	switch len(checks) {
	case 0:
		return comp, fmt.Errorf("no check defined")
	case 1:
		comp.Check = checks[0]
	default:
		comp.Check = checks
	}

	steps := make(actions.Sequence, 0, len(s.Install))
	for i, as := range s.Install {
		action, err := as.build(vars, cacheDir)
		if err != nil {
			return comp, fmt.Errorf("install[%d]: %w", i, err)
		}
		steps = append(steps, action)
	}
	switch len(steps) {
	case 0:
		return comp, fmt.Errorf("no install steps defined")
	case 1:
		comp.Install = steps[0]
	default:
		comp.Install = steps
	}
	return comp, nil
}

func (c CheckSpec) build(vars Vars) (component.Checker, error) {
	var out []component.Checker
	if len(c.Packages) > 0 {
		out = append(out, probe.Packages{Names: c.Packages})
	}
	if c.Path != "" {
		out = append(out, probe.Path{Path: vars.Expand(c.Path)})
	}
	if c.FileLines != nil {
		out = append(out, probe.FileLines{Path: vars.Expand(c.FileLines.Path), Lines: vars.expandAll(c.FileLines.Lines)})
	}
	if len(c.Command) > 0 {
		cmd := vars.expandAll(c.Command)
		out = append(out, probe.Command{Name: cmd[0], Args: cmd[1:]})
	}
	if c.Version != nil {
		if len(c.Version.Command) == 0 || c.Version.Constraint == "" {
			return nil, fmt.Errorf("version check needs command and constraint")
		}
		cmd := vars.expandAll(c.Version.Command)
		out = append(out, probe.Version{Name: cmd[0], Args: cmd[1:], Constraint: c.Version.Constraint})
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("exactly one check kind must be set, got %d", len(out))
	}
	return out[0], nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (a ActionSpec) build(vars Vars, cacheDir string) (component.Action, error) {
	prefix := vars["WINEPREFIX"]
	var out []component.Action
	if len(a.Apt) > 0 {
		out = append(out, actions.AptInstall{Packages: a.Apt})
	}
	if a.Upgrade != "" {
		switch a.Upgrade {
		case "upgrade":
			out = append(out, actions.AptUpgrade{})
		case "dist":
			out = append(out, actions.AptUpgrade{Dist: true})
		default:
			return nil, fmt.Errorf("unknown upgrade mode %q", a.Upgrade)
		}
	}
	if a.Script != nil {
		out = append(out, actions.Script{Script: vars.Expand(a.Script.Run), Env: vars.expandAll(a.Script.Env), Privileged: a.Script.Privileged})
	}
	if a.WineBoot != nil {
		out = append(out, actions.WineBoot{Prefix: prefix, Arch: a.WineBoot.Arch})
	}
	if a.Wine != nil {
		out = append(out, actions.Wine{Prefix: prefix, Program: vars.Expand(a.Wine.Program), Args: vars.expandAll(a.Wine.Args)})
	}
	if len(a.Winetricks) > 0 {
		out = append(out, actions.Winetricks{Prefix: prefix, Verbs: a.Winetricks})
	}
	if a.Archive != nil {
		ar := a.Archive
		if ar.Dest == "" || (ar.URL == "" && ar.Source == "" && ar.Repo == "") {
			return nil, fmt.Errorf("archive needs dest and one of url, source or repo")
		}
		url, source := vars.Expand(ar.URL), vars.Expand(ar.Source)
		if isURL(source) {
			url, source = source, ""
		}
		out = append(out, actions.Archive{
			URL:      url,
			Source:   source,
			Repo:     ar.Repo,
			Tag:      ar.Tag,
			Asset:    ar.Asset,
			CacheDir: cacheDir,
			Dest:     vars.Expand(ar.Dest),
		})
	}
	if a.ConfigLines != nil {
		out = append(out, actions.ConfigLines{Path: vars.Expand(a.ConfigLines.Path), Lines: vars.expandAll(a.ConfigLines.Lines)})
	}
	if a.Shortcut != nil {
		sc := a.Shortcut
		out = append(out, actions.Shortcut{
			Path:       vars.Expand(sc.Path),
			Name:       sc.Name,
			Comment:    sc.Comment,
			Exec:       vars.Expand(sc.Exec),
			Icon:       vars.Expand(sc.Icon),
			Categories: sc.Categories,
		})
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("exactly one action kind must be set, got %d", len(out))
	}
	return out[0], nil
}
