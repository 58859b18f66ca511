// Package project reads and updates the local plugin project: package.json,
// the built bundle, installed node modules and the project .env file.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoPackageJSON is returned when the directory has no package.json.
	ErrNoPackageJSON = errors.New("package.json not found")

	// ErrNoName is returned when package.json has no name.
	ErrNoName = errors.New("package.json has no name")

	// ErrNoVersionField is returned when package.json has no top-level version.
	ErrNoVersionField = errors.New("package.json has no version field")
)

// =============================================================================
// Project
// =============================================================================

// Project is a plugin project on disk.
type Project struct {
	Dir             string
	Name            string
	Version         string
	Dependencies    map[string]string
	DevDependencies map[string]string
}

type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Load reads the project in dir.
func Load(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	data, err := os.ReadFile(filepath.Join(abs, "package.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", abs, ErrNoPackageJSON)
		}
		return nil, fmt.Errorf("read package.json: %w", err)
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}
	if pkg.Name == "" {
		return nil, ErrNoName
	}

	return &Project{
		Dir:             abs,
		Name:            pkg.Name,
		Version:         pkg.Version,
		Dependencies:    pkg.Dependencies,
		DevDependencies: pkg.DevDependencies,
	}, nil
}

// LoadEnv loads <dir>/.env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// PluginName returns the package name, which is also the plugin name.
func (p *Project) PluginName() string { return p.Name }

// CurrentVersion returns the package version as last read or written.
func (p *Project) CurrentVersion() string { return p.Version }

// BundlePath is where the build step writes the plugin bundle.
func (p *Project) BundlePath() string {
	return filepath.Join(p.Dir, "build", p.Name+".js")
}

// SourceMapPath is where the build step writes the bundle's source map.
func (p *Project) SourceMapPath() string {
	return p.BundlePath() + ".map"
}

// CheckFilesExist reports whether every path exists and is a regular file.
func (p *Project) CheckFilesExist(paths ...string) bool {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// InstalledVersion returns the version of pkg under node_modules, or "" if
// it is not installed.
func (p *Project) InstalledVersion(pkg string) (string, error) {
	data, err := os.ReadFile(filepath.Join(p.Dir, "node_modules", pkg, "package.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s package.json: %w", pkg, err)
	}

	var meta packageJSON
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("parse %s package.json: %w", pkg, err)
	}
	return meta.Version, nil
}

// InstalledVersions returns the installed versions of pkgs, skipping those
// that are not installed.
func (p *Project) InstalledVersions(pkgs ...string) (map[string]string, error) {
	versions := make(map[string]string, len(pkgs))
	for _, pkg := range pkgs {
		v, err := p.InstalledVersion(pkg)
		if err != nil {
			return nil, err
		}
		if v != "" {
			versions[pkg] = v
		}
	}
	return versions, nil
}

// =============================================================================
// Version Persistence
// =============================================================================

var versionValue = regexp.MustCompile(`^\s*:\s*"[^"]*"`)

// UpdateAppVersion rewrites the top-level version in package.json, leaving
// the rest of the file byte-for-byte unchanged.
func (p *Project) UpdateAppVersion(version string) error {
	path := filepath.Join(p.Dir, "package.json")
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat package.json: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read package.json: %w", err)
	}

	keyEnd, err := topLevelKeyOffset(data, "version")
	if err != nil {
		return err
	}

	loc := versionValue.FindIndex(data[keyEnd:])
	if loc == nil {
		return fmt.Errorf("version in package.json is not a string: %w", ErrNoVersionField)
	}
	encoded, err := json.Marshal(version)
	if err != nil {
		return err
	}

	valueStart := keyEnd + bytes.IndexByte(data[keyEnd:], '"')
	valueEnd := keyEnd + loc[1]

	var out bytes.Buffer
	out.Write(data[:valueStart])
	out.Write(encoded)
	out.Write(data[valueEnd:])

	if err := os.WriteFile(path, out.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write package.json: %w", err)
	}
	p.Version = version
	return nil
}

// topLevelKeyOffset returns the byte offset just after the top-level object
// key named key.
func topLevelKeyOffset(data []byte, key string) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	expectKey := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return 0, ErrNoVersionField
		}
		if err != nil {
			return 0, fmt.Errorf("parse package.json: %w", err)
		}

		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
			expectKey = depth == 1 && t == '{'
			if depth == 1 && (t == '}' || t == ']') {
				expectKey = true
			}
			continue
		case string:
			if depth == 1 && expectKey {
				if t == key {
					return int(dec.InputOffset()), nil
				}
				expectKey = false
				continue
			}
		}
		if depth == 1 {
			expectKey = true
		}
	}
}
