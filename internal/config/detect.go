package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Toolchain identifies the project ecosystem the probes target.
type Toolchain string

const (
	ToolchainUnknown Toolchain = ""
	ToolchainGo      Toolchain = "go"
	ToolchainRust    Toolchain = "rust"
	ToolchainPython  Toolchain = "python"
	ToolchainNode    Toolchain = "node"
)

// DetectToolchain inspects the manifest files in dir. go.mod, Cargo.toml,
// Python manifests and package.json are checked in that order; the first
// match wins.
func DetectToolchain(dir string) Toolchain {
	switch {
	case exists(dir, "go.mod"):
		return ToolchainGo
	case exists(dir, "Cargo.toml"):
		return ToolchainRust
	case exists(dir, "pyproject.toml"), exists(dir, "setup.py"), exists(dir, "requirements.txt"):
		return ToolchainPython
	case exists(dir, "package.json"):
		return ToolchainNode
	}
	return ToolchainUnknown
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// DetectProjectName tries to infer the project name from common project
// manifest files in dir. It checks pyproject.toml, package.json, and
// Cargo.toml in that order, returning the first non-empty name found.
// Falls back to the directory base name if no manifest provides a name.
// Errors from manifest files are silently ignored.
func DetectProjectName(dir string) string {
	if name := detectFromPyproject(dir); name != "" {
		return name
	}
	if name := readPackageJSON(dir).Name; name != "" {
		return name
	}
	if name := detectFromCargo(dir); name != "" {
		return name
	}
	return filepath.Base(dir)
}

// NodeTestScript returns the package.json "test" script, or "" when there
// is none or it is the npm init placeholder.
func NodeTestScript(dir string) string {
	script := strings.TrimSpace(readPackageJSON(dir).Scripts["test"])
	if strings.Contains(script, "no test specified") {
		return ""
	}
	return script
}

type pyprojectTOML struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func detectFromPyproject(dir string) string {
	var p pyprojectTOML
	if _, err := toml.DecodeFile(filepath.Join(dir, "pyproject.toml"), &p); err != nil {
		return ""
	}
	if p.Project.Name != "" {
		return p.Project.Name
	}
	return p.Tool.Poetry.Name
}

type packageJSON struct {
	Name    string            `json:"name"`
	Scripts map[string]string `json:"scripts"`
}

func readPackageJSON(dir string) packageJSON {
	var p packageJSON
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return p
	}
	_ = json.Unmarshal(data, &p)
	return p
}

type cargoTOML struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

func detectFromCargo(dir string) string {
	var c cargoTOML
	if _, err := toml.DecodeFile(filepath.Join(dir, "Cargo.toml"), &c); err != nil {
		return ""
	}
	return c.Package.Name
}
