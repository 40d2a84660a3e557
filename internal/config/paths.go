// ABOUTME: Standard filesystem paths for canvas-history configuration and data
// ABOUTME: Resolves ~/.canvas-history/ for global and .canvas-history/ for project-local paths

package config

import (
	"os"
	"path/filepath"
)

const (
	globalDirName  = ".canvas-history"
	projectDirName = ".canvas-history"
)

// GlobalDir returns the user-global config directory (~/.canvas-history/).
func GlobalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", globalDirName)
	}
	return filepath.Join(home, globalDirName)
}

// ProjectDir returns the project-local config directory.
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, projectDirName)
}

// GlobalConfigFile returns the path to the global config file.
func GlobalConfigFile() string {
	return filepath.Join(GlobalDir(), "config.yaml")
}

// ProjectConfigFile returns the path to the project-local config file.
func ProjectConfigFile(projectRoot string) string {
	return filepath.Join(ProjectDir(projectRoot), "config.yaml")
}

// DefaultDBFile returns the default sqlite database path.
func DefaultDBFile() string {
	return filepath.Join(GlobalDir(), "history.db")
}
