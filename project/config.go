package project

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConfigFilename is the base name of the project config file.
const ConfigFilename = "signac.yaml"

// DefaultWorkspaceDir is the workspace dir used when the config does not name one.
const DefaultWorkspaceDir = "workspace"

// Config is the content of a project's config file.
type Config struct {
	// Project is the project's name.
	Project string `yaml:"project"`

	// WorkspaceDir holds the job workspaces.
	// A relative path is interpreted relative to the project root.
	WorkspaceDir string `yaml:"workspace_dir,omitempty"`

	// Sync holds default settings for synchronizing into this project.
	Sync SyncConfig `yaml:"sync,omitempty"`
}

// SyncConfig holds defaults for the sync command.
// Command-line flags override them.
type SyncConfig struct {
	Strategy string   `yaml:"strategy,omitempty"`
	Exclude  []string `yaml:"exclude,omitempty"`
	Key      string   `yaml:"key,omitempty"`
	KeyExpr  string   `yaml:"key_expr,omitempty"`
	Doc      string   `yaml:"doc,omitempty"`
	Parallel int      `yaml:"parallel,omitempty"`
	Deep     bool     `yaml:"deep,omitempty"`
	Journal  string   `yaml:"journal,omitempty"`
}

// ReadConfig reads the config file in the given project root.
// It returns an error wrapping os.ErrNotExist if there is none.
func ReadConfig(root string) (Config, error) {
	var conf Config

	path := filepath.Join(root, ConfigFilename)
	b, err := os.ReadFile(path)
	if err != nil {
		return conf, errors.Wrapf(err, "reading %s", path)
	}
	if err = yaml.Unmarshal(b, &conf); err != nil {
		return conf, errors.Wrapf(err, "parsing %s", path)
	}
	if conf.WorkspaceDir == "" {
		conf.WorkspaceDir = DefaultWorkspaceDir
	}
	return conf, nil
}

// WriteConfig writes conf to the config file in the given project root.
func WriteConfig(root string, conf Config) error {
	b, err := yaml.Marshal(conf)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	path := filepath.Join(root, ConfigFilename)
	err = os.WriteFile(path, b, 0644)
	return errors.Wrapf(err, "writing %s", path)
}
