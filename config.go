package pyboot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LaunchFileName is the per-project configuration file discovered by walking
// up from the workspace directory.
const LaunchFileName = "pyboot.yaml"

// Config holds global configuration for pyboot
type Config struct {
	// PythonBin is the Python interpreter to launch (default: discovered)
	PythonBin string `yaml:"python_bin"`

	// Entrypoint is the default entry point file (default: main.py)
	Entrypoint string `yaml:"entrypoint"`

	// DataDir is the path to pyboot's data directory (default: ~/.config/pyboot)
	DataDir string `yaml:"data_dir"`

	// Envs are environment variables applied to every launch
	// Format: "NAME=VALUE" for explicit values, "NAME" for host passthrough
	Envs []string `yaml:"envs"`
}

// ProjectConfig holds per-project configuration settings
type ProjectConfig struct {
	// WorkspacePath is the absolute path to the project workspace
	// This is stored to allow listing projects by path
	WorkspacePath string `yaml:"workspace_path"`

	// Entrypoint overrides the global entry point for this project
	Entrypoint string `yaml:"entrypoint"`

	// PythonBin overrides the global interpreter for this project
	PythonBin string `yaml:"python_bin"`

	// Envs are environment variables for this project's launches
	Envs []string `yaml:"envs"`

	// Restart relaunches the entry point when it exits with a non-zero status
	Restart bool `yaml:"restart"`

	// MaxRestarts bounds relaunch attempts when Restart is set (0 = default)
	MaxRestarts int `yaml:"max_restarts"`

	// RestartDelay is the wait between relaunch attempts, as a Go duration
	// string such as "5s" (empty = default)
	RestartDelay string `yaml:"restart_delay"`
}

// LaunchFileConfig represents the configuration from a pyboot.yaml file
// This is the user-facing format that gets loaded from disk
type LaunchFileConfig struct {
	// Entrypoint file to launch for this project
	Entrypoint string `yaml:"entrypoint"`

	// PythonBin interpreter override
	PythonBin string `yaml:"python_bin"`

	// Envs for this project's launches
	Envs []string `yaml:"envs"`

	// Restart setting override
	Restart bool `yaml:"restart"`

	// MaxRestarts override
	MaxRestarts int `yaml:"max_restarts"`

	// RestartDelay override
	RestartDelay string `yaml:"restart_delay"`
}

// LaunchFileLocation contains info about a loaded pyboot.yaml file
type LaunchFileLocation struct {
	// Path is the absolute path to the pyboot.yaml file
	Path string

	// Dir is the directory containing the pyboot.yaml file
	Dir string

	// Config is the parsed configuration
	Config *LaunchFileConfig
}

// LoadConfig loads the global pyboot configuration from ~/.config/pyboot/config.yaml
// Creates the ~/.config/pyboot directory if it doesn't exist
// Returns sensible defaults if config file doesn't exist
func LoadConfig() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	// Default configuration - use XDG-style ~/.config/pyboot
	config := &Config{
		Entrypoint: DefaultEntrypoint,
		DataDir:    filepath.Join(homeDir, ".config", "pyboot"),
		Envs:       []string{},
	}

	// Ensure ~/.config/pyboot directory exists
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pyboot data directory: %w", err)
	}

	// Try to load config file
	configPath := filepath.Join(config.DataDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Config doesn't exist, return defaults
			zlog.Debug("no config file found, using defaults",
				zap.String("config_path", configPath))
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Entrypoint == "" {
		config.Entrypoint = DefaultEntrypoint
	}

	// Ensure paths are absolute and expanded. A bare interpreter name like
	// "python3" stays as-is for PATH lookup.
	config.DataDir = expandPath(config.DataDir)
	if config.PythonBin != "" && filepath.Base(config.PythonBin) != config.PythonBin {
		config.PythonBin = expandPath(config.PythonBin)
	}

	zlog.Debug("loaded config",
		zap.String("config_path", configPath),
		zap.String("python_bin", config.PythonBin),
		zap.String("entrypoint", config.Entrypoint),
		zap.String("data_dir", config.DataDir))

	return config, nil
}

// SaveConfig saves the global configuration to ~/.config/pyboot/config.yaml
func SaveConfig(config *Config) error {
	configPath := filepath.Join(config.DataDir, "config.yaml")

	// Ensure directory exists
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create pyboot data directory: %w", err)
	}

	// Serialize to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	zlog.Debug("saved config", zap.String("config_path", configPath))
	return nil
}

// ProjectHash computes the identifier for a workspace path: the first 12 hex
// chars of the SHA-256 of the absolute path.
func ProjectHash(workspacePath string) (string, error) {
	absPath, err := filepath.Abs(workspacePath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	hash := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(hash[:])[:12], nil
}

// GetProjectConfig loads the per-project configuration based on workspace path
// Loads from ~/.config/pyboot/projects/<hash>/config.yaml if exists
// Returns defaults otherwise
func GetProjectConfig(workspacePath string) (*ProjectConfig, string, error) {
	projectHash, err := ProjectHash(workspacePath)
	if err != nil {
		return nil, "", err
	}

	absPath, err := filepath.Abs(workspacePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Default project config
	projectConfig := &ProjectConfig{}

	// Load global config to get data directory
	globalConfig, err := LoadConfig()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load global config: %w", err)
	}

	// Try to load project config
	projectDir := filepath.Join(globalConfig.DataDir, "projects", projectHash)
	configPath := filepath.Join(projectDir, "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Project config doesn't exist, return defaults
			zlog.Debug("no project config found, using defaults",
				zap.String("workspace", absPath),
				zap.String("project_hash", projectHash),
				zap.String("config_path", configPath))
			return projectConfig, projectHash, nil
		}
		return nil, "", fmt.Errorf("failed to read project config: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, projectConfig); err != nil {
		return nil, "", fmt.Errorf("failed to parse project config: %w", err)
	}

	zlog.Debug("loaded project config",
		zap.String("workspace", absPath),
		zap.String("project_hash", projectHash),
		zap.String("config_path", configPath),
		zap.String("entrypoint", projectConfig.Entrypoint))

	return projectConfig, projectHash, nil
}

// SaveProjectConfig saves the per-project configuration
func SaveProjectConfig(workspacePath string, projectConfig *ProjectConfig) error {
	// Convert to absolute path
	absPath, err := filepath.Abs(workspacePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Ensure workspace path is stored in the config
	projectConfig.WorkspacePath = absPath

	projectHash, err := ProjectHash(absPath)
	if err != nil {
		return err
	}

	// Load global config to get data directory
	globalConfig, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	// Ensure project directory exists
	projectDir := filepath.Join(globalConfig.DataDir, "projects", projectHash)
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	configPath := filepath.Join(projectDir, "config.yaml")

	// Serialize to YAML
	data, err := yaml.Marshal(projectConfig)
	if err != nil {
		return fmt.Errorf("failed to serialize project config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write project config file: %w", err)
	}

	zlog.Debug("saved project config",
		zap.String("workspace", absPath),
		zap.String("project_hash", projectHash),
		zap.String("config_path", configPath))

	return nil
}

// RemoveProjectData removes all stored data for a project.
func RemoveProjectData(workspacePath string) error {
	absPath, err := filepath.Abs(workspacePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	projectHash, err := ProjectHash(absPath)
	if err != nil {
		return err
	}

	// Load global config to get data directory
	globalConfig, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	// Remove project directory
	projectDir := filepath.Join(globalConfig.DataDir, "projects", projectHash)

	zlog.Debug("removing project data",
		zap.String("workspace", absPath),
		zap.String("project_hash", projectHash),
		zap.String("project_dir", projectDir))

	if err := os.RemoveAll(projectDir); err != nil {
		return fmt.Errorf("failed to remove project directory: %w", err)
	}

	zlog.Info("removed project data",
		zap.String("workspace", absPath),
		zap.String("project_hash", projectHash))

	return nil
}

// ProjectInfo contains information about a known project
type ProjectInfo struct {
	// Hash is the project hash (directory name)
	Hash string

	// WorkspacePath is the absolute path to the workspace
	WorkspacePath string

	// Config is the project configuration
	Config *ProjectConfig
}

// ListProjects returns information about all known projects
func ListProjects() ([]ProjectInfo, error) {
	globalConfig, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}

	projectsDir := filepath.Join(globalConfig.DataDir, "projects")

	// Check if projects directory exists
	if _, err := os.Stat(projectsDir); os.IsNotExist(err) {
		return nil, nil // No projects yet
	}

	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects directory: %w", err)
	}

	var projects []ProjectInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		projectHash := entry.Name()
		configPath := filepath.Join(projectsDir, projectHash, "config.yaml")

		data, err := os.ReadFile(configPath)
		if err != nil {
			zlog.Debug("failed to read project config",
				zap.String("hash", projectHash),
				zap.Error(err))
			continue
		}

		var config ProjectConfig
		if err := yaml.Unmarshal(data, &config); err != nil {
			zlog.Debug("failed to parse project config",
				zap.String("hash", projectHash),
				zap.Error(err))
			continue
		}

		projects = append(projects, ProjectInfo{
			Hash:          projectHash,
			WorkspacePath: config.WorkspacePath,
			Config:        &config,
		})
	}

	return projects, nil
}

// FindLaunchFile searches for a pyboot.yaml file starting from the given
// directory and walking up the directory tree. Returns nil if none is found.
func FindLaunchFile(startDir string) (*LaunchFileLocation, error) {
	absPath, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absPath
	for {
		launchPath := filepath.Join(currentDir, LaunchFileName)
		if _, err := os.Stat(launchPath); err == nil {
			data, err := os.ReadFile(launchPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read pyboot.yaml file: %w", err)
			}

			var config LaunchFileConfig
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse pyboot.yaml file: %w", err)
			}

			zlog.Debug("found pyboot.yaml file",
				zap.String("path", launchPath),
				zap.String("entrypoint", config.Entrypoint),
				zap.Strings("envs", config.Envs))

			return &LaunchFileLocation{
				Path:   launchPath,
				Dir:    currentDir,
				Config: &config,
			}, nil
		}

		// Move to parent directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir || parentDir == "." || parentDir == "/" {
			break
		}
		currentDir = parentDir
	}

	zlog.Debug("no pyboot.yaml file found", zap.String("start_dir", absPath))
	return nil, nil
}

// MergeProjectConfig merges configuration from a pyboot.yaml file into a
// ProjectConfig. Values already present in the ProjectConfig win; the file
// fills in what the project config leaves unset.
func MergeProjectConfig(projectConfig *ProjectConfig, launchFile *LaunchFileLocation) (*ProjectConfig, error) {
	if launchFile == nil || launchFile.Config == nil {
		return projectConfig, nil
	}

	fileConfig := launchFile.Config
	merged := &ProjectConfig{
		WorkspacePath: projectConfig.WorkspacePath,
		Entrypoint:    projectConfig.Entrypoint,
		PythonBin:     projectConfig.PythonBin,
		Envs:          projectConfig.Envs,
		Restart:       projectConfig.Restart,
		MaxRestarts:   projectConfig.MaxRestarts,
		RestartDelay:  projectConfig.RestartDelay,
	}

	if merged.Entrypoint == "" {
		merged.Entrypoint = fileConfig.Entrypoint
	}
	if merged.PythonBin == "" {
		merged.PythonBin = fileConfig.PythonBin
	}
	if fileConfig.Restart {
		merged.Restart = true
	}
	if merged.MaxRestarts == 0 {
		merged.MaxRestarts = fileConfig.MaxRestarts
	}
	if merged.RestartDelay == "" {
		merged.RestartDelay = fileConfig.RestartDelay
	}

	// Merge envs by name, project entries win
	envSet := make(map[string]bool)
	for _, e := range merged.Envs {
		envSet[EnvName(e)] = true
	}
	for _, e := range fileConfig.Envs {
		if !envSet[EnvName(e)] {
			merged.Envs = append(merged.Envs, e)
			envSet[EnvName(e)] = true
		}
	}

	zlog.Debug("merged project config with pyboot.yaml file",
		zap.String("entrypoint", merged.Entrypoint),
		zap.String("python_bin", merged.PythonBin),
		zap.Strings("envs", merged.Envs))

	return merged, nil
}

// expandPath expands ~ to home directory and makes path absolute
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
