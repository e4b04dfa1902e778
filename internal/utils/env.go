package utils

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kelsos/keeper-sync/internal/logger"
)

// envFiles lists the candidate .env files, working directory first.
func envFiles() []string {
	files := []string{".env"}

	execPath, err := os.Executable()
	if err != nil {
		logger.Debug("Could not determine executable path: %v", err)
		return files
	}
	return append(files, filepath.Join(filepath.Dir(execPath), ".env"))
}

// LoadEnvironment loads KEEPER_* settings from .env files. Variables already
// set in the environment are never overridden.
func LoadEnvironment() []string {
	var loaded []string
	for _, path := range envFiles() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("Failed to load %s: %v", path, err)
			continue
		}
		logger.Info("Loaded environment from %s", path)
		loaded = append(loaded, path)
	}
	return loaded
}
