package utils

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"

	"imagevault/pkg/logger"
)

// LoadEnv loads variables from a .env file in the working directory.
// Variables already present in the environment are not overridden.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		logger.LogWarn("Could not load env file: %v", err)
	}
}
