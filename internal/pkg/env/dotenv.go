package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DotEnvFiles are the files LoadDotEnv reads when called without arguments.
var DotEnvFiles = []string{".env", ".env.local"}

// LoadDotEnv loads variables from files, in order. Variables already present
// in the environment are never overridden, so earlier files win over later
// ones. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = DotEnvFiles
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}
