package confkit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads a .env file into the process environment. The first
// call wins; later calls are no-ops.
//
//   - NO_DOTENV=1 disables loading.
//   - ENV_FILE points at an explicit file.
//   - Otherwise the working directory and its parents are searched, stopping
//     at the first directory holding go.mod or .git.
//
// Existing variables are kept unless DOTENV_OVERLOAD=1.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		applyDotenv(envFile)
		return
	}
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	if path, ok := FindUpward(wd, ".env"); ok {
		applyDotenv(path)
	}
}

func applyDotenv(path string) {
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		_ = godotenv.Overload(path)
		return
	}
	_ = godotenv.Load(path)
}

// FindUpward looks for name in dir and its parents. The walk stops after the
// first directory that looks like a project root (go.mod or .git).
func FindUpward(dir, name string) (string, bool) {
	for i := 0; i < 8; i++ {
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			return candidate, true
		}
		if fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git")) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}
