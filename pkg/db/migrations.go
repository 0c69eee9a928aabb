package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

const migrationsLogPrefix = "db:migrations"

// LoadMigrationFiles reads all .sql files from dir, sorted by file name.
func LoadMigrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read migration dir %s: %w", migrationsLogPrefix, dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to read %s: %w", migrationsLogPrefix, path, err)
		}
		out = append(out, string(data))
	}
	log.Info().Msgf("%s - Loaded %d migration files from %s", migrationsLogPrefix, len(out), dir)
	return out, nil
}

// ResolveMigrationPath returns path if it exists, otherwise walks up to two
// parent directories looking for it. Tests run from package directories.
func ResolveMigrationPath(path string) string {
	candidate := path
	for i := 0; i < 3; i++ {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		candidate = filepath.Join("..", candidate)
	}
	return path
}
