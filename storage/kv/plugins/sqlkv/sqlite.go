package sqlkv

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/utils/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	// SQLiteDriverName is the name of the sqlite plugin
	SQLiteDriverName = "sqlite"
)

// The sqlite plugin requires the "path" option. All access goes
// through a single connection, which makes every transaction on
// the file serializable.
var sqliteDialect = dialect{
	name:   SQLiteDriverName,
	driver: "sqlite",
	blob:   "BLOB",
	open: func(options kv.PluginOptions) (string, string, error) {
		path, err := stringOption(options, "path")

		if err != nil {
			return "", "", err
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("create dirs: %w", err)
		}

		return path, "kv", nil
	},
	temp: func() (kv.PluginOptions, error) {
		return kv.PluginOptions{
			"path": filepath.Join(os.TempDir(), fmt.Sprintf("sqlite-%s.db", uuid.MustUUID())),
		}, nil
	},
	configure: func(db *sql.DB) {
		db.SetMaxOpenConns(1)
	},
	remove: func(dsn string) error {
		if err := os.Remove(dsn); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not remove path %s: %w", dsn, err)
		}

		return nil
	},
}
