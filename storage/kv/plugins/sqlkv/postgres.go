package sqlkv

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/utils/uuid"
)

const (
	// PostgresDriverName is the name of the postgres plugin
	PostgresDriverName = "postgres"
	// PostgresDSNEnv names the environment variable
	// that temporary postgres stores connect to
	PostgresDSNEnv = "MEMEVOTE_POSTGRES_DSN"
)

// The postgres plugin requires the "dsn" option. "table_prefix"
// optionally namespaces the tables so several root stores can
// share one database. Writers take a transaction-scoped advisory
// lock on their partition and readers run on a repeatable-read
// snapshot.
var postgresDialect = dialect{
	name:     PostgresDriverName,
	driver:   "pgx",
	blob:     "BYTEA",
	numbered: true,
	open: func(options kv.PluginOptions) (string, string, error) {
		dsn, err := stringOption(options, "dsn")

		if err != nil {
			return "", "", err
		}

		prefix := "kv"

		if _, ok := options["table_prefix"]; ok {
			if prefix, err = stringOption(options, "table_prefix"); err != nil {
				return "", "", err
			}
		}

		return dsn, prefix, nil
	},
	temp: func() (kv.PluginOptions, error) {
		dsn := os.Getenv(PostgresDSNEnv)

		if dsn == "" {
			return nil, kv.ErrUnavailable
		}

		return kv.PluginOptions{
			"dsn":          dsn,
			"table_prefix": "kv_" + strings.ReplaceAll(uuid.MustUUID(), "-", ""),
		}, nil
	},
	txOptions: func(writable bool) *sql.TxOptions {
		if writable {
			return nil
		}

		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	},
	lockPartition: func(ctx context.Context, tx *sql.Tx, store, partition []byte) error {
		lockName := fmt.Sprintf("%x/%x", store, partition)
		_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", lockName)

		return err
	},
}
