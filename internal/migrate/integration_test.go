//go:build integration_test

package migrate_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/tabledef/internal/database"
	"github.com/koba/tabledef/internal/diff"
	"github.com/koba/tabledef/internal/migrate"
)

// referrers are declared after their targets, so hoisting has to reorder them
const hoistedDocument = `{
	"sources": {
		"label": { "type": "text" }
	},
	"events": {
		"time": { "type": "time", "not_null": true },
		"kind": { "enum": ["flare", "cme"] },
		"magnitude": {},
		"source": { "references": "sources" }
	}
}`

type container struct {
	repository string
	tag        string
	env        []string
	port       string
	config     database.Config
}

var containers = map[string]container{
	"postgres": {
		repository: "postgres",
		tag:        "14",
		env: []string{
			"POSTGRES_PASSWORD=supersecret",
			"POSTGRES_USER=tabledef",
			"POSTGRES_DB=tabledef",
		},
		port: "5432/tcp",
		config: database.Config{
			Type:     "postgres",
			User:     "tabledef",
			Password: "supersecret",
			Database: "tabledef",
		},
	},
	"mariadb": {
		repository: "mariadb",
		tag:        "11",
		env: []string{
			"MARIADB_ROOT_PASSWORD=rootsecret",
			"MARIADB_USER=tabledef",
			"MARIADB_PASSWORD=supersecret",
			"MARIADB_DATABASE=tabledef",
		},
		port: "3306/tcp",
		config: database.Config{
			Type:     "mariadb",
			User:     "tabledef",
			Password: "supersecret",
			Database: "tabledef",
		},
	},
}

func runStore(t *testing.T, name string) database.Database {
	t.Helper()

	c := containers[name]

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	pool.MaxWait = 120 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: c.repository,
		Tag:        c.tag,
		Env:        c.env,
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		t.Fatalf("starting %s container: %s", name, err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("purging %s: %s", name, err)
		}
	})

	host, port, err := net.SplitHostPort(resource.GetHostPort(c.port))
	require.NoError(t, err)

	cfg := c.config
	cfg.Host = host
	cfg.Port = port

	var db database.Database
	if err := pool.Retry(func() error {
		db, err = database.NewDatabase(cfg, zerolog.Nop())
		if err != nil {
			return err
		}
		return db.Connect(context.Background())
	}); err != nil {
		t.Fatalf("could not connect to %s: %s", name, err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestIntegrationApply(t *testing.T) {
	for name := range containers {
		name := name

		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			db := runStore(t, name)
			reg := parse(t, hoistedDocument)
			m := migrate.New(db, zerolog.Nop())

			_, err := m.Apply(ctx, reg)
			require.NoError(t, err)

			// a second run must neither fail nor duplicate anything
			_, err = m.Apply(ctx, reg)
			require.NoError(t, err)

			tables, err := db.GetAllTables(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"enum_events_kind", "events", "sources"}, tables)

			columns, err := db.GetTableColumns(ctx, "events")
			require.NoError(t, err)
			assert.Equal(t, []string{"id", "time", "kind", "magnitude", "source"}, columns)

			values, err := db.GetEnumValues(ctx, "enum_events_kind")
			require.NoError(t, err)
			assert.Equal(t, []string{"cme", "flare"}, values)

			snap, err := diff.Inspect(ctx, db, reg)
			require.NoError(t, err)
			assert.True(t, diff.Compare(reg, snap).Empty())

			q := db.Dialect().Quote
			insertEvent := func(kind string) error {
				return exec(t, db, fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ('2024-01-01 00:00:00', '%s')`,
					q("events"), q("time"), q("kind"), kind))
			}

			assert.NoError(t, insertEvent("flare"))
			assert.Error(t, insertEvent("tsunami"))

			require.NoError(t, exec(t, db, fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES (7, 'goes')`, q("sources"), q("id"), q("label"))))
			require.NoError(t, exec(t, db, fmt.Sprintf(`UPDATE %s SET %s = 7`, q("events"), q("source"))))
			require.NoError(t, exec(t, db, fmt.Sprintf(`DELETE FROM %s WHERE %s = 7`, q("sources"), q("id"))))

			rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s`, q("source"), q("events")))
			require.NoError(t, err)
			defer rows.Close()

			require.True(t, rows.Next())
			var source *int64
			require.NoError(t, rows.Scan(&source))
			assert.Nil(t, source)
		})
	}
}
