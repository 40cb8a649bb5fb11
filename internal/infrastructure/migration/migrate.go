// Package migration applies the SQL schema migrations with golang-migrate.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator runs migrations against one database
type Migrator struct {
	engine *migrate.Migrate
	log    *zap.Logger
}

// New opens source (usually the embedded migrations.FS) and binds it to db
func New(db *sql.DB, source fs.FS, logger *zap.Logger) (*Migrator, error) {
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("migration: open source: %w", err)
	}
	target, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration: postgres target: %w", err)
	}
	engine, err := migrate.NewWithInstance("iofs", src, "postgres", target)
	if err != nil {
		return nil, fmt.Errorf("migration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{engine: engine, log: logger.Named("migrate")}, nil
}

func (m *Migrator) Up() error   { return m.run("up", m.engine.Up) }
func (m *Migrator) Down() error { return m.run("down", m.engine.Down) }

// Steps applies n migrations, rolling back when n is negative
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("steps %+d", n), func() error { return m.engine.Steps(n) })
}

// run executes one migrate operation. ErrNoChange counts as success.
func (m *Migrator) run(op string, fn func() error) error {
	log := m.log.With(zap.String("op", op))
	log.Info("applying migrations")

	switch err := fn(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("schema already current")
		return nil
	case err != nil:
		return fmt.Errorf("migration: %s: %w", op, err)
	}

	at, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("migrations applied", zap.Uint("at", at), zap.Bool("dirty", dirty))
	return nil
}

// Version returns the applied version. A fresh database reports 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.engine.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("migration: read version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied without running anything. It is the
// way out of a dirty state after a failed migration was fixed by hand.
func (m *Migrator) Force(version int) error {
	m.log.Warn("forcing schema version", zap.Int("at", version))
	if err := m.engine.Force(version); err != nil {
		return fmt.Errorf("migration: force %d: %w", version, err)
	}
	return nil
}

// Close releases the source and the database target
func (m *Migrator) Close() error {
	srcErr, dbErr := m.engine.Close()
	return errors.Join(srcErr, dbErr)
}
