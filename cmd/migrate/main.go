package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/editdesk/backend/internal/infrastructure/config"
	"github.com/editdesk/backend/internal/infrastructure/logger"
	"github.com/editdesk/backend/internal/infrastructure/migration"
	"github.com/editdesk/backend/internal/infrastructure/persistence/models"
	"github.com/editdesk/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// session is what a command runs against
type session struct {
	args   []string
	dir    string
	source fs.FS
	log    *zap.Logger
	db     *sql.DB
	m      *migration.Migrator
}

type command struct {
	usage    string
	summary  string
	database bool
	run      func(s *session) error
}

var commands = map[string]command{
	"up": {
		usage: "up", summary: "Apply all pending migrations", database: true,
		run: func(s *session) error { return s.m.Up() },
	},
	"down": {
		usage: "down", summary: "Roll back all migrations", database: true,
		run: func(s *session) error { return s.m.Down() },
	},
	"step": {
		usage: "step <n>", summary: "Apply n migrations, negative n rolls back", database: true,
		run: func(s *session) error {
			n, err := s.intArg("step count")
			if err != nil {
				return err
			}
			return s.m.Steps(n)
		},
	},
	"force": {
		usage: "force <version>", summary: "Mark version applied after a failed run was fixed by hand", database: true,
		run: func(s *session) error {
			v, err := s.intArg("version")
			if err != nil {
				return err
			}
			return s.m.Force(v)
		},
	},
	"version": {
		usage: "version", summary: "Show the applied version", database: true,
		run: func(s *session) error {
			v, dirty, err := s.m.Version()
			if err != nil {
				return err
			}
			s.log.Info("Schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
			return nil
		},
	},
	"check": {
		usage: "check", summary: "Verify every table the service maps exists", database: true,
		run: checkSchema,
	},
	"create": {
		usage: "create <name> [description]", summary: "Write a new up/down migration pair",
		run: func(s *session) error {
			if len(s.args) == 0 {
				return errors.New("migration name required")
			}
			description := ""
			if len(s.args) > 1 {
				description = strings.Join(s.args[1:], " ")
			}
			mf, err := migration.CreateMigration(s.dir, s.args[0], description)
			if err != nil {
				return err
			}
			s.log.Info("Migration created",
				zap.Uint("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	},
	"list": {
		usage: "list", summary: "List the migrations of the source",
		run: func(s *session) error {
			list, err := migration.ListMigrations(s.source)
			if err != nil {
				return err
			}
			for _, m := range list {
				fmt.Printf("%06d_%s (down: %t)\n", m.Version, m.Name, m.HasDown)
			}
			s.log.Info("Migrations listed", zap.Int("count", len(list)))
			return nil
		},
	},
}

func main() {
	dir := flag.String("path", "", "read migrations from this directory instead of the embedded set")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: *level, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	s := &session{args: flag.Args()[1:], dir: *dir, source: migrations.FS, log: log}
	if s.dir != "" {
		s.source = os.DirFS(s.dir)
	} else {
		s.dir = "migrations"
	}

	if err := execute(s, cmd); err != nil {
		log.Error("Migration command failed", zap.String("command", name), zap.Error(err))
		os.Exit(1)
	}
}

func execute(s *session, cmd command) error {
	if !cmd.database {
		return cmd.run(s)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	s.db, err = sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.db.Close()
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	s.m, err = migration.New(s.db, s.source, s.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.m.Close(); err != nil {
			s.log.Warn("Migrator not closed cleanly", zap.Error(err))
		}
	}()
	return cmd.run(s)
}

func checkSchema(s *session) error {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: s.db}), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return err
	}
	missing, err := migration.MissingTables(gdb, models.All()...)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema is missing tables: %s", strings.Join(missing, ", "))
	}
	s.log.Info("Schema covers every mapped table", zap.Int("tables", len(models.All())))
	return nil
}

func (s *session) intArg(what string) (int, error) {
	if len(s.args) == 0 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(s.args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s.args[0])
	}
	return n, nil
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Usage: migrate [flags] <command> [arguments]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, name := range []string{"up", "down", "step", "force", "version", "check", "create", "list"} {
		c := commands[name]
		fmt.Fprintf(out, "  %-30s %s\n", c.usage, c.summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	flag.PrintDefaults()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "The database is read from EDITDESK_DATABASE_HOST, _PORT, _USER, _PASSWORD, _DBNAME and _SSLMODE.")
}
