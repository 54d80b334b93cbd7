package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/thalibox/marketplace-backend/internal/auth"
	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/db"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/migrate"
)

// envAdminPassword keeps the bootstrap password out of shell history.
const envAdminPassword = "THALIBOX_ADMIN_PASSWORD"

type options struct {
	dir        string
	name       string
	version    string
	adminName  string
	adminEmail string
}

type env struct {
	opts   options
	cfg    *config.Config
	logg   *logger.Logger
	client *db.Client
	sqlDB  *sql.DB
}

type command struct {
	needsDB bool
	run     func(ctx context.Context, e *env) error
}

var commands = map[string]command{
	"create": {run: func(_ context.Context, e *env) error {
		if e.opts.name == "" {
			return errors.New("missing -name")
		}
		path, err := migrate.CreateSQLMigration(e.opts.dir, e.opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	}},
	"validate": {run: func(_ context.Context, e *env) error {
		if err := migrate.ValidateDir(e.opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}},
	"up":     {needsDB: true, run: goose("up")},
	"down":   {needsDB: true, run: goose("down")},
	"status": {needsDB: true, run: goose("status")},
	"version": {needsDB: true, run: func(ctx context.Context, e *env) error {
		if e.opts.version == "" {
			return errors.New("missing -version")
		}
		return migrate.MigrateToVersion(ctx, e.sqlDB, e.opts.dir, e.opts.version)
	}},
	"create-admin": {needsDB: true, run: createAdmin},
}

func goose(verb string) func(context.Context, *env) error {
	return func(ctx context.Context, e *env) error {
		return migrate.Run(ctx, e.sqlDB, e.opts.dir, verb)
	}
}

func createAdmin(ctx context.Context, e *env) error {
	if e.opts.adminEmail == "" {
		return errors.New("missing -admin-email")
	}
	password := os.Getenv(envAdminPassword)
	if password == "" {
		return fmt.Errorf("missing %s", envAdminPassword)
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             e.client,
		JWTConfig:      e.cfg.JWT,
		PasswordConfig: e.cfg.Password,
	})
	if err != nil {
		return err
	}
	admin, err := registerService.CreateAdmin(ctx, e.opts.adminName, e.opts.adminEmail, password)
	if err != nil {
		return err
	}
	e.logg.Info(e.logg.WithField(ctx, "user_id", admin.ID.String()), "admin account created")
	fmt.Println("created admin:", admin.Email)
	return nil
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	_ = godotenv.Load()

	var opts options
	name := flag.String("cmd", "up", "migration command: "+commandNames())
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (create)")
	flag.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.StringVar(&opts.adminName, "admin-name", "Administrator", "display name (create-admin)")
	flag.StringVar(&opts.adminEmail, "admin-email", "", "login email (create-admin)")
	flag.Parse()

	cmd, ok := commands[*name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -cmd %q, want one of %s\n", *name, commandNames())
		os.Exit(2)
	}

	if err := run(*name, cmd, opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", *name, err)
		os.Exit(1)
	}
}

func run(name string, cmd command, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": name,
		"dir": opts.dir,
	})

	e := &env{opts: opts, cfg: cfg, logg: logg}
	if cmd.needsDB {
		e.client, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer e.client.Close()
		if e.sqlDB, err = e.client.DB().DB(); err != nil {
			return fmt.Errorf("sql database: %w", err)
		}
	}

	logg.Info(ctx, "migrate ready")
	return cmd.run(ctx, e)
}
