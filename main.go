// This is the main entry point of the users service.
// It loads configuration, connects to the database and dispatches to one of the
// management commands: serving the HTTP API, applying migrations, recreating the
// schema or seeding sample users.
//
// @title Users API
// @version 1.0
// @description Minimal users service: health check, list, lookup and creation of users.
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @BasePath /
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	// `godotenv` loads environment variables from a .env file, useful for development.
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/user/users-service/config"
	"github.com/user/users-service/db"
	"github.com/user/users-service/logging"
	"github.com/user/users-service/server"
	"github.com/user/users-service/users"
)

func main() {
	// In production, variables are usually set directly and there is no .env file.
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading it: %v", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "users-service",
		Usage:          "users microservice and its management commands",
		DefaultCommand: "run",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "apply pending migrations and serve the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "port", Usage: "listen port, overrides PORT"},
				},
				Action: runServer,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending schema migrations",
				Action: migrateDB,
			},
			{
				Name:   "recreate-db",
				Usage:  "drop the users table and create it again, empty",
				Action: recreateDB,
			},
			{
				Name:   "seed-db",
				Usage:  "insert the sample users, skipping those already present",
				Action: seedDB,
			},
		},
	}
}

// app bundles what every command needs.
type app struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	db     *sqlx.DB
}

// bootstrap loads the configuration, builds the logger and connects to the
// database. The returned close func releases both.
func bootstrap(ctx context.Context) (*app, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log, cfg.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &app{cfg: cfg, logger: logger, db: pool}, func() {
		_ = pool.Close()
		_ = logger.Sync()
	}, nil
}

func (a *app) userService() *users.UserService {
	return users.NewUserService(
		users.NewSQLStore(a.db),
		users.NewBcryptHasher(a.cfg.Security.BcryptCost),
		a.logger,
	)
}

func runServer(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, closeApp, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	if err := db.Migrate(a.db, a.cfg.Database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	service := a.userService()
	router := server.NewRouter(a.cfg.Server, users.NewUserHandlers(service, a.logger), a.logger)

	port := a.cfg.Server.Port
	if c.IsSet("port") {
		port = c.String("port")
	}
	return server.Run(ctx, ":"+port, router, a.logger)
}

func migrateDB(c *cli.Context) error {
	a, closeApp, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer closeApp()

	if err := db.Migrate(a.db, a.cfg.Database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.logger.Info("migrations applied")
	return nil
}

func recreateDB(c *cli.Context) error {
	a, closeApp, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer closeApp()

	if err := db.Recreate(a.db, a.cfg.Database); err != nil {
		return fmt.Errorf("failed to recreate database: %w", err)
	}
	a.logger.Info("database recreated")
	return nil
}

func seedDB(c *cli.Context) error {
	a, closeApp, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer closeApp()

	n, err := users.Seed(c.Context, a.userService(), a.cfg.Seed.Password, a.logger)
	if err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	a.logger.Info("database seeded", zap.Int("created", n))
	return nil
}
