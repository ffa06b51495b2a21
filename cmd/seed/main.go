// seed loads the demo dataset (an admin, two staff members, two students
// and a handful of tickets) into the configured store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/uniticket/internal/clock"
	"github.com/spec-kit/uniticket/internal/config"
	"github.com/spec-kit/uniticket/internal/observability"
	"github.com/spec-kit/uniticket/internal/persistence"
	"github.com/spec-kit/uniticket/internal/repository"
	"github.com/spec-kit/uniticket/internal/repository/memstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		fixturePath string
		dsn         string
		dryRun      bool
		migrate     bool
	)
	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVarP(&fixturePath, "fixture", "f", "", "YAML fixture to load (default: built-in demo dataset)")
	flagSet.StringVar(&dsn, "dsn", "", "Postgres DSN (default: POSTGRES_DSN)")
	flagSet.BoolVar(&dryRun, "dry-run", false, "apply the fixture to an in-memory store and print the summary")
	flagSet.BoolVar(&migrate, "migrate", true, "run the embedded migrations before seeding")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	fx, err := LoadFixture(fixturePath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	seeder := &Seeder{BcryptCost: cfg.Auth.BcryptCost}

	if dryRun || cfg.Postgres.DSN == "" {
		if !dryRun {
			logger.Warn("no POSTGRES_DSN; seeding an in-memory store")
		}
		mem := memstore.New(clock.Real())
		seeder.Users, seeder.Tickets, seeder.Messages = mem.Users(), mem.Tickets(), mem.Messages()
	} else {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		if migrate {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				return err
			}
		}
		pool := pg.PoolHandle()
		seeder.Users = repository.NewUserRepository(pool)
		seeder.Tickets = repository.NewTicketRepository(pool)
		seeder.Messages = repository.NewMessageRepository(pool)
	}

	sum, err := seeder.Apply(ctx, fx)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Warn("store already contains seeded users; nothing written past the first conflict", zap.Error(err))
		}
		return err
	}
	logger.Info("seed complete",
		zap.Int("users", sum.Users),
		zap.Int("tickets", sum.Tickets),
		zap.Int("messages", sum.Messages))
	for _, u := range fx.Users {
		fmt.Printf("%-8s %-28s %s\n", u.Role, u.Email, u.Password)
	}
	return nil
}
