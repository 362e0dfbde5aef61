// scripts/seed_users.go creates accounts directly in MongoDB. There is no
// public sign-up route, so this is how admins, workers and citizens are made.
//
//	go run ./scripts --username=olena --password=secret123 --role=WORKER
//	go run ./scripts --demo
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"civic-tracker/internal/config"
	"civic-tracker/internal/database"
	"civic-tracker/internal/models"
	"civic-tracker/internal/services"
	"civic-tracker/pkg/auth"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

type seedUser struct {
	username string
	password string
	role     models.UserRole
}

var demoUsers = []seedUser{
	{username: "admin", password: "admin123", role: models.RoleAdmin},
	{username: "worker", password: "worker123", role: models.RoleWorker},
	{username: "citizen", password: "citizen123", role: models.RoleUser},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		username string
		password string
		role     string
		demo     bool
	)

	flagSet := pflag.NewFlagSet("seed-users", pflag.ContinueOnError)
	flagSet.StringVarP(&username, "username", "u", "", "username of the account to create")
	flagSet.StringVarP(&password, "password", "p", "", "password of the account to create")
	flagSet.StringVarP(&role, "role", "r", string(models.RoleUser), "role: USER, ADMIN or WORKER")
	flagSet.BoolVar(&demo, "demo", false, "create the demo admin, worker and citizen accounts")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	var users []seedUser
	if demo {
		users = demoUsers
	} else {
		r, ok := models.FromString(strings.ToUpper(role))
		if !ok {
			return fmt.Errorf("unknown role %q", role)
		}
		if username == "" || password == "" {
			return fmt.Errorf("--username and --password are required (or use --demo)")
		}
		users = []seedUser{{username: username, password: password, role: r}}
	}

	cfg := config.Load()
	db, err := database.NewMongoDB(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer db.Close(ctx)

	if err := db.CreateIndexes(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to create some indexes")
	}

	store := database.NewMongoStore(db, false)
	userService := services.NewUserService(store, auth.NewJWTManager(cfg.JWTSecret, time.Hour))

	created := 0
	for _, u := range users {
		user, err := userService.Register(ctx, u.username, u.password, u.role)
		if err != nil {
			if services.IsKind(err, services.KindConflict) {
				logrus.WithField("username", u.username).Info("User already exists, skipping")
				continue
			}
			return err
		}
		created++
		logrus.WithFields(logrus.Fields{
			"id":       user.ID.Hex(),
			"username": user.Username,
			"role":     user.Role,
		}).Info("User created")
	}

	fmt.Printf("Created %d user(s)\n", created)
	return nil
}
