// Command createadmin bootstraps an administrator account.
//
// Usage:
//
//	DATABASE_URL=postgres://... createadmin [-cost N] <email> <password> [firstName] [lastName]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightcrm/brightcrm-auth/internal/config"
	"github.com/brightcrm/brightcrm-auth/internal/domain"
	"github.com/brightcrm/brightcrm-auth/internal/hash"
	"github.com/brightcrm/brightcrm-auth/internal/repository"
	"github.com/brightcrm/brightcrm-auth/internal/service"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost for the initial password")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: createadmin [-cost N] <email> <password> [firstName] [lastName]")
		os.Exit(2)
	}
	email := args[0]
	password := args[1]
	firstName := "Admin"
	lastName := "Administrator"
	if len(args) > 2 {
		firstName = args[2]
	}
	if len(args) > 3 {
		lastName = args[3]
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("ping database", zap.Error(err))
	}

	// Lockout policy is irrelevant for provisioning; defaults suffice.
	cfg := config.Config{
		LockoutMaxAttempts: 5,
		LockoutDuration:    15 * time.Minute,
	}
	auth := service.NewAuthService(repository.NewPostgresUserRepo(pool), hash.NewBcrypt(*cost), cfg, logger)

	result, err := auth.ProvisionAdmin(ctx, service.ProvisionInput{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			fmt.Fprintf(os.Stderr, "an account with email %q already exists\n", email)
			os.Exit(1)
		}
		logger.Fatal("provision admin", zap.Error(err))
	}

	fmt.Printf("Administrator %q created\n", result.Email)
	fmt.Printf("  Email:     %s\n", result.Email)
	fmt.Printf("  Full name: %s\n", result.FullName)
	fmt.Printf("  Roles:     %s\n", strings.Join(result.Roles, ", "))
	fmt.Printf("  Created:   %s\n", result.CreatedAt.Format("2006-01-02 15:04:05"))
}
