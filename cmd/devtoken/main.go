// devtoken prints a signed identity token for local testing against the API.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/lorrc/helpdesk-backend/internal/auth"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	var (
		userFlag string
		roleFlag string
		ttl      time.Duration
		secret   string
	)
	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.StringVarP(&userFlag, "user", "u", "", "user id (default: a fresh uuid)")
	flagSet.StringVarP(&roleFlag, "role", "r", string(domain.RoleUser), "role: user, technician or admin")
	flagSet.DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	flagSet.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "signing secret (default: $JWT_SECRET)")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if secret == "" {
		return errors.New("no signing secret: set JWT_SECRET or pass --secret")
	}

	userID := uuid.New()
	if userFlag != "" {
		parsed, err := uuid.Parse(userFlag)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		userID = parsed
	}

	token, err := auth.NewTokenManager(secret, ttl).GenerateToken(userID, domain.Role(roleFlag))
	if err != nil {
		return fmt.Errorf("role %q: %w", roleFlag, err)
	}

	fmt.Fprintf(os.Stderr, "user %s (%s)\n", userID, roleFlag)
	fmt.Println(token)
	return nil
}
