// Command admintoken prints a bearer token for the admin user routes.
//
//	ADMIN_JWT_SECRET=... go run ./cmd/admintoken -operator alice
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/config"
)

type output struct {
	Operator  string    `json:"operator"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	var (
		operator = flag.String("operator", os.Getenv("USER"), "Name recorded in the token")
		expiry   = flag.Duration("expiry", cfg.Admin.TokenExpiry, "Token lifetime")
		format   = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if len(cfg.Admin.JWTSecret) < 32 {
		fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET must be at least 32 characters")
		os.Exit(1)
	}
	if *operator == "" {
		fmt.Fprintln(os.Stderr, "-operator is required")
		os.Exit(1)
	}

	token, expiresAt, err := auth.NewAdminTokenManager(cfg.Admin.JWTSecret, *expiry).Issue(*operator)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue token:", err)
		os.Exit(1)
	}

	out := output{Operator: *operator, Token: token, ExpiresAt: expiresAt}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}
