// Command devtoken prints a token that the relay accepts in HELLO. By default
// it prints an unsigned dev_ token; with --jwt it signs an HS256 token with
// JWT_SECRET.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"roomrelay/auth"
	"roomrelay/domain"
)

func main() {
	userID := pflag.String("user", "", "user id (random when empty)")
	orgID := pflag.String("org", "", "organization id (random when empty)")
	email := pflag.String("email", "dev@example.com", "user email")
	name := pflag.String("name", "Dev User", "user display name")
	signed := pflag.Bool("jwt", false, "sign an HS256 token with JWT_SECRET instead of a dev_ token")
	ttl := pflag.Duration("ttl", time.Hour, "lifetime of a signed token")
	envFile := pflag.String("env-file", ".env", "dotenv file to load")
	pflag.Parse()

	_ = godotenv.Load(*envFile)

	id := domain.Identity{
		UserID: orDefault(*userID),
		OrgID:  orDefault(*orgID),
		Email:  *email,
		Name:   *name,
	}

	token, err := mint(id, *signed, *ttl)
	if err != nil {
		slog.Error("mint token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func mint(id domain.Identity, signed bool, ttl time.Duration) (string, error) {
	if !signed {
		return auth.EncodeDevToken(id)
	}
	v, err := auth.NewJWTVerifier(os.Getenv("JWT_SECRET"), 0)
	if err != nil {
		return "", err
	}
	return v.Sign(id, ttl)
}

func orDefault(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
