// Command token-generator mints bearer tokens for local development and
// manual testing of the API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"

	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service/auth"
)

var (
	app = kingpin.New("token-generator", "Mint a signed access token for a taskflow user")

	secret = app.Flag("secret", "HMAC signing secret").
		Envar(config.EnvPrefix + "_AUTH_JWT_SECRET").Required().String()
	lifetime = app.Flag("lifetime", "Token lifetime").Default("60m").Duration()
	userID   = app.Flag("user", "User ID (random when omitted)").String()
	company  = app.Flag("company", "Company ID").Required().String()
	role     = app.Flag("role", "User role").Default(string(domain.RoleManager)).
			Enum(string(domain.RoleWorker), string(domain.RoleManager), string(domain.RoleAdmin))
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	token, err := generate(*secret, *lifetime, *userID, *company, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token-generator: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func generate(secret string, lifetime time.Duration, user, company, role string) (string, error) {
	actor := domain.Actor{Role: domain.Role(role)}

	var err error
	if actor.CompanyID, err = uuid.Parse(company); err != nil {
		return "", fmt.Errorf("invalid company ID: %w", err)
	}
	if user == "" {
		actor.UserID = uuid.New()
	} else if actor.UserID, err = uuid.Parse(user); err != nil {
		return "", fmt.Errorf("invalid user ID: %w", err)
	}

	svc, err := auth.NewJWTService(config.AuthConfig{JWTSecret: secret, TokenLifetime: lifetime})
	if err != nil {
		return "", err
	}
	return svc.GenerateToken(context.Background(), actor)
}
