// Command token-generator mints a bearer token for a user id, for local
// development against drill-server.
//
// Usage:
//
//	DRILL_AUTH_JWT_SECRET=... token-generator --user-id 7d1c... --lifetime 60
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/service/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:          "token-generator",
		Short:        "Mint a bearer token for drill-server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(cmd.Context(), v, out)
		},
	}

	flags := cmd.Flags()
	flags.String("user-id", "", "user id to issue the token for (random when empty)")
	flags.String("secret", "", "signing secret (env DRILL_AUTH_JWT_SECRET)")
	flags.Int("lifetime", 60, "token lifetime in minutes (env DRILL_AUTH_TOKEN_LIFETIME_MINUTES)")

	_ = v.BindPFlag("user_id", flags.Lookup("user-id"))
	_ = v.BindPFlag("auth.jwt_secret", flags.Lookup("secret"))
	_ = v.BindPFlag("auth.token_lifetime_minutes", flags.Lookup("lifetime"))
	return cmd
}

func generate(ctx context.Context, v *viper.Viper, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	userID := uuid.New()
	if raw := v.GetString("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", raw, err)
		}
		userID = parsed
	}

	jwtService, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            v.GetString("auth.jwt_secret"),
		TokenLifetimeMinutes: v.GetInt("auth.token_lifetime_minutes"),
	})
	if err != nil {
		return err
	}

	token, err := jwtService.GenerateToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	_, err = fmt.Fprintf(out, "user_id: %s\ntoken:   %s\n", userID, token)
	return err
}
