package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/middleware"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development token signed with JWT_SECRET",
	Long: `Mint an HS256 bearer token accepted by the API when JWT_SECRET is set.
The subject must match the auth0_id of a profile, or be provisioned
with POST /api/v1/users first.`,
	RunE: runToken,
}

var tokenOpts struct {
	subject string
	role    string
	ttl     time.Duration
	secret  string
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOpts.subject, "subject", "", "token subject (auth0_id of the profile)")
	tokenCmd.Flags().StringVar(&tokenOpts.role, "role", string(models.RoleCustomer), "role claim, ADMIN or CUSTOMER")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenOpts.secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenOpts.subject == "" {
		return errors.New("--subject is required")
	}
	role := models.Role(strings.ToUpper(tokenOpts.role))
	if !role.IsValid() {
		return fmt.Errorf("unknown role %q", tokenOpts.role)
	}

	secret := tokenOpts.secret
	if secret == "" {
		config.LoadDotEnv()
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	token, err := middleware.IssueLocalToken(secret, tokenOpts.subject, string(role), tokenOpts.ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
