package cli

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adpulse/adpulse/internal/config"
)

var (
	tokenSubject     string
	tokenPermissions []string
	tokenTTL         time.Duration
)

type opsClaims struct {
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed bearer token",
	Long: `Issue a signed bearer token for API and WebSocket access.

The token is signed with the server's configured secret
(ADPULSE_TOKEN_SECRET or [server] token_secret in the config file).
When no secret is configured the command prompts for one without
echoing.`,
	RunE: runToken,
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	secret := cfg.TokenSecret
	if secret == "" {
		secret, err = readSecret("Token secret: ")
		if err != nil {
			return err
		}
		if secret == "" {
			return fmt.Errorf("a signing secret is required")
		}
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, opsClaims{
		Permissions: tokenPermissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tokenSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		return fmt.Errorf("token signing failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), signed)
	return nil
}

// readSecret reads a secret from stdin without echoing.
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "ops", "Token subject")
	tokenCmd.Flags().StringSliceVar(&tokenPermissions, "permission", nil, "Permission to grant (repeatable)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to the configured TTL)")
	RootCmd.AddCommand(tokenCmd)
}
