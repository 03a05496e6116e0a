package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"example.com/liftcoach/internal/auth"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the local control API",
		Long: `Sign a token with LIFTCOACH_JWT_SECRET for a front end talking to "liftcoach run".

Example:
  liftcoach token --subject phone --scope sets:read --ttl 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.config()
			if cfg.JWTSecret == "" {
				return errMissingSecret
			}
			now := time.Now()
			token, err := auth.Issue(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, subject, scopes, ttl, now)
			if err != nil {
				return err
			}
			out := struct {
				Token     string    `json:"token"`
				Subject   string    `json:"subject"`
				Scopes    []string  `json:"scopes"`
				ExpiresAt time.Time `json:"expires_at"`
			}{token, subject, scopes, now.Add(ttl).UTC()}
			return emit(cmd, rootOpts.Format, out, func(w io.Writer) error {
				return printf(w, "%s\n", token)
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "ui", "token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeSetsRead, auth.ScopeSetsWrite}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")

	return cmd
}
