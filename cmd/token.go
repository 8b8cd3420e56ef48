package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/care-payments/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token",
	Long:  `Sign an access token for an operator, client or worker. Login is handled outside this service.`,
	RunE:  issueToken,
}

var (
	tokenSubject     string
	tokenRole        string
	tokenClientID    int64
	tokenWorkerID    int64
	tokenPermissions []string
)

func issueToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}

	role, err := auth.ParseRole(tokenRole)
	if err != nil {
		return err
	}

	svc := auth.NewService(
		auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.AccessTokenTTL),
		auth.NewPermissionChecker(),
	)
	token, err := svc.IssueToken(auth.Principal{
		Subject:     tokenSubject,
		Role:        role,
		ClientID:    tokenClientID,
		WorkerID:    tokenWorkerID,
		Permissions: tokenPermissions,
	})
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject, recorded as the actor on audit rows")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleAdmin), "admin, client or worker")
	tokenCmd.Flags().Int64Var(&tokenClientID, "client-id", 0, "Client the token may read (client role)")
	tokenCmd.Flags().Int64Var(&tokenWorkerID, "worker-id", 0, "Worker the token may read (worker role)")
	tokenCmd.Flags().StringSliceVar(&tokenPermissions, "permission", nil, "Explicit permissions; role defaults apply when omitted")
	_ = tokenCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(tokenCmd)
}
