package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-exam-scheduler/internal/models"
	"github.com/noah-isme/sma-exam-scheduler/internal/service"
	"github.com/noah-isme/sma-exam-scheduler/pkg/config"
)

func newTokenCommand() *cobra.Command {
	var (
		userID string
		role   string
		email  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a short-lived access token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			userRole := models.UserRole(strings.ToUpper(role))
			switch userRole {
			case models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher:
			default:
				return fmt.Errorf("role %q cannot manage exam schedules", role)
			}
			token, expiresAt, err := service.NewTokenService(cfg.JWT.Secret).Issue(userID, userRole, email, "", ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "examctl", "subject user ID")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "SUPERADMIN, ADMIN or TEACHER")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
