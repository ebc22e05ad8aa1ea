package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and161185/placement/internal/limiter"
	"github.com/and161185/placement/internal/migrate"
	"github.com/and161185/placement/internal/model"
	"github.com/and161185/placement/internal/repository/postgres"
	"github.com/and161185/placement/internal/service"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseDSN == "" {
				return errors.New("database DSN is required (PLACEMENT_DATABASE_DSN)")
			}
			ctx := cmd.Context()
			switch args[0] {
			case "up":
				return migrate.Up(ctx, cfg.DatabaseDSN)
			case "down":
				return migrate.Down(ctx, cfg.DatabaseDSN)
			default:
				return migrate.Status(ctx, cfg.DatabaseDSN)
			}
		},
	}
	return cmd
}

// createUserCommand bootstraps accounts that public registration cannot
// create, such as the first admin.
func createUserCommand() *cobra.Command {
	var in service.RegisterInput
	var role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account with any role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseDSN == "" {
				return errors.New("database DSN is required (PLACEMENT_DATABASE_DSN)")
			}
			log, err := commonRun(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			db, err := postgres.New(ctx, cfg.DatabaseDSN, 1)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer db.Close()

			auth := service.NewAuthService(postgres.NewUserRepo(db), []byte(cfg.JWTKey), cfg.AccessTTL,
				limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor), log)
			// The command runs with operator rights.
			operator := &model.Actor{Role: model.RoleAdmin}
			in.Role = model.Role(role)
			u, err := auth.Register(ctx, operator, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.FullName, "full-name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(model.RoleAdmin), "student, mentor, placement, recruiter or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("full-name")
	return cmd
}
