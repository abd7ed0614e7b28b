/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/mautops/procurement-gin/internal/database"
	"github.com/mautops/procurement-gin/internal/logger"
	"github.com/mautops/procurement-gin/internal/repository"
	"github.com/mautops/procurement-gin/internal/service"
	"github.com/spf13/cobra"
)

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local users",
}

// userCreateCmd 创建本地用户, 未配置 Keycloak 时用于 basic auth 登录
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a local user",
	Long: `Create a local user account.
Roles: user, purchasing, head_of_dept, manager, superadmin.
A password is only needed when the server runs without Keycloak.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := LoadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer func() {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				sqlDB.Close()
			}
		}()
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		req := &service.CreateUserRequest{}
		req.Username, _ = cmd.Flags().GetString("username")
		req.Name, _ = cmd.Flags().GetString("name")
		req.Email, _ = cmd.Flags().GetString("email")
		req.Role, _ = cmd.Flags().GetString("role")
		req.Password, _ = cmd.Flags().GetString("password")

		log := logger.Get()
		audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
		users := service.NewUserService(repository.NewUserRepository(db), nil, audit, log)
		u, err := users.CreateUser(cmd.Context(), req)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s) role=%s\n", u.Username, u.ID, u.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().String("username", "", "Username (required)")
	userCreateCmd.Flags().String("name", "", "Display name")
	userCreateCmd.Flags().String("email", "", "Email")
	userCreateCmd.Flags().String("role", "user", "Role")
	userCreateCmd.Flags().String("password", "", "Password for basic auth")
	_ = userCreateCmd.MarkFlagRequired("username")
}
