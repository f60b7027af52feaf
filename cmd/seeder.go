package cmd

import (
	"context"
	"fmt"

	"github.com/frahmantamala/procure-to-pay/internal/core/database"
	coreuser "github.com/frahmantamala/procure-to-pay/internal/core/user"
	"github.com/frahmantamala/procure-to-pay/internal/user"
	userPostgres "github.com/frahmantamala/procure-to-pay/internal/user/postgres"
	"github.com/frahmantamala/procure-to-pay/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with one user per role",
	Long:  `Seed the database with a staff member, both approvers and a finance user for development and testing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		lg := logger.Init(logger.Options{
			Level:  cfg.Observability.Logging.Level,
			Format: cfg.Observability.Logging.Format,
		})

		db, err := database.Open(cfg.Database, lg)
		if err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), cfg.Security.BCryptCost)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		users := user.NewService(userPostgres.NewRepository(db))
		for _, u := range seedUsers(string(hash)) {
			if err := users.Provision(ctx, u); err != nil {
				return err
			}
			lg.Info("seeded user", "username", u.Username, "role", u.Role, "user_id", u.ID)
		}
		return nil
	},
}

func seedUsers(hash string) []*user.User {
	users := []*user.User{
		{Username: "staff", Email: "staff@example.com", Name: "Sam Staff", Role: coreuser.RoleStaff},
		{Username: "approver1", Email: "approver1@example.com", Name: "Alex Approver", Role: coreuser.RoleApproverL1},
		{Username: "approver2", Email: "approver2@example.com", Name: "Blair Approver", Role: coreuser.RoleApproverL2},
		{Username: "finance", Email: "finance@example.com", Name: "Casey Finance", Role: coreuser.RoleFinance},
	}
	for _, u := range users {
		u.PasswordHash = hash
		u.IsActive = true
	}
	return users
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "password", "password given to every seeded user")
}
