package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/thiagocrux/simcasi/internal/auth"
	authPostgres "github.com/thiagocrux/simcasi/internal/auth/postgres"
	userDatamodel "github.com/thiagocrux/simcasi/internal/core/datamodel/user"
	"gorm.io/gorm"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
)

const systemAccountEmail = "system@simcasi.local"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed roles, permissions and the initial accounts",
	Long:  `Seed the permission catalogue, the admin and viewer roles, an admin user and the system account. Safe to run more than once.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		hasher := auth.NewBcryptHasher(cfg.Security.BCryptCost)

		err = db.Transaction(func(tx *gorm.DB) error {
			if clearData {
				for _, table := range []string{"sessions", "password_reset_tokens", "users", "role_permissions", "permissions", "roles"} {
					if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
						return fmt.Errorf("clear %s: %w", table, err)
					}
				}
				fmt.Println("Cleared existing access control data")
			}

			permissionIDs := make(map[string]string)
			for _, code := range auth.AllPermissionCodes() {
				p, err := ensurePermission(tx, code)
				if err != nil {
					return err
				}
				permissionIDs[code] = p.ID
			}
			fmt.Printf("Seeded %d permissions\n", len(permissionIDs))

			admin, err := ensureRole(tx, "admin", "Administrator", auth.AllPermissionCodes(), permissionIDs)
			if err != nil {
				return err
			}
			if _, err := ensureRole(tx, "viewer", "Viewer", auth.ReadOnlyPermissionCodes(), permissionIDs); err != nil {
				return err
			}
			fmt.Println("Seeded roles: admin, viewer")

			if err := ensureUser(tx, hasher, "Administrator", auth.NormalizeEmail(seedAdminEmail), seedAdminPassword, admin.ID, false); err != nil {
				return err
			}
			// the system account never signs in; its password is random and discarded
			systemPassword, err := auth.GenerateRandomToken()
			if err != nil {
				return err
			}
			return ensureUser(tx, hasher, "System", systemAccountEmail, systemPassword[:auth.MaxPasswordLength/2], admin.ID, true)
		})
		if err != nil {
			log.Fatalf("seed failed: %v", err)
		}

		fmt.Println("Seed completed:", seedAdminEmail)
	},
}

func ensurePermission(tx *gorm.DB, code string) (*userDatamodel.Permission, error) {
	var p userDatamodel.Permission
	err := tx.Where("code = ? AND deleted_at IS NULL", code).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup permission %s: %w", code, err)
	}

	now := time.Now().UTC()
	p = userDatamodel.Permission{ID: uuid.NewString(), Code: code, Label: code, CreatedAt: now, UpdatedAt: now}
	if err := tx.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("insert permission %s: %w", code, err)
	}
	return &p, nil
}

func ensureRole(tx *gorm.DB, code, label string, grants []string, permissionIDs map[string]string) (*userDatamodel.Role, error) {
	role, err := authPostgres.NewRoleRepository(tx).FindByCode(context.Background(), code)
	if err != nil {
		return nil, fmt.Errorf("lookup role %s: %w", code, err)
	}
	if role == nil {
		now := time.Now().UTC()
		role = &userDatamodel.Role{ID: uuid.NewString(), Code: code, Label: label, CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(role).Error; err != nil {
			return nil, fmt.Errorf("insert role %s: %w", code, err)
		}
	}

	for _, grant := range grants {
		link := userDatamodel.RolePermission{RoleID: role.ID, PermissionID: permissionIDs[grant], CreatedAt: time.Now().UTC()}
		if err := tx.Where("role_id = ? AND permission_id = ?", link.RoleID, link.PermissionID).FirstOrCreate(&link).Error; err != nil {
			return nil, fmt.Errorf("grant %s to %s: %w", grant, code, err)
		}
	}
	return role, nil
}

func ensureUser(tx *gorm.DB, hasher auth.HashProvider, name, email, password, roleID string, system bool) error {
	var existing int64
	if err := tx.Model(&userDatamodel.User{}).Where("email = ? AND deleted_at IS NULL", email).Count(&existing).Error; err != nil {
		return fmt.Errorf("lookup user %s: %w", email, err)
	}
	if existing > 0 {
		fmt.Println("user already exists:", email)
		return nil
	}

	digest, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	u := userDatamodel.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: digest,
		RoleID:       roleID,
		IsSystem:     system,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Create(&u).Error; err != nil {
		return fmt.Errorf("insert user %s: %w", email, err)
	}
	fmt.Println("Seeded user:", email)
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@simcasi.local", "email of the seeded admin user")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "change-me-now", "password of the seeded admin user")
}
