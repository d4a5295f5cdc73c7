package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{
				"user_permissions", "user_permission_groups", "user_roles",
				"role_permission_groups", "permission_group_permissions",
			} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing grant data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		users := []struct {
			Email      string
			Name       string
			Department string
		}{
			{"dispatch@flightbase.io", "Dana Dispatch", "operations"},
			{"linecrew@flightbase.io", "Lee Linecrew", "ramp"},
			{"customer@flightbase.io", "Casey Customer", "external"},
			{"admin@flightbase.io", "Avery Admin", "it"},
		}

		for _, u := range users {
			var exists int
			if err := db.Raw("SELECT 1 FROM users WHERE email = ?", u.Email).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec(
				"INSERT INTO users (email, name, password_hash, department, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, true, now(), now())",
				u.Email, u.Name, string(hash), u.Department).Error; err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			fmt.Println("Seeded user:", u.Email)
		}

		permissions := []struct {
			Name            string
			Desc            string
			ResourceType    *string
			RequiresContext bool
		}{
			{"create_fuel_order", "Can request fuel orders", nil, false},
			{"view_fuel_order", "Can view fuel orders", strPtr("fuel_order"), false},
			{"manage_fuel_orders", "Can start, complete and cancel fuel orders", strPtr("fuel_order"), false},
			{"view_receipts", "Can view fuel order receipts", strPtr("fuel_order"), false},
			{"view_permissions", "Can inspect permission assignments", nil, false},
			{"manage_permissions", "Can grant and revoke permissions", nil, false},
		}

		for _, p := range permissions {
			var pid int64
			if err := db.Raw("SELECT id FROM permissions WHERE LOWER(name) = ?", p.Name).Row().Scan(&pid); err != nil {
				if err := db.Exec(
					"INSERT INTO permissions (name, description, resource_type, requires_resource_context, is_system_permission, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, true, true, now(), now())",
					p.Name, p.Desc, p.ResourceType, p.RequiresContext).Error; err != nil {
					log.Fatalf("failed to insert permission %s: %v", p.Name, err)
				}
				fmt.Println("Seeded permission:", p.Name)
			}
		}

		groups := []struct {
			Name        string
			Desc        string
			Category    string
			SortOrder   int
			Permissions []string
		}{
			{"fuel_desk", "Fuel desk operations", "operations", 10,
				[]string{"create_fuel_order", "view_fuel_order", "manage_fuel_orders"}},
			{"customer_portal", "Self-service customers", "customers", 20,
				[]string{"create_fuel_order", "view_fuel_order", "view_receipts"}},
			{"access_admin", "Permission administration", "administration", 30,
				[]string{"view_permissions", "manage_permissions"}},
		}

		for _, g := range groups {
			var gid int64
			if err := db.Raw("SELECT id FROM permission_groups WHERE name = ?", g.Name).Row().Scan(&gid); err != nil {
				if err := db.Exec(
					"INSERT INTO permission_groups (name, description, category, sort_order, is_system_group, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, true, true, now(), now())",
					g.Name, g.Desc, g.Category, g.SortOrder).Error; err != nil {
					log.Fatalf("failed to insert group %s: %v", g.Name, err)
				}
				if err := db.Raw("SELECT id FROM permission_groups WHERE name = ?", g.Name).Row().Scan(&gid); err != nil {
					log.Fatalf("group not found after insert %s: %v", g.Name, err)
				}
				fmt.Println("Seeded permission group:", g.Name)
			}

			for _, permName := range g.Permissions {
				var pid int64
				if err := db.Raw("SELECT id FROM permissions WHERE LOWER(name) = ?", permName).Row().Scan(&pid); err != nil {
					log.Fatalf("permission not found %s: %v", permName, err)
				}
				var exists int
				if err := db.Raw("SELECT 1 FROM permission_group_permissions WHERE group_id = ? AND permission_id = ?", gid, pid).Row().Scan(&exists); err == nil {
					continue
				}
				if err := db.Exec(
					"INSERT INTO permission_group_permissions (group_id, permission_id, created_at) VALUES (?, ?, now())",
					gid, pid).Error; err != nil {
					log.Fatalf("failed to link permission %s to group %s: %v", permName, g.Name, err)
				}
			}
		}

		roles := []struct {
			Name   string
			Desc   string
			Groups []string
		}{
			{"line_service_technician", "Ramp and fuel desk staff", []string{"fuel_desk"}},
			{"customer", "External customers", []string{"customer_portal"}},
			{"administrator", "Full administration", []string{"fuel_desk", "customer_portal", "access_admin"}},
		}

		for _, role := range roles {
			var rid int64
			if err := db.Raw("SELECT id FROM roles WHERE name = ?", role.Name).Row().Scan(&rid); err != nil {
				if err := db.Exec(
					"INSERT INTO roles (name, description, is_system_role, is_active, created_at, updated_at) VALUES (?, ?, true, true, now(), now())",
					role.Name, role.Desc).Error; err != nil {
					log.Fatalf("failed to insert role %s: %v", role.Name, err)
				}
				if err := db.Raw("SELECT id FROM roles WHERE name = ?", role.Name).Row().Scan(&rid); err != nil {
					log.Fatalf("role not found after insert %s: %v", role.Name, err)
				}
				fmt.Println("Seeded role:", role.Name)
			}

			for _, groupName := range role.Groups {
				var gid int64
				if err := db.Raw("SELECT id FROM permission_groups WHERE name = ?", groupName).Row().Scan(&gid); err != nil {
					log.Fatalf("group not found %s: %v", groupName, err)
				}
				var exists int
				if err := db.Raw("SELECT 1 FROM role_permission_groups WHERE role_id = ? AND group_id = ?", rid, gid).Row().Scan(&exists); err == nil {
					continue
				}
				if err := db.Exec(
					"INSERT INTO role_permission_groups (role_id, group_id, assigned_at, is_active) VALUES (?, ?, now(), true)",
					rid, gid).Error; err != nil {
					log.Fatalf("failed to link group %s to role %s: %v", groupName, role.Name, err)
				}
			}
		}

		assignments := map[string]string{
			"dispatch@flightbase.io": "line_service_technician",
			"linecrew@flightbase.io": "line_service_technician",
			"customer@flightbase.io": "customer",
			"admin@flightbase.io":    "administrator",
		}

		for email, roleName := range assignments {
			var uid, rid int64
			if err := db.Raw("SELECT id FROM users WHERE email = ?", email).Row().Scan(&uid); err != nil {
				log.Fatalf("user not found %s: %v", email, err)
			}
			if err := db.Raw("SELECT id FROM roles WHERE name = ?", roleName).Row().Scan(&rid); err != nil {
				log.Fatalf("role not found %s: %v", roleName, err)
			}

			var exists int
			if err := db.Raw("SELECT 1 FROM user_roles WHERE user_id = ? AND role_id = ?", uid, rid).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec(
				"INSERT INTO user_roles (user_id, role_id, assigned_at, is_active) VALUES (?, ?, now(), true)",
				uid, rid).Error; err != nil {
				log.Fatalf("failed to assign role %s to %s: %v", roleName, email, err)
			}
			fmt.Printf("Assigned role %s to %s\n", roleName, email)
		}

		fmt.Println("Seed data loaded successfully")
	},
}

func strPtr(s string) *string {
	return &s
}
