package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/safra/backend/pkg/config"
	"github.com/wonny/safra/backend/pkg/database"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "PostgreSQL 연결 테스트",
	Long: `데이터베이스 연결을 테스트하고 풀 통계와 스키마 버전을 표시합니다.

Example:
  go run ./cmd/rating test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Safra Rating Database Connection Test ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("   Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()
	fmt.Println("✅ Database connection established")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}

	fmt.Println("✅ Health Check Results:")
	PrintKeyValue("Healthy", fmt.Sprintf("%v", status.Healthy), 13)
	PrintKeyValue("Response Time", status.ResponseTime.String(), 13)
	PrintKeyValue("Timestamp", status.Timestamp.Format(time.RFC3339), 13)

	var version int
	var dirty bool
	err = db.Pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		PrintKeyValue("Schema", "not migrated (run: rating migrate up)", 13)
	} else {
		PrintKeyValue("Schema", fmt.Sprintf("version %d (dirty: %v)", version, dirty), 13)
	}

	fmt.Println("\n📊 Connection Pool Statistics:")
	PrintKeyValue("Max", fmt.Sprintf("%d", status.Stats.MaxConns), 13)
	PrintKeyValue("Total", fmt.Sprintf("%d", status.Stats.TotalConns), 13)
	PrintKeyValue("Acquired", fmt.Sprintf("%d", status.Stats.AcquiredConns), 13)
	PrintKeyValue("Idle", fmt.Sprintf("%d", status.Stats.IdleConns), 13)

	fmt.Println()
	PrintSuccess("All tests passed!")
	return nil
}

// maskPassword hides the password in a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
