package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/safra/backend/pkg/config"
	"github.com/wonny/safra/backend/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|version N]",
	Short: "DB 스키마 마이그레이션",
	Long: `내장된 SQL 마이그레이션을 적용합니다.

  up         - 최신 버전까지 적용
  down       - 모든 마이그레이션 롤백
  version N  - 버전 N으로 이동

Example:
  go run ./cmd/rating migrate up
  go run ./cmd/rating migrate version 1`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"up", "down", "version"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// migrateTarget converts command arguments to a database.Migrate target version
func migrateTarget(args []string) (int, error) {
	switch args[0] {
	case "up":
		return -1, nil
	case "down":
		return 0, nil
	case "version":
		if len(args) != 2 {
			return 0, fmt.Errorf("version requires a number")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 {
			return 0, fmt.Errorf("invalid version %q", args[1])
		}
		return v, nil
	default:
		return 0, fmt.Errorf("unknown migrate action %q", args[0])
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	target, err := migrateTarget(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	status, err := database.Migrate(cfg.Database.URL, target)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Schema at version %d (dirty: %v)", status.Version, status.Dirty))
	return nil
}
