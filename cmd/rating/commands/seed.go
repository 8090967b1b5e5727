package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/safra/backend/internal/catalog"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "기본 지표 카탈로그 적재",
	Long: `사전 정의 지표와 점수 구간을 DB에 적재합니다.
이미 존재하는 지표는 갱신되며 구간은 교체됩니다.

Example:
  go run ./cmd/rating seed
  go run ./cmd/rating seed --file catalog.yaml
  go run ./cmd/rating seed --dry-run`,
	RunE: runSeed,
}

var (
	seedFile   string
	seedDryRun bool
)

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedFile, "file", "", "카탈로그 YAML 경로 (기본값: 내장 카탈로그)")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "검증만 수행")
}

func loadCatalog() (*catalog.Catalog, error) {
	var (
		c   *catalog.Catalog
		err error
	)
	if seedFile != "" {
		c, _, err = catalog.Load(seedFile)
	} else {
		c, err = catalog.Predefined()
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := catalog.Validate(c); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	c, err := loadCatalog()
	if err != nil {
		return err
	}

	hash, err := catalog.Hash(c)
	if err != nil {
		return err
	}

	PrintDoubleSeparator()
	fmt.Println("  Metric catalog")
	PrintSeparator()
	PrintKeyValue("Version", c.Version, 8)
	PrintKeyValue("Metrics", fmt.Sprintf("%d", len(c.Metrics)), 8)
	PrintKeyValue("Hash", hash[:16], 8)
	PrintSeparator()

	if seedDryRun {
		PrintSuccess("Catalog is valid (dry run)")
		return nil
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	defs := c.Definitions()
	for i, def := range defs {
		if err := a.metrics.Upsert(ctx, def); err != nil {
			return fmt.Errorf("seed %s: %w", def.Metric.Code, err)
		}
		PrintProgress("Seed", fmt.Sprintf("%s (%d bands)", def.Metric.Code, len(def.Bands)), i+1, len(defs))
	}

	a.log.WithFields(map[string]interface{}{
		"version": c.Version,
		"hash":    hash,
		"metrics": len(defs),
	}).Info("Metric catalog seeded")

	PrintSuccess(fmt.Sprintf("%d metrics seeded", len(defs)))
	return nil
}
