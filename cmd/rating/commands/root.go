package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wonny/safra/backend/internal/report"
)

var (
	// Global flags
	outputFormat string
	noColor      bool
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rating",
	Short: "Safra rating - 재무 지표 기반 신용 등급 엔진",
	Long: `Safra Rating Unified CLI

지표 그래프(모델)를 검증하고, 지표 값을 점수로 변환해
가중 합산 후 AAA~C 등급으로 분류합니다.

Usage:
  go run ./cmd/rating [command]

Examples:
  go run ./cmd/rating migrate up
  go run ./cmd/rating seed
  go run ./cmd/rating api
  go run ./cmd/rating calculate --org ORG_ID --season 2025
  go run ./cmd/rating validate --file model.json
  go run ./cmd/rating classify 72.5`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", string(report.FormatTable), "output format (table|json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func reportOptions() report.Options {
	return report.Options{
		Format:    report.Format(outputFormat),
		UseColors: !color.NoColor,
	}
}
