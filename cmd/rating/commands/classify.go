package commands

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/safra/backend/internal/rating"
	"github.com/wonny/safra/backend/internal/report"
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify SCORE",
	Short: "점수 → 등급 변환",
	Long: `0~100 점수를 AAA~C 등급으로 변환하고 등급표를 출력합니다.

Example:
  go run ./cmd/rating classify 72.5`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	score, err := strconv.ParseFloat(args[0], 64)
	if err != nil || math.IsNaN(score) {
		return fmt.Errorf("invalid score %q", args[0])
	}

	return report.WriteClassification(os.Stdout, score, rating.Classify(score), reportOptions())
}
