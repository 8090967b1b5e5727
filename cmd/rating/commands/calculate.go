package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/internal/rating"
	"github.com/wonny/safra/backend/internal/report"
)

// calculateCmd represents the calculate command
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "등급 계산",
	Long: `조직/기간에 대해 등급을 계산하고 기여도 표를 출력합니다.

모델을 지정하지 않으면 조직의 기본 모델을 사용합니다.
--file 로 저장되지 않은 그래프 문서를 직접 계산할 수도 있습니다.

Example:
  go run ./cmd/rating calculate --org ORG_ID --season 2025
  go run ./cmd/rating calculate --org ORG_ID --model MODEL_ID --persist
  go run ./cmd/rating calculate --org ORG_ID --file model.json --manual n2=80`,
	RunE: runCalculate,
}

var (
	calcModelID  string
	calcFile     string
	calcOrg      string
	calcSeason   string
	calcScenario string
	calcManual   map[string]string
	calcPersist  bool
	calcTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(calculateCmd)

	calculateCmd.Flags().StringVar(&calcModelID, "model", "", "모델 ID (기본값: 조직 기본 모델)")
	calculateCmd.Flags().StringVar(&calcFile, "file", "", "그래프 문서 JSON 경로")
	calculateCmd.Flags().StringVar(&calcOrg, "org", "", "조직 ID")
	calculateCmd.Flags().StringVar(&calcSeason, "season", "", "시즌(safra) ID")
	calculateCmd.Flags().StringVar(&calcScenario, "scenario", "", "시나리오 ID")
	calculateCmd.Flags().StringToStringVar(&calcManual, "manual", nil, "정성 지표 값 (nodeID=value)")
	calculateCmd.Flags().BoolVar(&calcPersist, "persist", false, "결과 저장")
	calculateCmd.Flags().DurationVar(&calcTimeout, "timeout", 2*time.Minute, "계산 제한 시간")
	_ = calculateCmd.MarkFlagRequired("org")
	calculateCmd.MarkFlagsMutuallyExclusive("model", "file")
}

// parseManualValues converts nodeID=value pairs
func parseManualValues(raw map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for nodeID, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("manual value for %s: %w", nodeID, err)
		}
		out[nodeID] = v
	}
	return out, nil
}

func runCalculate(cmd *cobra.Command, args []string) error {
	manual, err := parseManualValues(calcManual)
	if err != nil {
		return err
	}

	var model *contracts.RatingModel
	if calcFile != "" {
		if model, err = readModelFile(calcFile); err != nil {
			return err
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), calcTimeout)
	defer cancel()

	result, err := a.service.CalculateRating(ctx, rating.CalculateInput{
		Model:          model,
		ModelID:        calcModelID,
		OrganizationID: calcOrg,
		Period:         contracts.PeriodContext{SeasonID: calcSeason, ScenarioID: calcScenario},
		ManualValues:   manual,
		Persist:        calcPersist,
	})
	if err != nil {
		return err
	}

	return report.WriteResult(os.Stdout, result, reportOptions())
}
