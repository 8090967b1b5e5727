package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/safra/backend/internal/contracts"
	"github.com/wonny/safra/backend/internal/modeldoc"
	"github.com/wonny/safra/backend/internal/rating"
	"github.com/wonny/safra/backend/internal/report"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "모델 그래프 검증",
	Long: `모델의 구조와 가중치 합계(100%)를 검증합니다.
--file 은 DB 없이 동작하며 v1/v2 그래프 문서를 모두 읽습니다.

Example:
  go run ./cmd/rating validate --file model.json
  go run ./cmd/rating validate --model MODEL_ID`,
	RunE: runValidate,
}

var (
	validateFile    string
	validateModelID string
)

// errInvalidModel makes the command exit non-zero after the outcome is printed
var errInvalidModel = errors.New("model is invalid")

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFile, "file", "", "그래프 문서 JSON 경로")
	validateCmd.Flags().StringVar(&validateModelID, "model", "", "저장된 모델 ID")
	validateCmd.MarkFlagsOneRequired("file", "model")
	validateCmd.MarkFlagsMutuallyExclusive("file", "model")
}

// readModelFile reads a graph document into an unsaved model
func readModelFile(path string) (*contracts.RatingModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	graph, err := modeldoc.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode model file: %w", err)
	}

	model := &contracts.RatingModel{Name: path, IsActive: true}
	graph.Apply(model)
	return model, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	var model *contracts.RatingModel
	if validateFile != "" {
		m, err := readModelFile(validateFile)
		if err != nil {
			return err
		}
		model = m
	} else {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		m, _, err := a.service.LoadModel(context.Background(), validateModelID)
		if err != nil {
			return err
		}
		model = m
	}

	outcome := rating.Validate(model)
	if err := report.WriteValidation(os.Stdout, outcome, reportOptions()); err != nil {
		return err
	}
	if !outcome.OK {
		return errInvalidModel
	}
	return nil
}
