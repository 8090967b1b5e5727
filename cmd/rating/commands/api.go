package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/safra/backend/internal/api"
	"github.com/wonny/safra/backend/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET    /health                     - Health check
  POST   /api/rating/validate        - 모델 검증
  POST   /api/rating/calculate       - 등급 계산
  GET    /api/rating/classify        - 점수 → 등급
  POST   /api/rating/models          - 모델 저장
  GET    /api/rating/models          - 모델 목록
  GET    /api/rating/models/{id}     - 모델 조회
  DELETE /api/rating/models/{id}     - 모델 비활성화
  GET    /api/rating/results         - 계산 이력
  PUT    /api/rating/qualitative     - 정성 지표 값 입력

Example:
  go run ./cmd/rating api
  go run ./cmd/rating api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Safra Rating API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port":  a.cfg.Port,
		"env":   a.cfg.Env,
		"redis": a.redis.Enabled(),
	}).Info("Initializing API server")

	ratingHandler := handlers.NewRatingHandler(a.service, a.log)
	router := api.NewRouter(ratingHandler, a.db, a.log)
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
