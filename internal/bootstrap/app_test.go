package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"skill-recommender/internal/employees"
	"skill-recommender/internal/retrain"
	"skill-recommender/internal/shared/config"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "reference.csv")
	rows := "job_title,skill\nSupport Specialist,customer service\nSupport Specialist,ticketing\nNurse,patient care\n"
	if err := os.WriteFile(csvPath, []byte(rows), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return config.Config{
		Port:             "0",
		Env:              "dev",
		ObjectStoreType:  "local",
		LocalStoreDir:    filepath.Join(dir, "store"),
		ReferenceCSVPath: csvPath,
		ModelName:        "test_model",
		DefaultRoleTitle: "Support Specialist",
		PredictTopN:      10,
		RetrainMode:      "inline",
		FeedbackRate:     1,
		FeedbackBurst:    5,
	}
}

func TestBuildDevUsesMemoryAndInlineRetrain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(devConfig(t), Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close()

	if _, ok := app.Employees.(*employees.MemoryRepo); !ok {
		t.Fatalf("expected memory employees repo, got %T", app.Employees)
	}
	if _, ok := app.Dispatcher.(retrain.InlineDispatcher); !ok {
		t.Fatalf("expected inline dispatcher, got %T", app.Dispatcher)
	}
	if app.Router == nil {
		t.Fatalf("expected router")
	}

	if err := app.LoadModel(context.Background()); err != nil {
		t.Fatalf("load model before publish: %v", err)
	}
	if app.Model.Model() != nil {
		t.Fatalf("expected no model before the first retrain")
	}
}

func TestBuildRetrainThenLoad(t *testing.T) {
	cfg := devConfig(t)
	app, err := Build(cfg, Options{SkipRouter: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := context.Background()

	if err := app.Worker.RunOnce(ctx, "manual"); err != nil {
		t.Fatalf("retrain: %v", err)
	}
	version := app.Model.Version()
	if version == "" {
		t.Fatalf("expected a serving version after retrain")
	}

	// a second process sharing the store picks up the same version
	other, err := Build(cfg, Options{SkipRouter: true})
	if err != nil {
		t.Fatalf("build second app: %v", err)
	}
	if err := other.LoadModel(ctx); err != nil {
		t.Fatalf("load model: %v", err)
	}
	if other.Model.Version() != version {
		t.Fatalf("expected version %q, got %q", version, other.Model.Version())
	}
}

func TestHealthReportsModelState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(devConfig(t), Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestBuildSQSModeRequiresQueue(t *testing.T) {
	cfg := devConfig(t)
	cfg.RetrainMode = "sqs"
	if _, err := Build(cfg, Options{SkipRouter: true}); err == nil {
		t.Fatalf("expected error without queue url")
	}
}

func TestBuildWithRedisSharesClient(t *testing.T) {
	cfg := devConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1/0"
	app, err := Build(cfg, Options{SkipRouter: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if app.Redis == nil || app.Lock == nil {
		t.Fatalf("expected redis client and retrain lock")
	}
	if err := app.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cfg.RedisURL = "not-a-url"
	if _, err := Build(cfg, Options{SkipRouter: true}); err == nil {
		t.Fatalf("expected error for bad redis url")
	}
}
