package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/model"
	"github.com/leafsense/leafsense_server/internal/pkg/queue"
	"github.com/leafsense/leafsense_server/internal/repository"
	"github.com/leafsense/leafsense_server/internal/service"
	"github.com/leafsense/leafsense_server/internal/testutil"
)

type stubPredictor struct{}

func (stubPredictor) Predict(_ context.Context, _ []byte) (string, float64, error) {
	return "Tomato___Late_blight", 0.9, nil
}

func (stubPredictor) Ping(_ context.Context) error {
	return nil
}

type stubGenerator struct {
	content string
}

func (g *stubGenerator) GenerateContent(_ context.Context, _ string) (string, error) {
	return g.content, nil
}

func setupProcessor(t *testing.T) (*Processor, *repository.AnalysisRepository, int64) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{
		Upload: config.UploadConfig{
			MaxImageSize:      12 << 20,
			MaxImageCount:     5,
			AllowedExtensions: []string{".png"},
		},
		Inference: config.InferenceConfig{
			TimeoutSeconds: 1,
			MaxParallel:    2,
			LowThreshold:   0.5,
			HighThreshold:  0.85,
		},
		Recommendation: config.RecommendationConfig{APIKey: "test-key", TimeoutSeconds: 1},
	}

	analysisRepo := repository.NewAnalysisRepository(db)
	svc := service.NewAnalysisService(
		analysisRepo,
		repository.NewRecommendationRepository(db),
		service.NewIntakeValidator(&cfg.Upload),
		service.NewInferenceService(stubPredictor{}, &cfg.Inference),
		service.NewRecommendationService(&stubGenerator{content: "及时用药。"}, &cfg.Recommendation),
		service.NewLocalImageStore(t.TempDir()),
		nil,
		nil,
		cfg,
	)

	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID)
	testutil.TestImageResult(t, db, analysis.ID)

	return NewProcessor(svc), analysisRepo, analysis.ID
}

func TestProcessor_Process(t *testing.T) {
	processor, repo, analysisID := setupProcessor(t)

	err := processor.Process(context.Background(), &queue.RecommendationJobMessage{
		AnalysisID: analysisID,
		UserID:     1,
	})
	require.NoError(t, err)

	analysis, err := repo.GetByIDWithDetails(analysisID)
	require.NoError(t, err)
	require.Len(t, analysis.Recommendations, 1)
	assert.Equal(t, model.RecommendationPending, analysis.Recommendations[0].Status)
	assert.Equal(t, "及时用药。", analysis.Recommendations[0].Content)
}

func TestProcessor_Process_MissingAnalysisSkipped(t *testing.T) {
	processor, _, _ := setupProcessor(t)

	// 分析不存在的任务直接丢弃，不算失败
	err := processor.Process(context.Background(), &queue.RecommendationJobMessage{
		AnalysisID: 99999,
		UserID:     1,
	})
	assert.NoError(t, err)
}

func TestProcessor_Process_NotCompletedSkipped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	cfg := &config.Config{
		Inference:      config.InferenceConfig{TimeoutSeconds: 1, MaxParallel: 2, LowThreshold: 0.5, HighThreshold: 0.85},
		Recommendation: config.RecommendationConfig{TimeoutSeconds: 1},
	}
	svc := service.NewAnalysisService(
		repository.NewAnalysisRepository(db),
		repository.NewRecommendationRepository(db),
		service.NewIntakeValidator(&cfg.Upload),
		service.NewInferenceService(stubPredictor{}, &cfg.Inference),
		service.NewRecommendationService(nil, &cfg.Recommendation),
		service.NewLocalImageStore(t.TempDir()),
		nil,
		nil,
		cfg,
	)
	processor := NewProcessor(svc)

	user := testutil.TestUser(t, db)
	analysis := testutil.TestAnalysis(t, db, user.ID, testutil.WithStatus(model.AnalysisProcessing))

	err := processor.Process(context.Background(), &queue.RecommendationJobMessage{
		AnalysisID: analysis.ID,
		UserID:     user.ID,
	})
	assert.NoError(t, err)
}
