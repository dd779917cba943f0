package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/model"
)

type fakeGenerator struct {
	content string
	err     error
	calls   int
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.content, f.err
}

func recommendCfg() *config.RecommendationConfig {
	return &config.RecommendationConfig{
		APIKey:         "test-key",
		Model:          "gemini-1.5-flash",
		TimeoutSeconds: 1,
	}
}

func TestRecommendationService_Generated(t *testing.T) {
	gen := &fakeGenerator{content: "针对晚疫病，建议立即喷施保护性杀菌剂。"}
	svc := NewRecommendationService(gen, recommendCfg())

	rec := svc.Generate(context.Background(), "tomato", "Late blight", model.SeverityHigh, 0.92)
	assert.Equal(t, model.SourceGenerated, rec.Source)
	assert.Equal(t, gen.content, rec.Content)
	assert.Equal(t, 1, gen.calls)
}

func TestRecommendationService_FallbackOnError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("deadline exceeded")}
	svc := NewRecommendationService(gen, recommendCfg())

	rec := svc.Generate(context.Background(), "tomato", "Late blight", model.SeverityHigh, 0.92)
	assert.Equal(t, model.SourceFallback, rec.Source)
	assert.NotEmpty(t, rec.Content)
	assert.Contains(t, rec.Content, "Late blight")
}

func TestRecommendationService_FallbackWithoutAPIKey(t *testing.T) {
	gen := &fakeGenerator{content: "should not be used"}
	cfg := recommendCfg()
	cfg.APIKey = ""
	svc := NewRecommendationService(gen, cfg)

	rec := svc.Generate(context.Background(), "grape", "Black rot", model.SeverityMedium, 0.7)
	assert.Equal(t, model.SourceFallback, rec.Source)
	assert.Zero(t, gen.calls)
}

func TestRecommendationService_FallbackDeterministic(t *testing.T) {
	svc := NewRecommendationService(nil, &config.RecommendationConfig{TimeoutSeconds: 1})

	a := svc.Generate(context.Background(), "potato", "Early blight", model.SeverityMedium, 0.7)
	b := svc.Generate(context.Background(), "potato", "Early blight", model.SeverityMedium, 0.7)
	assert.Equal(t, a.Content, b.Content)
}

func TestRecommendationService_FallbackVariesBySeverity(t *testing.T) {
	svc := NewRecommendationService(nil, &config.RecommendationConfig{TimeoutSeconds: 1})

	low := svc.Generate(context.Background(), "potato", "Early blight", model.SeverityLow, 0.3)
	high := svc.Generate(context.Background(), "potato", "Early blight", model.SeverityHigh, 0.95)
	assert.NotEqual(t, low.Content, high.Content)
}

func TestRecommendationService_FallbackHealthy(t *testing.T) {
	svc := NewRecommendationService(nil, &config.RecommendationConfig{TimeoutSeconds: 1})

	rec := svc.Generate(context.Background(), "apple", model.LabelHealthy, model.SeverityLow, 0.98)
	assert.Equal(t, model.SourceFallback, rec.Source)
	assert.Contains(t, rec.Content, "状态良好")
}

func TestRecommendationService_FallbackUnknown(t *testing.T) {
	svc := NewRecommendationService(nil, &config.RecommendationConfig{TimeoutSeconds: 1})

	rec := svc.Generate(context.Background(), "apple", model.LabelUnknown, model.SeverityLow, 0)
	assert.Contains(t, rec.Content, "未能识别")
}
