package service

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/model"
)

type fakePredictor struct {
	label      string
	confidence float64
	err        error
	pingErr    error
	calls      int
}

func (f *fakePredictor) Predict(_ context.Context, _ []byte) (string, float64, error) {
	f.calls++
	return f.label, f.confidence, f.err
}

func (f *fakePredictor) Ping(_ context.Context) error {
	return f.pingErr
}

func inferenceCfg() *config.InferenceConfig {
	return &config.InferenceConfig{
		TimeoutSeconds: 1,
		MaxParallel:    4,
		LowThreshold:   0.5,
		HighThreshold:  0.85,
	}
}

func TestInferenceService_Classify(t *testing.T) {
	svc := NewInferenceService(&fakePredictor{label: "Tomato___Late_blight", confidence: 0.92}, inferenceCfg())

	c := svc.Classify(context.Background(), []byte("img"))
	assert.Equal(t, "Tomato", c.Crop)
	assert.Equal(t, "Late blight", c.Disease)
	assert.Equal(t, 0.92, c.Confidence)
	assert.Equal(t, model.SeverityHigh, c.Severity)
}

func TestInferenceService_SeverityThresholds(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       string
	}{
		{"below low threshold", 0.3, model.SeverityLow},
		{"at low threshold", 0.5, model.SeverityMedium},
		{"between thresholds", 0.7, model.SeverityMedium},
		{"at high threshold", 0.85, model.SeverityMedium},
		{"above high threshold", 0.9, model.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewInferenceService(&fakePredictor{label: "Potato___Early_blight", confidence: tt.confidence}, inferenceCfg())
			c := svc.Classify(context.Background(), []byte("img"))
			assert.Equal(t, tt.want, c.Severity)
		})
	}
}

func TestInferenceService_HealthyAlwaysLow(t *testing.T) {
	svc := NewInferenceService(&fakePredictor{label: "Apple___healthy", confidence: 0.99}, inferenceCfg())

	c := svc.Classify(context.Background(), []byte("img"))
	assert.Equal(t, model.LabelHealthy, c.Disease)
	assert.Equal(t, model.SeverityLow, c.Severity)
}

func TestInferenceService_PredictErrorBecomesErrorLabel(t *testing.T) {
	svc := NewInferenceService(&fakePredictor{err: errors.New("connection refused")}, inferenceCfg())

	c := svc.Classify(context.Background(), []byte("img"))
	assert.Equal(t, model.LabelError, c.Disease)
	assert.Zero(t, c.Confidence)
	assert.Equal(t, model.SeverityLow, c.Severity)
}

func TestInferenceService_DegradedMode(t *testing.T) {
	predictor := &fakePredictor{pingErr: errors.New("dial tcp: connect refused")}
	svc := NewInferenceService(predictor, inferenceCfg())

	assert.True(t, svc.Degraded())

	// 降级模式不调模型，全部返回 unknown
	for i := 0; i < 3; i++ {
		c := svc.Classify(context.Background(), []byte("img"))
		assert.Equal(t, model.LabelUnknown, c.Disease)
		assert.Zero(t, c.Confidence)
	}
	assert.Zero(t, predictor.calls)
}

func TestInferenceService_DegradedModeWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	svc := NewInferenceService(&fakePredictor{pingErr: errors.New("dial tcp: connect refused")}, inferenceCfg())

	// 连续多次调用只告警一次
	for i := 0; i < 5; i++ {
		svc.Classify(context.Background(), []byte("img"))
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "degraded mode"))
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		label       string
		wantCrop    string
		wantDisease string
	}{
		{"Tomato___Late_blight", "Tomato", "Late blight"},
		{"Apple___healthy", "Apple", "healthy"},
		{"Corn_(maize)___Common_rust_", "Corn (maize)", "Common rust"},
		{"Pepper,_bell___Bacterial_spot", "Pepper, bell", "Bacterial spot"},
		{"Grape___Esca_(Black_Measles)", "Grape", "Esca (Black Measles)"},
		{"no_separator", "no separator", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			crop, disease := ParseLabel(tt.label)
			assert.Equal(t, tt.wantCrop, crop)
			assert.Equal(t, tt.wantDisease, disease)
		})
	}
}
