package modelserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leafsense/leafsense_server/config"
)

var (
	ErrUnavailable     = errors.New("模型服务不可用")
	ErrEmptyPrediction = errors.New("模型服务返回空结果")
)

// Client 调用 TensorFlow Serving 风格的 REST 推理接口
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(cfg *config.InferenceConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type predictRequest struct {
	Instances []predictInstance `json:"instances"`
}

type predictInstance struct {
	B64 string `json:"b64"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// Predict 对单张图片做推理，返回类别名与置信度
func (c *Client) Predict(ctx context.Context, image []byte) (string, float64, error) {
	reqBody := predictRequest{
		Instances: []predictInstance{
			{B64: base64.StdEncoding.EncodeToString(image)},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, fmt.Errorf("failed to decode prediction: %w", err)
	}

	if len(result.Predictions) == 0 || len(result.Predictions[0]) == 0 {
		return "", 0, ErrEmptyPrediction
	}

	probs := result.Predictions[0]
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	if best >= len(classNames) {
		return "", 0, fmt.Errorf("prediction index %d out of range", best)
	}

	return classNames[best], probs[best], nil
}

// Ping 检查模型服务是否就绪（TF Serving 的模型状态接口）
func (c *Client) Ping(ctx context.Context) error {
	statusURL := strings.TrimSuffix(c.endpoint, ":predict")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	return nil
}
