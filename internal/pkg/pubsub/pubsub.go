package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelAnalysisProgress = "analysis_progress"
)

// ProgressMessage 分析进度消息
type ProgressMessage struct {
	Type       string `json:"type"`
	UserID     int64  `json:"user_id"`
	AnalysisID int64  `json:"analysis_id"`
	Status     string `json:"status"`
	Step       string `json:"step"`
	Progress   int    `json:"progress"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// 流水线阶段常量。校验发生在建档之前，没有可推送的分析 ID，
// 所以第一个对外可见的阶段是 storing。
const (
	StepStoring      = "storing"
	StepInferring    = "inferring"
	StepAggregating  = "aggregating"
	StepRecommending = "recommending"
	StepDone         = "done"
)

// 阶段对应的进度百分比
var StepProgress = map[string]int{
	StepStoring:      25,
	StepInferring:    50,
	StepAggregating:  70,
	StepRecommending: 85,
	StepDone:         100,
}

// 阶段对应的消息
var StepMessages = map[string]string{
	StepStoring:      "正在保存图片",
	StepInferring:    "正在识别病害",
	StepAggregating:  "正在汇总结果",
	StepRecommending: "正在生成防治建议",
	StepDone:         "分析完成",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "analysis_progress"

	// 自动填充进度和消息
	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelAnalysisProgress, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelAnalysisProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}
