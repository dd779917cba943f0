package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	OSS            OSSConfig            `mapstructure:"oss"`
	CORS           CORSConfig           `mapstructure:"cors"`
	Queue          QueueConfig          `mapstructure:"queue"`
	Upload         UploadConfig         `mapstructure:"upload"`
	Inference      InferenceConfig      `mapstructure:"inference"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type QueueConfig struct {
	RecommendationQueue string `mapstructure:"recommendation_queue"`
	MaxWorkers          int    `mapstructure:"max_workers"`
}

type UploadConfig struct {
	MaxImageSize      int64    `mapstructure:"max_image_size"`     // 单张图片最大字节数
	MaxImageCount     int      `mapstructure:"max_image_count"`    // 单次提交最大图片数
	LocalDir          string   `mapstructure:"local_dir"`          // OSS 未配置时的本地存储目录
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 允许的扩展名
}

type InferenceConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`        // 模型服务 predict 地址
	TimeoutSeconds int     `mapstructure:"timeout_seconds"` // 单张图片推理超时
	MaxParallel    int     `mapstructure:"max_parallel"`    // 批内并发推理数
	LowThreshold   float64 `mapstructure:"low_threshold"`   // 置信度低于该值为 low
	HighThreshold  float64 `mapstructure:"high_threshold"`  // 置信度高于该值为 high
}

type RecommendationConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Upload.MaxImageSize == 0 {
		cfg.Upload.MaxImageSize = 12 << 20 // 12MB
	}
	if cfg.Upload.MaxImageCount == 0 {
		cfg.Upload.MaxImageCount = 5
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		cfg.Upload.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}
	}
	if cfg.Inference.TimeoutSeconds == 0 {
		cfg.Inference.TimeoutSeconds = 10
	}
	if cfg.Inference.MaxParallel == 0 {
		cfg.Inference.MaxParallel = 4
	}
	if cfg.Inference.LowThreshold == 0 {
		cfg.Inference.LowThreshold = 0.5
	}
	if cfg.Inference.HighThreshold == 0 {
		cfg.Inference.HighThreshold = 0.85
	}
	if cfg.Recommendation.TimeoutSeconds == 0 {
		cfg.Recommendation.TimeoutSeconds = 8
	}
	if cfg.Queue.RecommendationQueue == "" {
		cfg.Queue.RecommendationQueue = "recommendation_jobs"
	}
	if cfg.Queue.MaxWorkers == 0 {
		cfg.Queue.MaxWorkers = 2
	}
}
