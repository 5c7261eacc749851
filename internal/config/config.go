package config

import (
	"log"

	"gopkg.in/yaml.v3"
	"mail-sync-service/pkg/config"
)

// SyncConfig 同步调度配置
type SyncConfig struct {
	IntervalHours         int   `yaml:"interval_hours"`
	RoutineLimit          int   `yaml:"routine_limit"`
	PollIntervalMinutes   int   `yaml:"poll_interval_minutes"`
	PollLimit             int   `yaml:"poll_limit"`
	PageSize              int64 `yaml:"page_size"`
	OwnerConcurrency      int   `yaml:"owner_concurrency"`
	RequestTimeoutSeconds int   `yaml:"request_timeout_seconds"`
	LockTTLMinutes        int   `yaml:"lock_ttl_minutes"`
}

// RetentionConfig 清理配置
type RetentionConfig struct {
	Days          int `yaml:"days"`
	IntervalHours int `yaml:"interval_hours"`
}

type Config struct {
	DB        config.DBConfig          `yaml:"db"`
	MQ        config.MQConfig          `yaml:"mq"`
	Redis     config.RedisConfig       `yaml:"redis"`
	Server    config.ServerConfig      `yaml:"server"`
	Google    config.GoogleOAuthConfig `yaml:"google"`
	Sync      SyncConfig               `yaml:"sync"`
	Retention RetentionConfig          `yaml:"retention"`
}

func Load() *Config {
	// 使用统一配置中心
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 转换为 Config 结构
	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideGoogleOAuthFromEnv(&cfg.Google)

	return &cfg
}
