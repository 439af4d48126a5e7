package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"ht-server/common/logger"
)

// Config 与配置中心（Nacos）或本地文件中的配置结构对应
// 注意：时间字段统一使用毫秒/秒整数，金额使用十进制浮点书写，业务侧转换为 decimal
type Config struct {
	Server struct {
		Port     int    `yaml:"port" json:"port"`
		LogLevel string `yaml:"log_level" json:"log_level"`
	} `yaml:"server" json:"server"`

	Database struct {
		DSN                string `yaml:"dsn" json:"dsn"`
		MaxOpenConns       int    `yaml:"max_open_conns" json:"max_open_conns"`
		MaxIdleConns       int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec" json:"conn_max_lifetime_sec"`
		Retries            int    `yaml:"retries" json:"retries"`
		IntervalMS         int    `yaml:"interval_ms" json:"interval_ms"`
	} `yaml:"database" json:"database"`

	Redis struct {
		Addr       string `yaml:"addr" json:"addr"`
		Password   string `yaml:"password" json:"password"`
		DB         int    `yaml:"db" json:"db"`
		Retries    int    `yaml:"retries" json:"retries"`
		IntervalMS int    `yaml:"interval_ms" json:"interval_ms"`
	} `yaml:"redis" json:"redis"`

	RocketMQ struct {
		Endpoint      string `yaml:"endpoint" json:"endpoint"`
		ConsumerGroup string `yaml:"consumer_group" json:"consumer_group"`
		TopicSettled  string `yaml:"topic_settled" json:"topic_settled"`
		TopicRetry    string `yaml:"topic_retry" json:"topic_retry"`
		AccessKey     string `yaml:"access_key" json:"access_key"`
		SecretKey     string `yaml:"secret_key" json:"secret_key"`
	} `yaml:"rocketmq" json:"rocketmq"`

	// Ledger 上游账户服务（DEBIT/CREDIT 与用户信息查询）
	Ledger struct {
		BaseURL         string `yaml:"base_url" json:"base_url"`
		TimeoutMS       int    `yaml:"timeout_ms" json:"timeout_ms"`
		MaxRetries      int    `yaml:"max_retries" json:"max_retries"`
		MaxConnsPerHost int    `yaml:"max_conns_per_host" json:"max_conns_per_host"`
	} `yaml:"ledger" json:"ledger"`

	// Game 投注业务参数（支持热更新）
	Game struct {
		MinBetAmount        float64 `yaml:"min_bet_amount" json:"min_bet_amount"`
		MaxBetAmount        float64 `yaml:"max_bet_amount" json:"max_bet_amount"`
		WinMultiplier       float64 `yaml:"win_multiplier" json:"win_multiplier"`
		CreditNotifyDelayMS int     `yaml:"credit_notify_delay_ms" json:"credit_notify_delay_ms"`
		SessionTTLSec       int     `yaml:"session_ttl_sec" json:"session_ttl_sec"`
	} `yaml:"game" json:"game"`

	// Recorder 结算记录异步落库参数
	Recorder struct {
		Workers      int `yaml:"workers" json:"workers"`
		QueueSize    int `yaml:"queue_size" json:"queue_size"`
		MaxRetries   int `yaml:"max_retries" json:"max_retries"`
		RetryDelayMS int `yaml:"retry_delay_ms" json:"retry_delay_ms"`
	} `yaml:"recorder" json:"recorder"`

	Observability struct {
		EnableProm bool `yaml:"enable_prom" json:"enable_prom"`
	} `yaml:"observability" json:"observability"`

	Admin struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		Token   string `yaml:"token" json:"token"`
	} `yaml:"admin" json:"admin"`
}

// Bootstrap 启动参数，全部来自环境变量：
//   - NACOS_SERVER_ADDR: Nacos 服务器地址（如 "127.0.0.1:8848"，设置则优先从 Nacos 加载）
//   - NACOS_DATA_ID: 配置 Data ID（如 "ht-server.yaml"）
//   - NACOS_NAMESPACE / NACOS_GROUP: 命名空间与分组（默认 public / DEFAULT_GROUP）
//   - CONFIG_FILE: 本地配置文件路径（兜底方案，默认：config/dev.yaml）
type Bootstrap struct {
	NacosServerAddr string `env:"NACOS_SERVER_ADDR"`
	NacosDataID     string `env:"NACOS_DATA_ID"`
	NacosNamespace  string `env:"NACOS_NAMESPACE" envDefault:"public"`
	NacosGroup      string `env:"NACOS_GROUP" envDefault:"DEFAULT_GROUP"`
	NacosUsername   string `env:"NACOS_USERNAME"`
	NacosPassword   string `env:"NACOS_PASSWORD"`
	NacosTimeoutMS  int    `env:"NACOS_TIMEOUT_MS" envDefault:"5000"`
	ConfigFile      string `env:"CONFIG_FILE" envDefault:"config/dev.yaml"`

	Log logger.Options
}

// ParseBootstrap 从环境变量解析启动参数
func ParseBootstrap() (Bootstrap, error) {
	var b Bootstrap
	if err := env.Parse(&b); err != nil {
		return b, fmt.Errorf("parse bootstrap env: %w", err)
	}
	b.NacosServerAddr = strings.TrimSpace(b.NacosServerAddr)
	return b, nil
}

// Load 优先从 Nacos 配置中心读取配置，如果失败则从本地文件读取（兜底）
func Load(ctx context.Context, b Bootstrap) (*Config, error) {
	// 1. 优先尝试从 Nacos 加载
	if b.NacosServerAddr != "" {
		cfg, err := loadFromNacos(ctx, b)
		if err == nil {
			logger.Info("config loaded from nacos",
				zap.String("server", b.NacosServerAddr),
				zap.String("dataId", b.NacosDataID),
				zap.String("namespace", b.NacosNamespace),
				zap.String("group", b.NacosGroup))
			return cfg, nil
		}
		// Nacos 加载失败，降级到本地文件
		logger.Warn("load config from nacos failed, fallback to local file", zap.Error(err))
	}

	// 2. 降级：从本地文件加载
	cfg, err := loadFromFile(b.ConfigFile)
	if err == nil {
		logger.Info("config loaded from file", zap.String("file", b.ConfigFile))
		return cfg, nil
	}

	// 3. 两种方式都失败，返回错误
	return nil, fmt.Errorf("failed to load config from nacos and local file (%s): %w", b.ConfigFile, err)
}

// ApplyDefaults 补齐未配置的默认值
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.Retries == 0 {
		c.Database.Retries = 5
	}
	if c.Database.IntervalMS == 0 {
		c.Database.IntervalMS = 1000
	}
	if c.Redis.Retries == 0 {
		c.Redis.Retries = 5
	}
	if c.Redis.IntervalMS == 0 {
		c.Redis.IntervalMS = 1000
	}
	if c.RocketMQ.TopicSettled == "" {
		c.RocketMQ.TopicSettled = "bet_settled"
	}
	if c.RocketMQ.TopicRetry == "" {
		c.RocketMQ.TopicRetry = "settlement_retry"
	}
	if c.Ledger.TimeoutMS == 0 {
		c.Ledger.TimeoutMS = 5000
	}
	if c.Ledger.MaxRetries == 0 {
		c.Ledger.MaxRetries = 3
	}
	if c.Game.MinBetAmount == 0 {
		c.Game.MinBetAmount = 1
	}
	if c.Game.MaxBetAmount == 0 {
		c.Game.MaxBetAmount = 10000
	}
	if c.Game.WinMultiplier == 0 {
		c.Game.WinMultiplier = 1.98
	}
	if c.Game.CreditNotifyDelayMS == 0 {
		c.Game.CreditNotifyDelayMS = 2000
	}
	if c.Game.SessionTTLSec == 0 {
		c.Game.SessionTTLSec = 3600
	}
	if c.Recorder.Workers == 0 {
		c.Recorder.Workers = 4
	}
	if c.Recorder.QueueSize == 0 {
		c.Recorder.QueueSize = 1024
	}
	if c.Recorder.MaxRetries == 0 {
		c.Recorder.MaxRetries = 5
	}
	if c.Recorder.RetryDelayMS == 0 {
		c.Recorder.RetryDelayMS = 5000
	}
}

// loadFromFile 从本地 JSON 或 YAML 文件加载配置
func loadFromFile(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := parse(filepath.Ext(filePath), data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse 根据扩展名选择解析方式；未知扩展名先尝试 YAML 再尝试 JSON
func parse(ext string, data []byte) (*Config, error) {
	var cfg Config
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			if err2 := json.Unmarshal(data, &cfg); err2 != nil {
				return nil, fmt.Errorf("failed to parse config (tried YAML and JSON): yaml_err=%v, json_err=%v", err, err2)
			}
		}
	}
	return &cfg, nil
}

// newNacosClient 根据启动参数创建 Nacos 配置客户端
func newNacosClient(b Bootstrap) (config_client.IConfigClient, error) {
	if b.NacosServerAddr == "" {
		return nil, errors.New("NACOS_SERVER_ADDR not set")
	}
	if strings.TrimSpace(b.NacosDataID) == "" {
		return nil, errors.New("NACOS_DATA_ID not set")
	}

	// 解析服务器地址（支持多个地址，逗号分隔）
	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(b.NacosServerAddr, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		parts := strings.Split(addr, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid NACOS_SERVER_ADDR format: %s (expected host:port)", addr)
		}
		port, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port in NACOS_SERVER_ADDR: %s", parts[1])
		}
		serverConfigs = append(serverConfigs, constant.ServerConfig{
			IpAddr: parts[0],
			Port:   port,
		})
	}
	if len(serverConfigs) == 0 {
		return nil, errors.New("no valid server address in NACOS_SERVER_ADDR")
	}

	clientConfig := constant.ClientConfig{
		NamespaceId:         b.NacosNamespace,
		TimeoutMs:           uint64(b.NacosTimeoutMS),
		NotLoadCacheAtStart: true,
		LogDir:              "/tmp/nacos/log",
		CacheDir:            "/tmp/nacos/cache",
		LogLevel:            "warn",
	}

	// 如果提供了用户名和密码，则启用认证
	if b.NacosUsername != "" && b.NacosPassword != "" {
		clientConfig.Username = b.NacosUsername
		clientConfig.Password = b.NacosPassword
	}

	return clients.NewConfigClient(
		vo.NacosClientParam{
			ClientConfig:  &clientConfig,
			ServerConfigs: serverConfigs,
		},
	)
}

// loadFromNacos 从 Nacos 配置中心加载配置
func loadFromNacos(_ context.Context, b Bootstrap) (*Config, error) {
	configClient, err := newNacosClient(b)
	if err != nil {
		return nil, fmt.Errorf("failed to create nacos config client: %w", err)
	}

	content, err := configClient.GetConfig(vo.ConfigParam{
		DataId: b.NacosDataID,
		Group:  b.NacosGroup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get config from nacos: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("nacos config is empty: dataId=%s, group=%s", b.NacosDataID, b.NacosGroup)
	}

	return parse(filepath.Ext(b.NacosDataID), []byte(content))
}
