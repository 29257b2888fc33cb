// Package config 负责加载和验证 YAML 配置文件。
// 提供应用程序所需的所有配置项，包括交易所连接、下单网关、策略参数等。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Symbol 交易对配置（单一标的）
	Symbol SymbolConfig `yaml:"symbol"`
	// Metadata 合约元数据 API 配置
	Metadata MetadataConfig `yaml:"metadata"`
	// WS WebSocket 连接配置
	WS WSConfig `yaml:"ws"`
	// Gateway 下单网关配置
	Gateway GatewayConfig `yaml:"gateway"`
	// Strategy 策略参数配置
	Strategy StrategyConfig `yaml:"strategy"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// SymbolConfig 交易对配置
type SymbolConfig struct {
	// Input 用户输入的交易对格式，如 SOL-USDT
	Input string `yaml:"input"`
}

// MetadataConfig 合约元数据 API 配置
type MetadataConfig struct {
	// Binance Binance 合约元数据 API 地址
	Binance string `yaml:"binance"`
	// Bitmart Bitmart 合约元数据 API 地址
	Bitmart string `yaml:"bitmart"`
	// TimeoutMs HTTP 请求超时时间（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
}

// WSConfig WebSocket 连接配置
type WSConfig struct {
	// Binance Binance WebSocket 配置
	Binance ExchangeWSConfig `yaml:"binance"`
	// Bitmart Bitmart WebSocket 配置
	Bitmart ExchangeWSConfig `yaml:"bitmart"`
}

// ExchangeWSConfig 单个交易所的 WebSocket 配置
type ExchangeWSConfig struct {
	// URL WebSocket 连接地址
	URL string `yaml:"url"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// ReadTimeoutMs 读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// GatewayConfig 下单网关配置
type GatewayConfig struct {
	// Binance Binance 网关凭证
	Binance BinanceGatewayConfig `yaml:"binance"`
	// Bitmart Bitmart 网关凭证
	Bitmart BitmartGatewayConfig `yaml:"bitmart"`
	// TimeoutMs 单腿下单超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// DryRun 演练模式：不向交易所发真实订单，回报假成交
	DryRun bool `yaml:"dry_run"`
}

// BinanceGatewayConfig Binance 下单凭证
type BinanceGatewayConfig struct {
	// BaseURL REST 基础地址
	BaseURL string `yaml:"base_url"`
	// APIKey API Key
	APIKey string `yaml:"api_key"`
	// SecretKey Secret Key
	SecretKey string `yaml:"secret_key"`
}

// BitmartGatewayConfig Bitmart 下单凭证
type BitmartGatewayConfig struct {
	// BaseURL REST 基础地址
	BaseURL string `yaml:"base_url"`
	// APIKey API Key
	APIKey string `yaml:"api_key"`
	// SecretKey Secret Key
	SecretKey string `yaml:"secret_key"`
	// Memo 签名 memo
	Memo string `yaml:"memo"`
}

// StrategyConfig 策略参数配置
// 进程生命周期内不可变。
type StrategyConfig struct {
	// EntryThresholdPct 入场阈值（百分比），价差超过此值才开仓
	EntryThresholdPct float64 `yaml:"entry_threshold_pct"`
	// ExitReductionPct 平仓收敛幅度（百分比），
	// |入场价差 - 当前价差| 达到此值时平仓
	ExitReductionPct float64 `yaml:"exit_reduction_pct"`
	// PositionNotional 单腿目标名义金额（USDT）
	PositionNotional float64 `yaml:"position_notional"`
	// Leverage 杠杆倍数
	Leverage float64 `yaml:"leverage"`
	// SlippageTolerancePct 滑点容忍度（百分比）
	SlippageTolerancePct float64 `yaml:"slippage_tolerance_pct"`
	// HalfSpread 价差模式使用的固定半价差（如 0.0005 表示 ±0.05%）
	HalfSpread float64 `yaml:"half_spread"`
	// DepthTTLMs 深度快照新鲜度上限（毫秒），超过视为无深度
	DepthTTLMs int `yaml:"depth_ttl_ms"`
}

// DepthTTL 获取深度新鲜度上限的 time.Duration 表示
func (s *StrategyConfig) DepthTTL() time.Duration {
	return time.Duration(s.DepthTTLMs) * time.Millisecond
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// EventsEnabled 是否输出事件文件（价差/迁移/告警）
	EventsEnabled bool `yaml:"events_enabled"`
	// TradesEnabled 是否输出成交结果文件
	TradesEnabled bool `yaml:"trades_enabled"`
	// MetricsEnabled 是否输出指标文件
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// MetricsIntervalMs 指标输出间隔（毫秒）
	MetricsIntervalMs int `yaml:"metrics_interval_ms"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "cross-exchange-arbitrage"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Metadata.TimeoutMs == 0 {
		c.Metadata.TimeoutMs = 10000 // 10 秒
	}

	// WebSocket 默认配置
	if c.WS.Binance.ReadTimeoutMs == 0 {
		c.WS.Binance.ReadTimeoutMs = 30000 // 30 秒
	}
	if c.WS.Bitmart.PingIntervalMs == 0 {
		c.WS.Bitmart.PingIntervalMs = 15000 // 15 秒
	}
	if c.WS.Bitmart.ReadTimeoutMs == 0 {
		c.WS.Bitmart.ReadTimeoutMs = 30000 // 30 秒
	}

	// 网关默认值
	if c.Gateway.TimeoutMs == 0 {
		c.Gateway.TimeoutMs = 5000 // 5 秒
	}
	if c.Gateway.Binance.BaseURL == "" {
		c.Gateway.Binance.BaseURL = "https://fapi.binance.com"
	}
	if c.Gateway.Bitmart.BaseURL == "" {
		c.Gateway.Bitmart.BaseURL = "https://api-cloud-v2.bitmart.com"
	}

	// 策略默认值
	if c.Strategy.HalfSpread == 0 {
		c.Strategy.HalfSpread = 0.0005 // ±0.05%
	}
	if c.Strategy.DepthTTLMs == 0 {
		c.Strategy.DepthTTLMs = 3000 // 3 秒
	}
	if c.Strategy.Leverage == 0 {
		c.Strategy.Leverage = 5
	}

	// 输出默认值
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.MetricsIntervalMs == 0 {
		c.Output.MetricsIntervalMs = 10000 // 10 秒
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	if c.Symbol.Input == "" {
		errs = append(errs, "symbol.input: 交易对不能为空")
	}

	if c.Metadata.Binance == "" {
		errs = append(errs, "metadata.binance: Binance 元数据 API 地址不能为空")
	}
	if c.Metadata.Bitmart == "" {
		errs = append(errs, "metadata.bitmart: Bitmart 元数据 API 地址不能为空")
	}

	if c.WS.Binance.URL == "" {
		errs = append(errs, "ws.binance.url: Binance WebSocket 地址不能为空")
	}
	if c.WS.Bitmart.URL == "" {
		errs = append(errs, "ws.bitmart.url: Bitmart WebSocket 地址不能为空")
	}

	// 非演练模式必须配置双边凭证，缺一条腿都开不成对冲
	if !c.Gateway.DryRun {
		if c.Gateway.Binance.APIKey == "" || c.Gateway.Binance.SecretKey == "" {
			errs = append(errs, "gateway.binance: 非演练模式必须配置 api_key/secret_key")
		}
		if c.Gateway.Bitmart.APIKey == "" || c.Gateway.Bitmart.SecretKey == "" {
			errs = append(errs, "gateway.bitmart: 非演练模式必须配置 api_key/secret_key")
		}
	}
	if c.Gateway.TimeoutMs < 0 {
		errs = append(errs, "gateway.timeout_ms: 下单超时不能为负数")
	}

	// 验证策略参数
	if c.Strategy.EntryThresholdPct <= 0 {
		errs = append(errs, "strategy.entry_threshold_pct: 入场阈值必须为正数")
	}
	if c.Strategy.ExitReductionPct <= 0 {
		errs = append(errs, "strategy.exit_reduction_pct: 平仓收敛幅度必须为正数")
	}
	if c.Strategy.PositionNotional <= 0 {
		errs = append(errs, "strategy.position_notional: 名义金额必须为正数")
	}
	if c.Strategy.Leverage <= 0 {
		errs = append(errs, "strategy.leverage: 杠杆必须为正数")
	}
	if c.Strategy.SlippageTolerancePct < 0 {
		errs = append(errs, "strategy.slippage_tolerance_pct: 滑点容忍度不能为负数")
	}
	if c.Strategy.HalfSpread < 0 || c.Strategy.HalfSpread >= 1 {
		errs = append(errs, "strategy.half_spread: 半价差必须在 [0, 1) 之间")
	}
	if c.Strategy.DepthTTLMs < 0 {
		errs = append(errs, "strategy.depth_ttl_ms: 深度新鲜度上限不能为负数")
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
