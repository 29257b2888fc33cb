// Package metadata 元数据模块测试
package metadata

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"cross-exchange-arbitrage/internal/config"
)

// TestNormalizeSymbol_Consistency 测试 Symbol 标准化一致性
// 属性: 不同格式的同一交易对应该标准化为相同的 Canon
func TestNormalizeSymbol_Consistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// 使用固定的币种列表进行测试
	coins := []string{"BTC", "ETH", "SOL", "DOGE", "XRP", "ADA", "DOT", "LINK", "UNI", "AVAX"}

	// 属性: 带分隔符和不带分隔符的格式应该标准化为相同结果
	properties.Property("分隔符不影响标准化结果", prop.ForAll(
		func(baseIdx int, quoteIdx int) bool {
			base := coins[baseIdx%len(coins)]
			quote := coins[quoteIdx%len(coins)]

			withDash := base + "-" + quote
			withUnderscore := base + "_" + quote
			withSlash := base + "/" + quote
			noDash := base + quote

			canon1 := normalizeSymbol(withDash)
			canon2 := normalizeSymbol(withUnderscore)
			canon3 := normalizeSymbol(withSlash)
			canon4 := normalizeSymbol(noDash)

			return canon1 == canon2 && canon2 == canon3 && canon3 == canon4
		},
		gen.IntRange(0, 9),
		gen.IntRange(0, 9),
	))

	// 属性: 大小写不影响标准化结果
	properties.Property("大小写不影响标准化结果", prop.ForAll(
		func(baseIdx int, quoteIdx int) bool {
			base := coins[baseIdx%len(coins)]
			quote := coins[quoteIdx%len(coins)]

			upper := base + "-" + quote
			lower := strings.ToLower(base) + "-" + strings.ToLower(quote)
			mixed := strings.ToLower(base) + "-" + quote

			canon1 := normalizeSymbol(upper)
			canon2 := normalizeSymbol(lower)
			canon3 := normalizeSymbol(mixed)

			return canon1 == canon2 && canon2 == canon3
		},
		gen.IntRange(0, 9),
		gen.IntRange(0, 9),
	))

	properties.TestingRun(t)
}

// TestNormalizeSymbol_SpecificCases 测试特定交易对格式
func TestNormalizeSymbol_SpecificCases(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"SOL-USDT", "SOLUSDT"},
		{"sol-usdt", "SOLUSDT"},
		{"SOL_USDT", "SOLUSDT"},
		{"SOL/USDT", "SOLUSDT"},
		{"SOLUSDT", "SOLUSDT"},
		{"xrp-usdt", "XRPUSDT"},
	}

	for _, tt := range tests {
		got := normalizeSymbol(tt.input)
		if got != tt.expected {
			t.Errorf("normalizeSymbol(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// TestBinanceSymbol_IsUSDTPerpetual 测试 Binance 合约类型判断
func TestBinanceSymbol_IsUSDTPerpetual(t *testing.T) {
	tests := []struct {
		name     string
		sym      BinanceSymbol
		expected bool
	}{
		{
			name: "USDT 永续",
			sym: BinanceSymbol{
				ContractType: "PERPETUAL",
				QuoteAsset:   "USDT",
				Status:       "TRADING",
			},
			expected: true,
		},
		{
			name: "当季合约",
			sym: BinanceSymbol{
				ContractType: "CURRENT_QUARTER",
				QuoteAsset:   "USDT",
				Status:       "TRADING",
			},
			expected: false,
		},
		{
			name: "非 USDT 永续",
			sym: BinanceSymbol{
				ContractType: "PERPETUAL",
				QuoteAsset:   "BUSD",
				Status:       "TRADING",
			},
			expected: false,
		},
		{
			name: "非交易状态",
			sym: BinanceSymbol{
				ContractType: "PERPETUAL",
				QuoteAsset:   "USDT",
				Status:       "BREAK",
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.sym.IsUSDTPerpetual()
			if got != tt.expected {
				t.Errorf("IsUSDTPerpetual() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestBitmartContract_IsUSDTPerpetual 测试 Bitmart 合约类型判断
func TestBitmartContract_IsUSDTPerpetual(t *testing.T) {
	tests := []struct {
		name     string
		contract BitmartContract
		expected bool
	}{
		{
			name: "USDT 永续（无 status 字段）",
			contract: BitmartContract{
				ProductType:   1,
				QuoteCurrency: "USDT",
			},
			expected: true,
		},
		{
			name: "USDT 永续（Trading）",
			contract: BitmartContract{
				ProductType:   1,
				QuoteCurrency: "USDT",
				Status:        "Trading",
			},
			expected: true,
		},
		{
			name: "交割合约",
			contract: BitmartContract{
				ProductType:   2,
				QuoteCurrency: "USDT",
			},
			expected: false,
		},
		{
			name: "非 USDT 计价",
			contract: BitmartContract{
				ProductType:   1,
				QuoteCurrency: "USDC",
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.contract.IsUSDTPerpetual()
			if got != tt.expected {
				t.Errorf("IsUSDTPerpetual() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// fakeFetcher 测试用元数据获取器
type fakeFetcher struct {
	binance []BinanceSymbol
	bitmart []BitmartContract
}

func (f *fakeFetcher) FetchBinance(_ context.Context, _ string) ([]BinanceSymbol, error) {
	return f.binance, nil
}

func (f *fakeFetcher) FetchBitmart(_ context.Context, _ string) ([]BitmartContract, error) {
	return f.bitmart, nil
}

// TestBuildSymbolMap 测试双边映射构建
func TestBuildSymbolMap(t *testing.T) {
	fetcher := &fakeFetcher{
		binance: []BinanceSymbol{
			{
				Symbol:       "SOLUSDT",
				ContractType: "PERPETUAL",
				QuoteAsset:   "USDT",
				Status:       "TRADING",
				Filters: []BinanceFilter{
					{FilterType: "PRICE_FILTER", TickSize: "0.001"},
					{FilterType: "LOT_SIZE", StepSize: "1"},
				},
			},
		},
		bitmart: []BitmartContract{
			{
				Symbol:         "SOLUSDT",
				ProductType:    1,
				QuoteCurrency:  "USDT",
				PricePrecision: "0.001",
				ContractSize:   "1",
			},
		},
	}

	cfg := &config.Config{}
	cfg.Symbol.Input = "SOL-USDT"

	m, err := BuildSymbolMap(context.Background(), cfg, fetcher)
	if err != nil {
		t.Fatalf("BuildSymbolMap: %v", err)
	}

	if m.Canon != "SOLUSDT" {
		t.Errorf("Canon = %q, want SOLUSDT", m.Canon)
	}
	if m.BinanceSym != "SOLUSDT" || m.BitmartSym != "SOLUSDT" {
		t.Errorf("交易所标识映射错误: binance=%q bitmart=%q", m.BinanceSym, m.BitmartSym)
	}
	if m.BinanceTick != 0.001 {
		t.Errorf("BinanceTick = %v, want 0.001", m.BinanceTick)
	}
	if m.BitmartContractSize != 1 {
		t.Errorf("BitmartContractSize = %v, want 1", m.BitmartContractSize)
	}
}

// TestBuildSymbolMap_MissingOnOneVenue 测试单边缺失时报错
func TestBuildSymbolMap_MissingOnOneVenue(t *testing.T) {
	fetcher := &fakeFetcher{
		binance: []BinanceSymbol{
			{Symbol: "SOLUSDT", ContractType: "PERPETUAL", QuoteAsset: "USDT", Status: "TRADING"},
		},
		bitmart: nil, // Bitmart 无该合约
	}

	cfg := &config.Config{}
	cfg.Symbol.Input = "SOL-USDT"

	if _, err := BuildSymbolMap(context.Background(), cfg, fetcher); err == nil {
		t.Fatalf("单边缺失应返回错误")
	}
}
