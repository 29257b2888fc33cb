// Package metadata 负责从交易所获取合约元数据并构建 symbol 映射。
package metadata

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cross-exchange-arbitrage/internal/config"
)

// BuildSymbolMap 构建交易对映射
// 从两家交易所获取元数据，并将用户输入的交易对映射到各交易所的具体标识符。
// 任何一家交易所找不到该 USDT 永续合约都视为致命错误，套利需要双边同时存在。
// 参数 ctx: 上下文
// 参数 cfg: 配置
// 参数 f: 元数据获取器
// 返回: 交易对映射
func BuildSymbolMap(ctx context.Context, cfg *config.Config, f Fetcher) (*SymbolMap, error) {
	binanceSyms, err := f.FetchBinance(ctx, cfg.Metadata.Binance)
	if err != nil {
		return nil, fmt.Errorf("获取 Binance 元数据失败: %w", err)
	}

	bitmartContracts, err := f.FetchBitmart(ctx, cfg.Metadata.Bitmart)
	if err != nil {
		return nil, fmt.Errorf("获取 Bitmart 元数据失败: %w", err)
	}

	binanceIndex := buildBinanceIndex(binanceSyms)
	bitmartIndex := buildBitmartIndex(bitmartContracts)

	mapping, err := buildMapping(cfg.Symbol.Input, binanceIndex, bitmartIndex)
	if err != nil {
		return nil, fmt.Errorf("映射交易对 '%s' 失败: %w", cfg.Symbol.Input, err)
	}
	return mapping, nil
}

// buildBinanceIndex 构建 Binance 合约索引
// 只索引 USDT 永续合约
// key: 标准化的交易对（如 SOLUSDT）
func buildBinanceIndex(syms []BinanceSymbol) map[string]*BinanceSymbol {
	index := make(map[string]*BinanceSymbol)
	for i := range syms {
		sym := &syms[i]
		if sym.IsUSDTPerpetual() {
			// Binance symbol 已经是标准格式（如 SOLUSDT）
			canon := strings.ToUpper(sym.Symbol)
			index[canon] = sym
		}
	}
	return index
}

// buildBitmartIndex 构建 Bitmart 合约索引
// 只索引 USDT 永续合约
// key: 标准化的交易对（如 SOLUSDT）
func buildBitmartIndex(contracts []BitmartContract) map[string]*BitmartContract {
	index := make(map[string]*BitmartContract)
	for i := range contracts {
		c := &contracts[i]
		if c.IsUSDTPerpetual() {
			canon := normalizeSymbol(c.Symbol)
			index[canon] = c
		}
	}
	return index
}

// buildMapping 为单个交易对构建映射
// 参数 userInput: 用户输入的交易对，如 SOL-USDT
// 返回: 完整的 SymbolMap
func buildMapping(userInput string, binanceIndex map[string]*BinanceSymbol, bitmartIndex map[string]*BitmartContract) (*SymbolMap, error) {
	canon := normalizeSymbol(userInput)

	binanceSym, ok := binanceIndex[canon]
	if !ok {
		return nil, fmt.Errorf("Binance 未找到交易对: %s", canon)
	}

	bitmartContract, ok := bitmartIndex[canon]
	if !ok {
		return nil, fmt.Errorf("Bitmart 未找到交易对: %s", canon)
	}

	binanceTick, err := strconv.ParseFloat(binanceSym.GetTickSize(), 64)
	if err != nil {
		binanceTick = 0.01 // 默认值
	}
	binanceStep, err := strconv.ParseFloat(binanceSym.GetStepSize(), 64)
	if err != nil {
		binanceStep = 0.001
	}
	bitmartTick, err := strconv.ParseFloat(bitmartContract.PricePrecision, 64)
	if err != nil {
		bitmartTick = 0.01
	}
	contractSize, err := strconv.ParseFloat(bitmartContract.ContractSize, 64)
	if err != nil || contractSize <= 0 {
		contractSize = 1
	}

	return &SymbolMap{
		Canon:               canon,
		UserInput:           userInput,
		BinanceSym:          strings.ToUpper(binanceSym.Symbol),
		BitmartSym:          bitmartContract.Symbol,
		BinanceTick:         binanceTick,
		BinanceQtyStep:      binanceStep,
		BitmartTick:         bitmartTick,
		BitmartContractSize: contractSize,
	}, nil
}

// normalizeSymbol 标准化交易对格式
// 移除分隔符，转为大写
// 例如: SOL-USDT -> SOLUSDT, sol_usdt -> SOLUSDT
func normalizeSymbol(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "/", "")
	return strings.ToUpper(s)
}

// NormalizeToCanon 将用户输入转换为 Canon 格式
// 公开函数，供外部使用
func NormalizeToCanon(userInput string) string {
	return normalizeSymbol(userInput)
}
