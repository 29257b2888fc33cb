// Package metadata 负责从交易所获取合约元数据并构建 symbol 映射。
package metadata

// BinanceResponse Binance 合约元数据 API 响应
// API: GET /fapi/v1/exchangeInfo
type BinanceResponse struct {
	// Timezone 服务器时区
	Timezone string `json:"timezone"`
	// ServerTime 服务器时间
	ServerTime int64 `json:"serverTime"`
	// Symbols 交易对列表
	Symbols []BinanceSymbol `json:"symbols"`
}

// BinanceSymbol Binance 合约信息
// 字段映射来自 Binance Futures API 响应
type BinanceSymbol struct {
	// Symbol 交易对，如 SOLUSDT
	Symbol string `json:"symbol"`
	// Pair 标的交易对
	Pair string `json:"pair"`
	// ContractType 合约类型: PERPETUAL（永续）, CURRENT_QUARTER（当季）
	ContractType string `json:"contractType"`
	// Status 交易对状态: TRADING, BREAK
	Status string `json:"status"`
	// BaseAsset 标的资产，如 SOL
	BaseAsset string `json:"baseAsset"`
	// QuoteAsset 报价资产，如 USDT
	QuoteAsset string `json:"quoteAsset"`
	// MarginAsset 保证金资产
	MarginAsset string `json:"marginAsset"`
	// PricePrecision 价格精度
	PricePrecision int `json:"pricePrecision"`
	// QuantityPrecision 数量精度
	QuantityPrecision int `json:"quantityPrecision"`
	// Filters 过滤器列表
	Filters []BinanceFilter `json:"filters"`
}

// BinanceFilter Binance 过滤器
type BinanceFilter struct {
	// FilterType 过滤器类型: PRICE_FILTER, LOT_SIZE 等
	FilterType string `json:"filterType"`
	// TickSize 价格步长（PRICE_FILTER）
	TickSize string `json:"tickSize,omitempty"`
	// StepSize 数量步长（LOT_SIZE）
	StepSize string `json:"stepSize,omitempty"`
	// MinQty 最小数量
	MinQty string `json:"minQty,omitempty"`
	// MaxQty 最大数量
	MaxQty string `json:"maxQty,omitempty"`
}

// IsUSDTPerpetual 判断是否为 USDT 永续合约
// 条件: contractType=PERPETUAL, quoteAsset=USDT, status=TRADING
func (s *BinanceSymbol) IsUSDTPerpetual() bool {
	return s.ContractType == "PERPETUAL" && s.QuoteAsset == "USDT" && s.Status == "TRADING"
}

// GetTickSize 获取价格步长
func (s *BinanceSymbol) GetTickSize() string {
	for _, f := range s.Filters {
		if f.FilterType == "PRICE_FILTER" {
			return f.TickSize
		}
	}
	return ""
}

// GetStepSize 获取数量步长
func (s *BinanceSymbol) GetStepSize() string {
	for _, f := range s.Filters {
		if f.FilterType == "LOT_SIZE" {
			return f.StepSize
		}
	}
	return ""
}

// BitmartResponse Bitmart 合约元数据 API 响应
// API: GET /contract/public/details
type BitmartResponse struct {
	// Code 响应码，1000 表示成功
	Code int `json:"code"`
	// Message 响应消息
	Message string `json:"message"`
	// Data 数据
	Data BitmartData `json:"data"`
}

// BitmartData Bitmart 响应数据
type BitmartData struct {
	// Symbols 合约列表
	Symbols []BitmartContract `json:"symbols"`
}

// BitmartContract Bitmart 合约信息
type BitmartContract struct {
	// Symbol 交易对，如 SOLUSDT
	Symbol string `json:"symbol"`
	// ProductType 合约类型: 1 永续, 2 交割
	ProductType int `json:"product_type"`
	// BaseCurrency 基础币种，如 SOL
	BaseCurrency string `json:"base_currency"`
	// QuoteCurrency 报价币种，如 USDT
	QuoteCurrency string `json:"quote_currency"`
	// PricePrecision 价格精度（步长），如 "0.001"
	PricePrecision string `json:"price_precision"`
	// VolPrecision 数量精度（步长）
	VolPrecision string `json:"vol_precision"`
	// ContractSize 单张合约面值（基础币种数量）
	ContractSize string `json:"contract_size"`
	// MinVolume 最小下单张数
	MinVolume string `json:"min_volume"`
	// MaxVolume 最大下单张数
	MaxVolume string `json:"max_volume"`
	// MaxLeverage 最大杠杆倍数
	MaxLeverage string `json:"max_leverage"`
	// Status 合约状态（部分接口版本缺省）
	Status string `json:"status,omitempty"`
}

// IsUSDTPerpetual 判断是否为 USDT 永续合约
// Bitmart 的 details 接口部分版本不回 status，缺省视为可交易
func (c *BitmartContract) IsUSDTPerpetual() bool {
	if c.ProductType != 1 || c.QuoteCurrency != "USDT" {
		return false
	}
	return c.Status == "" || c.Status == "Trading" || c.Status == "TRADING"
}

// SymbolMap 交易对映射表
// 将用户输入的交易对映射到两家交易所的具体标识符与精度参数
type SymbolMap struct {
	// Canon 内部统一标识，如 SOLUSDT
	Canon string
	// UserInput 用户输入，如 SOL-USDT
	UserInput string
	// BinanceSym Binance 交易对，如 SOLUSDT
	BinanceSym string
	// BitmartSym Bitmart 交易对，如 SOLUSDT
	BitmartSym string
	// BinanceTick Binance 价格步长
	BinanceTick float64
	// BinanceQtyStep Binance 数量步长
	BinanceQtyStep float64
	// BitmartTick Bitmart 价格步长
	BitmartTick float64
	// BitmartContractSize Bitmart 单张合约面值（基础币种数量）
	BitmartContractSize float64
}
