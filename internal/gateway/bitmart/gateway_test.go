// Package bitmart 下单网关测试
package bitmart

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"cross-exchange-arbitrage/internal/config"
	"cross-exchange-arbitrage/internal/core/execution"
	"cross-exchange-arbitrage/internal/core/model"
	"cross-exchange-arbitrage/internal/metadata"
)

type fixedPrice struct {
	price float64
	ok    bool
}

func (f fixedPrice) Price(string) (float64, bool) {
	return f.price, f.ok
}

func newTestGateway(baseURL string, price float64) *Gateway {
	cfg := &config.BitmartGatewayConfig{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		SecretKey: "test-secret",
		Memo:      "test-memo",
	}
	sym := &metadata.SymbolMap{BitmartSym: "SOLUSDT", BitmartContractSize: 1}
	return New(cfg, sym, fixedPrice{price: price, ok: true}, zap.NewNop())
}

// TestSideCode 测试方向代码映射
func TestSideCode(t *testing.T) {
	tests := []struct {
		name   string
		side   model.Side
		reduce bool
		want   int
	}{
		{"开多", model.SideLong, false, SideBuyOpenLong},
		{"平空", model.SideLong, true, SideBuyCloseShort},
		{"开空", model.SideShort, false, SideSellOpenShort},
		{"平多", model.SideShort, true, SideSellCloseLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SideCode(tt.side, tt.reduce); got != tt.want {
				t.Errorf("SideCode(%s, %v) = %d, want %d", tt.side, tt.reduce, got, tt.want)
			}
		})
	}
}

// TestSign_Deterministic 测试签名确定性与格式
func TestSign_Deterministic(t *testing.T) {
	body := `{"symbol":"SOLUSDT","side":1,"type":"market","size":7,"leverage":"5","open_type":"isolated"}`

	sig1 := Sign("secret", "memo", body, 1700000000000)
	sig2 := Sign("secret", "memo", body, 1700000000000)
	if sig1 != sig2 {
		t.Fatalf("同一输入签名应一致")
	}
	if len(sig1) != 64 {
		t.Fatalf("签名长度 = %d, want 64", len(sig1))
	}
	if Sign("secret", "memo", body, 1700000000001) == sig1 {
		t.Fatalf("不同时间戳应产生不同签名")
	}
	if Sign("secret", "other", body, 1700000000000) == sig1 {
		t.Fatalf("不同 memo 应产生不同签名")
	}
}

// TestPlaceOrder_SignedRequest 测试下单请求的载荷与签名
func TestPlaceOrder_SignedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contract/private/submit-order" {
			t.Errorf("Path = %s", r.URL.Path)
		}
		if r.Header.Get("X-BM-KEY") != "test-key" {
			t.Errorf("缺少 API Key 头")
		}

		bodyBytes, _ := io.ReadAll(r.Body)
		ts, err := strconv.ParseInt(r.Header.Get("X-BM-TIMESTAMP"), 10, 64)
		if err != nil {
			t.Errorf("时间戳头非法: %v", err)
		}
		if r.Header.Get("X-BM-SIGN") != Sign("test-secret", "test-memo", string(bodyBytes), ts) {
			t.Errorf("签名校验失败")
		}

		var body OrderRequestBody
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			t.Errorf("请求体非法: %v", err)
		}
		if body.Symbol != "SOLUSDT" || body.Type != "market" || body.OpenType != "isolated" {
			t.Errorf("请求体字段错误: %+v", body)
		}
		if body.Side != SideBuyOpenLong {
			t.Errorf("Side = %d, want %d", body.Side, SideBuyOpenLong)
		}
		// 1000 USDT / (142.3 × 面值 1) 向下取整为 7 张
		if body.Size != 7 {
			t.Errorf("Size = %d, want 7", body.Size)
		}
		if body.Leverage != "5" {
			t.Errorf("Leverage = %s, want 5", body.Leverage)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":1000,"message":"Ok","data":{"order_id":230682,"price":"market price"}}`))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL, 142.3)
	fill, err := g.PlaceOrder(context.Background(), execution.OrderRequest{
		Symbol:   "SOLUSDT",
		Side:     model.SideLong,
		Notional: 1000,
		Leverage: 5,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if fill.Venue != model.VenueBitmart {
		t.Errorf("Venue = %s, want bitmart", fill.Venue)
	}
	if fill.OrderID != "230682" {
		t.Errorf("OrderID = %s, want 230682", fill.OrderID)
	}
}

// TestPlaceOrder_VenueRejection 测试交易所拒单
func TestPlaceOrder_VenueRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":30013,"message":"Insufficient balance","data":{}}`))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL, 142.3)
	_, err := g.PlaceOrder(context.Background(), execution.OrderRequest{
		Symbol:   "SOLUSDT",
		Side:     model.SideShort,
		Notional: 1000,
		Leverage: 5,
	})
	if err == nil {
		t.Fatalf("拒单应返回错误")
	}
}

// TestOrderSize_TooSmall 测试名义金额过小时拒绝下单
func TestOrderSize_TooSmall(t *testing.T) {
	g := newTestGateway("http://unused", 142.3)

	if _, err := g.orderSize(100); err == nil {
		t.Fatalf("换算张数为 0 时应返回错误")
	}
	size, err := g.orderSize(1000)
	if err != nil {
		t.Fatalf("orderSize: %v", err)
	}
	if size != 7 {
		t.Errorf("size = %d, want 7", size)
	}
}
