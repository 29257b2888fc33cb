// Package vwap 执行价估算属性测试
package vwap

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"cross-exchange-arbitrage/internal/core/model"
)

func TestEstimate_BoundedByConsumedLevels_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// 属性: 对任意升序档位序列与不超过总可用金额的目标金额，
	// VWAP 落在最优价与实际消耗到的最差价之间（含边界）。
	properties.Property("VWAP 在已消耗档位的价格区间内", prop.ForAll(
		func(basePx float64, steps []float64, vols []float64, frac float64) bool {
			n := len(steps)
			if len(vols) < n {
				n = len(vols)
			}
			if n == 0 {
				return true
			}

			levels := make([]model.Level, 0, n)
			px := basePx
			var totalNotional float64
			for i := 0; i < n; i++ {
				px += steps[i]
				levels = append(levels, model.Level{Price: px, Volume: vols[i]})
				totalNotional += px * vols[i]
			}

			target := totalNotional * frac
			if target <= 0 {
				return true
			}

			got := Estimate(levels, target)
			best := levels[0].Price
			worst := levels[len(levels)-1].Price
			return got >= best && got <= worst
		},
		gen.Float64Range(0.01, 50000),
		gen.SliceOfN(5, gen.Float64Range(0.001, 10)),
		gen.SliceOfN(5, gen.Float64Range(0.001, 100)),
		gen.Float64Range(0.01, 1.0),
	))

	// 属性: 相同输入两次调用结果完全一致（纯函数）
	properties.Property("相同输入结果一致", prop.ForAll(
		func(px float64, vol float64, target float64) bool {
			levels := []model.Level{{Price: px, Volume: vol}}
			return Estimate(levels, target) == Estimate(levels, target)
		},
		gen.Float64Range(0.01, 100000),
		gen.Float64Range(0, 1000),
		gen.Float64Range(0, 1000000),
	))

	properties.TestingRun(t)
}
