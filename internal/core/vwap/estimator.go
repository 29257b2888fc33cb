// Package vwap 实现按深度逐档消耗的执行价估算。
// 纯函数，无共享状态，可并发、可重复调用，是核心的单元测试面。
package vwap

import (
	"cross-exchange-arbitrage/internal/core/model"
)

// Estimate 估算以目标名义金额吃掉给定深度档位的成交均价（VWAP）
// 算法: 按档位给定的优先顺序逐档消耗，
// 每档可成交数量 = min(剩余名义金额/价格, 档位数量)，
// 累加 cost 与成交数量，剩余名义金额 ≤ 0 或档位耗尽时停止。
// 参数 levels: 深度档位（asks 升序或 bids 降序，最优价在前）
// 参数 targetNotional: 目标名义金额
// 返回: cost/qty；若一档都未消耗则返回 0。
// 0 表示盘口过薄或为空，调用方必须视为"无可靠价格"，绝不能当作可成交价。
func Estimate(levels []model.Level, targetNotional float64) float64 {
	if targetNotional <= 0 {
		return 0
	}

	remaining := targetNotional
	var totalCost, totalQty float64

	for _, lv := range levels {
		// 非正价格或非正数量的档位直接跳过，杜绝除零
		if lv.Price <= 0 || lv.Volume <= 0 {
			continue
		}

		fillable := lv.Volume
		if remaining < lv.Price*lv.Volume {
			fillable = remaining / lv.Price
		}

		totalCost += lv.Price * fillable
		totalQty += fillable
		remaining -= lv.Price * fillable

		if remaining <= 0 {
			break
		}
	}

	if totalQty <= 0 {
		return 0
	}
	return totalCost / totalQty
}
