package exit

import (
	"fmt"

	"newsdriven/internal/types"
)

const ratioTolerance = 1e-6

// ValidateTiers 校验止盈分档：阈值递增、比例位于 (0,1]、比例和不超过 1。
func ValidateTiers(tiers []types.TakeProfitTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("tiers 至少需要 1 段")
	}
	sum := 0.0
	prev := 0.0
	for i, tier := range tiers {
		if tier.ThresholdPct <= 0 {
			return fmt.Errorf("tier#%d threshold_pct 必须大于 0", i+1)
		}
		if tier.CloseFraction <= 0 || tier.CloseFraction > 1 {
			return fmt.Errorf("tier#%d close_fraction 需位于 (0,1]", i+1)
		}
		if tier.ThresholdPct <= prev {
			return fmt.Errorf("tier#%d threshold_pct 需大于上一档", i+1)
		}
		prev = tier.ThresholdPct
		sum += tier.CloseFraction
	}
	if sum-1 > ratioTolerance {
		return fmt.Errorf("tiers 比例和不能超过 1.0，当前 %.4f", sum)
	}
	return nil
}

// FullyCloses 判断分档比例和是否达到 1，即全部触发后持仓归零。
func FullyCloses(tiers []types.TakeProfitTier) bool {
	sum := 0.0
	for _, tier := range tiers {
		sum += clampFraction(tier.CloseFraction)
	}
	return sum >= 1-ratioTolerance
}
