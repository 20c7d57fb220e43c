package staking

import "math/big"

const secondsPerYear = 31_536_000

var (
	basisPoints = big.NewInt(10_000)
	// rewardDivisor = secondsPerYear * 10000, the single floor division applied
	// after the full product so rounding stays bit-exact across magnitudes.
	rewardDivisor = new(big.Int).Mul(big.NewInt(secondsPerYear), basisPoints)

	ratioScale = mustBigInt("1000000000000000000") // 1e18 fixed point
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// RewardFor computes the linear reward for a principal held over duration
// seconds at apyBps basis points per year:
//
//	floor(principal * apyBps * duration / (31_536_000 * 10_000))
//
// The product is formed in full before the one floor division. Non-positive
// inputs yield zero.
func RewardFor(principal *big.Int, apyBps uint64, duration int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || apyBps == 0 || duration <= 0 {
		return big.NewInt(0)
	}
	reward := new(big.Int).Mul(principal, new(big.Int).SetUint64(apyBps))
	reward.Mul(reward, big.NewInt(duration))
	return reward.Quo(reward, rewardDivisor)
}
