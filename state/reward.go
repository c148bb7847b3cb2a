package state

import (
	"math/big"

	"chainforge/crypto"
	"chainforge/types"
)

// RewardParams are the reward-schedule configuration options: base
// reward, halving interval, burn/treasury fractions, and the treasury
// address.
type RewardParams struct {
	BaseReward       *big.Int
	HalvingInterval  uint64
	BurnFraction     types.Rational
	TreasuryFraction types.Rational
	TreasuryAddress  crypto.Address
}

// BaseRewardForSlot implements the halving schedule:
// base_reward(slot) = base_reward >> (slot / halving_interval).
func (p RewardParams) BaseRewardForSlot(slot uint64) *big.Int {
	if p.HalvingInterval == 0 {
		return new(big.Int).Set(p.BaseReward)
	}
	shift := slot / p.HalvingInterval
	return new(big.Int).Rsh(p.BaseReward, uint(shift))
}

// SettleFees distributes gas_used * effective_fee_per_gas collected from
// every included transaction: a burn_fraction is destroyed (simply not
// credited to anyone), and the remainder is paid to the proposer. Returns
// the total fee collected and the portion burned, for reward-conservation
// accounting.
func SettleFees(overlay *Overlay, proposer crypto.Address, totalFee *big.Int, burnFraction types.Rational) (collected, burned *big.Int) {
	burned = burnFraction.MulBig(totalFee)
	payout := new(big.Int).Sub(totalFee, burned)

	acct := overlay.GetAccount(proposer)
	acct.Balance.Add(acct.Balance, payout)
	overlay.SetAccount(proposer, acct)

	return new(big.Int).Set(totalFee), burned
}

// SettleBlockReward mints base_reward(slot): it first pays treasury_fraction
// · reward to the treasury address, then commission_rate times what is left
// to the proposer, and distributes the remainder pro-rata by stake across
// every validator whose precommit appears in cert.
func SettleBlockReward(
	overlay *Overlay,
	vals *types.ValidatorSet,
	proposer *types.Validator,
	cert *types.FinalityCertificate,
	reward *big.Int,
	treasuryFraction types.Rational,
	treasuryAddress crypto.Address,
) *big.Int {
	if reward.Sign() <= 0 {
		return big.NewInt(0)
	}

	treasuryCut := treasuryFraction.MulBig(reward)
	if treasuryCut.Sign() > 0 {
		tAcct := overlay.GetAccount(treasuryAddress)
		tAcct.Balance.Add(tAcct.Balance, treasuryCut)
		overlay.SetAccount(treasuryAddress, tAcct)
	}

	remaining := new(big.Int).Sub(reward, treasuryCut)

	commission := proposer.CommissionRate.MulBig(remaining)
	if commission.Sign() > 0 {
		pAcct := overlay.GetAccount(proposer.Address)
		pAcct.Balance.Add(pAcct.Balance, commission)
		overlay.SetAccount(proposer.Address, pAcct)
	}

	prorataPool := new(big.Int).Sub(remaining, commission)
	if prorataPool.Sign() <= 0 || cert == nil {
		return reward
	}

	signers := distinctSigners(cert)
	totalSignerStake := big.NewInt(0)
	for _, addr := range signers {
		_, v := vals.GetByAddress(addr)
		if v != nil {
			totalSignerStake.Add(totalSignerStake, v.Stake)
		}
	}
	if totalSignerStake.Sign() == 0 {
		return reward
	}

	distributed := big.NewInt(0)
	for _, addr := range signers {
		_, v := vals.GetByAddress(addr)
		if v == nil {
			continue
		}
		share := new(big.Int).Mul(prorataPool, v.Stake)
		share.Div(share, totalSignerStake)
		if share.Sign() <= 0 {
			continue
		}
		acct := overlay.GetAccount(addr)
		acct.Balance.Add(acct.Balance, share)
		overlay.SetAccount(addr, acct)
		distributed.Add(distributed, share)
	}

	// Integer division leaves dust when prorataPool doesn't divide evenly
	// across signer stakes; credit it to the proposer so the full reward is
	// always accounted for.
	if dust := new(big.Int).Sub(prorataPool, distributed); dust.Sign() > 0 {
		pAcct := overlay.GetAccount(proposer.Address)
		pAcct.Balance.Add(pAcct.Balance, dust)
		overlay.SetAccount(proposer.Address, pAcct)
	}

	return reward
}

func distinctSigners(cert *types.FinalityCertificate) []crypto.Address {
	seen := make(map[crypto.Address]bool)
	var out []crypto.Address
	for _, v := range cert.Precommits {
		if !seen[v.VoterAddress] {
			seen[v.VoterAddress] = true
			out = append(out, v.VoterAddress)
		}
	}
	return out
}
