package enums

import "fmt"

// LoyaltyTransactionType classifies entries in the loyalty ledger.
type LoyaltyTransactionType string

const (
	LoyaltyTransactionEarn          LoyaltyTransactionType = "earn"
	LoyaltyTransactionRedeem        LoyaltyTransactionType = "redeem"
	LoyaltyTransactionReferralBonus LoyaltyTransactionType = "referral_bonus"
	LoyaltyTransactionLuckyBox      LoyaltyTransactionType = "lucky_box"
)

var validLoyaltyTransactionTypes = []LoyaltyTransactionType{
	LoyaltyTransactionEarn,
	LoyaltyTransactionRedeem,
	LoyaltyTransactionReferralBonus,
	LoyaltyTransactionLuckyBox,
}

// String implements fmt.Stringer.
func (l LoyaltyTransactionType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LoyaltyTransactionType.
func (l LoyaltyTransactionType) IsValid() bool {
	for _, candidate := range validLoyaltyTransactionTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLoyaltyTransactionType converts raw input into a LoyaltyTransactionType.
func ParseLoyaltyTransactionType(value string) (LoyaltyTransactionType, error) {
	for _, candidate := range validLoyaltyTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loyalty transaction type %q", value)
}

// LoyaltyTier is a display band derived from the lifetime points balance.
type LoyaltyTier string

const (
	LoyaltyTierBronze   LoyaltyTier = "bronze"
	LoyaltyTierSilver   LoyaltyTier = "silver"
	LoyaltyTierGold     LoyaltyTier = "gold"
	LoyaltyTierPlatinum LoyaltyTier = "platinum"
)

// String implements fmt.Stringer.
func (l LoyaltyTier) String() string {
	return string(l)
}

// TierForPoints maps a points balance onto its tier.
func TierForPoints(points int64) LoyaltyTier {
	switch {
	case points >= 10000:
		return LoyaltyTierPlatinum
	case points >= 5000:
		return LoyaltyTierGold
	case points >= 1000:
		return LoyaltyTierSilver
	default:
		return LoyaltyTierBronze
	}
}

// ReferralStatus tracks whether a referral has paid out.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
)

// String implements fmt.Stringer.
func (r ReferralStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReferralStatus.
func (r ReferralStatus) IsValid() bool {
	return r == ReferralStatusPending || r == ReferralStatusCompleted
}
