// Package pricing is the tier price table. All amounts are USD cents.
package pricing

import "verbapost/internal/model"

const (
	StandardCents int64 = 299
	HeirloomCents int64 = 599
	CivicCents    int64 = 699

	// OverageCents is the flat fee for recordings over the size limit,
	// applied at most once per order.
	OverageCents int64 = 100
)

func base(tier model.Tier) (int64, bool) {
	switch tier {
	case model.TierStandard:
		return StandardCents, true
	case model.TierHeirloom:
		return HeirloomCents, true
	case model.TierCivic:
		return CivicCents, true
	}
	return 0, false
}

// Price returns the total for a (tier, overageAccepted) pair. The result is
// stable for a given pair; the checkout session invalidation rule depends on
// that. ok is false for an unknown tier.
func Price(tier model.Tier, overageAccepted bool) (cents int64, ok bool) {
	cents, ok = base(tier)
	if !ok {
		return 0, false
	}
	if overageAccepted {
		cents += OverageCents
	}
	return cents, true
}
