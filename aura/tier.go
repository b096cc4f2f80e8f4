package aura

// Tier cutoffs are a tunable display policy, not a structural invariant.
const (
	tierLuminaryMin = 500
	tierBeaconMin   = 200
	tierKindredMin  = 50
)

const (
	TitleLuminary  = "Luminary"
	TitleBeacon    = "Beacon"
	TitleKindred   = "Kindred"
	TitleWanderer  = "Wanderer"
	TitleTarnished = "Tarnished"
)

// TitleFor maps a balance to its display title.
func TitleFor(points int) string {
	switch {
	case points >= tierLuminaryMin:
		return TitleLuminary
	case points >= tierBeaconMin:
		return TitleBeacon
	case points >= tierKindredMin:
		return TitleKindred
	case points >= 0:
		return TitleWanderer
	default:
		return TitleTarnished
	}
}
