package research

import (
	"math"
	"strings"

	"github.com/sells-group/promo-scout/internal/model"
)

// bonusTolerance is the maximum absolute difference in expected bonus amounts
// (currency units) for two same-type offers to be considered the same offer.
const bonusTolerance = 50.0

// NormalizeName lower-cases and trims a venue or offer name for comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsKnownVenue reports whether a discovered venue name matches any stored
// venue. Matching is exact after lower-casing and trimming; both sides are
// assumed to be from the same jurisdiction.
func IsKnownVenue(name string, stored []model.Venue) bool {
	key := NormalizeName(name)
	for _, v := range stored {
		if NormalizeName(v.Name) == key {
			return true
		}
	}
	return false
}

// IsKnownOffer reports whether a discovered offer matches any of a venue's
// reference offers. An offer is known if either its name is a case-insensitive
// substring of a stored offer's name (or vice versa), or the types match and
// the expected bonus amounts differ by less than bonusTolerance.
//
// Both rules are intentionally lenient: operators phrase the same bonus many
// ways, and a missed duplicate only adds a row to the comparison report, while
// an over-aggressive match would hide genuinely new offers.
func IsKnownOffer(candidate model.DiscoveredOffer, stored []model.Offer) bool {
	candName := NormalizeName(candidate.OfferName)
	candType := model.ParseOfferType(candidate.OfferType)

	for _, o := range stored {
		storedName := NormalizeName(o.Name)
		if candName != "" && storedName != "" &&
			(strings.Contains(storedName, candName) || strings.Contains(candName, storedName)) {
			return true
		}
		if candType == o.Type && math.Abs(candidate.ExpectedBonus-o.ExpectedBonus) < bonusTolerance {
			return true
		}
	}
	return false
}
