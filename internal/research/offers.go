package research

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/promo-scout/internal/model"
	"github.com/sells-group/promo-scout/pkg/anthropic"
)

const offerPrompt = `You are a gaming industry research analyst tracking casino promotions.

Research the promotional offers currently advertised by the online casino "%s" in %s (%s). Cover welcome bonuses, deposit matches, lossback/cashback, free spins, reload bonuses, and loyalty programs. EXCLUDE sportsbook and sports wagering promotions entirely.

For each offer report the expected deposit and bonus amounts in dollars (0 if not applicable). Use one of these values for offerType: welcome, deposit-match, lossback, free-spins, reload, loyalty, unknown.

Return a valid JSON object with this exact structure and nothing else (the offers list may be empty):
{"offers": [{"offerName": "<name>", "offerType": "<type>", "expectedDeposit": <number>, "expectedBonus": <number>, "description": "<short description>", "terms": "<key terms or empty>"}]}`

// ResearchOffers asks the completion service for a venue's current promotional
// offers. Same failure policy as DiscoverVenues: unparseable output is zero
// results, transport errors are returned for the caller to log and absorb.
func ResearchOffers(ctx context.Context, ai anthropic.Completer, venueName string, j model.Jurisdiction) ([]model.DiscoveredOffer, error) {
	prompt := fmt.Sprintf(offerPrompt, venueName, j.Name, j.Code)

	text, err := ai.Complete(ctx, prompt)
	if err != nil {
		return nil, eris.Wrapf(err, "research: offers for %s (%s)", venueName, j.Code)
	}

	var parsed struct {
		Offers []model.DiscoveredOffer `json:"offers"`
	}
	if !ExtractObject(text, &parsed) {
		return nil, nil
	}

	offers := make([]model.DiscoveredOffer, 0, len(parsed.Offers))
	for _, o := range parsed.Offers {
		if NormalizeName(o.OfferName) == "" {
			continue
		}
		offers = append(offers, o)
	}
	return offers, nil
}
