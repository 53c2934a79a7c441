package research

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/promo-scout/internal/model"
	"github.com/sells-group/promo-scout/pkg/anthropic"
)

const discoveryPrompt = `You are a gaming industry research analyst compiling regulatory data.

List ALL online casinos currently licensed and operational in %s (%s), according to the state's gaming regulator and other official sources. Include every licensed operator, not just the well-known brands.

Return a valid JSON object with this exact structure and nothing else:
{"casinos": [{"name": "<casino name>", "website": "<url or empty>", "licenseNumber": "<license id or empty>", "city": "<city or empty>"}]}`

// CandidateVenue is one venue as reported by the discovery stage, before
// reconciliation against the stored reference set.
type CandidateVenue struct {
	Name          string `json:"name"`
	Website       string `json:"website"`
	LicenseNumber string `json:"licenseNumber"`
	City          string `json:"city"`
}

// DiscoverVenues asks the completion service for the licensed venues in one
// jurisdiction. A response with no parseable JSON yields an empty list and no
// error; a transport failure is returned for the caller to log. Either way a
// failure here must not abort the run.
func DiscoverVenues(ctx context.Context, ai anthropic.Completer, j model.Jurisdiction) ([]CandidateVenue, error) {
	prompt := fmt.Sprintf(discoveryPrompt, j.Name, j.Code)

	text, err := ai.Complete(ctx, prompt)
	if err != nil {
		return nil, eris.Wrapf(err, "research: discover venues for %s", j.Code)
	}

	var parsed struct {
		Casinos []CandidateVenue `json:"casinos"`
	}
	if !ExtractObject(text, &parsed) {
		return nil, nil
	}

	venues := make([]CandidateVenue, 0, len(parsed.Casinos))
	for _, c := range parsed.Casinos {
		if NormalizeName(c.Name) == "" {
			continue
		}
		venues = append(venues, c)
	}
	return venues, nil
}
