package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/promo-scout/internal/model"
	"github.com/sells-group/promo-scout/pkg/anthropic"
)

const analysisPrompt = `You are a gaming industry analyst comparing casino promotional offers.

Casino: %s (%s)

Current offers on record:
%s

Newly discovered offers:
%s

For each newly discovered offer, judge whether it is superior to the casino's current offers from a player's perspective (bonus size relative to required deposit, wagering terms, overall value).

Return a valid JSON object with this exact structure and nothing else:
{"verdicts": [{"offerName": "<name>", "superior": <true|false>, "reasoning": "<one sentence>"}]}`

// OfferVerdict is the analysis judgment for one newly discovered offer.
type OfferVerdict struct {
	OfferName string `json:"offerName"`
	Superior  bool   `json:"superior"`
	Reasoning string `json:"reasoning"`
}

// VenueAnalysis holds the verdicts for one venue's comparison entry.
type VenueAnalysis struct {
	VenueName string         `json:"venue_name"`
	State     string         `json:"state"`
	Verdicts  []OfferVerdict `json:"verdicts"`
}

// AnalyzeRun asks the completion service to judge each new offer in a run's
// comparison entries against the venue's current offers. Read-only over the
// run record; venues whose analysis fails are skipped with their error
// recorded so one bad response does not lose the rest.
func AnalyzeRun(ctx context.Context, ai anthropic.Completer, run *model.Run) ([]VenueAnalysis, error) {
	if len(run.Comparisons) == 0 {
		return nil, nil
	}

	var results []VenueAnalysis
	var failures []string
	for _, c := range run.Comparisons {
		verdicts, err := analyzeComparison(ctx, ai, c)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", c.VenueName, eris.Cause(err).Error()))
			continue
		}
		results = append(results, VenueAnalysis{
			VenueName: c.VenueName,
			State:     c.State,
			Verdicts:  verdicts,
		})
	}

	if len(results) == 0 && len(failures) > 0 {
		return nil, eris.Errorf("research: analysis failed for all venues: %s", strings.Join(failures, "; "))
	}
	return results, nil
}

func analyzeComparison(ctx context.Context, ai anthropic.Completer, c model.OfferComparison) ([]OfferVerdict, error) {
	var current strings.Builder
	if len(c.CurrentOffers) == 0 {
		current.WriteString("(none on record)\n")
	}
	for _, o := range c.CurrentOffers {
		fmt.Fprintf(&current, "- %s (%s, bonus $%.0f)\n", o.Name, o.Type, o.ExpectedBonus)
	}

	var discovered strings.Builder
	for _, o := range c.NewOffers {
		fmt.Fprintf(&discovered, "- %s (%s, deposit $%.0f, bonus $%.0f): %s\n",
			o.OfferName, o.OfferType, o.ExpectedDeposit, o.ExpectedBonus, o.Description)
	}

	prompt := fmt.Sprintf(analysisPrompt, c.VenueName, c.State, current.String(), discovered.String())

	text, err := ai.Complete(ctx, prompt)
	if err != nil {
		return nil, eris.Wrapf(err, "research: analyze offers for %s", c.VenueName)
	}

	var parsed struct {
		Verdicts []OfferVerdict `json:"verdicts"`
	}
	if !ExtractObject(text, &parsed) {
		return nil, eris.Errorf("research: no parseable analysis for %s", c.VenueName)
	}
	return parsed.Verdicts, nil
}
