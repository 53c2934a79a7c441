package research

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/promo-scout/internal/model"
	"github.com/sells-group/promo-scout/internal/store"
	"github.com/sells-group/promo-scout/pkg/anthropic"
)

// ErrRunInProgress is returned by StartRun while another run is executing.
// Concurrent runs would race on the same venue and offer records, so the
// engine refuses to start a second one.
var ErrRunInProgress = eris.New("research: a run is already in progress")

// Engine orchestrates research runs: it walks every jurisdiction, discovers
// venues and offers through the completion service, reconciles them against
// the stored reference dataset, and maintains the run's audit record.
type Engine struct {
	store store.Store
	ai    anthropic.Completer
	sem   *semaphore.Weighted
}

func NewEngine(st store.Store, ai anthropic.Completer) *Engine {
	return &Engine{
		store: st,
		ai:    ai,
		sem:   semaphore.NewWeighted(1),
	}
}

// StartRun creates a run record and schedules the research loop in the
// background, returning immediately. The run detaches from the caller's
// context so an aborted HTTP request does not kill it; progress is observed
// by polling the store.
func (e *Engine) StartRun(ctx context.Context) (*model.Run, error) {
	if !e.sem.TryAcquire(1) {
		return nil, ErrRunInProgress
	}

	run, err := e.store.CreateRun(ctx)
	if err != nil {
		e.sem.Release(1)
		return nil, eris.Wrap(err, "research: create run")
	}

	go func() {
		defer e.sem.Release(1)
		e.execute(context.WithoutCancel(ctx), run)
	}()

	return run, nil
}

// GetRun returns a snapshot of a run for polling callers.
func (e *Engine) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return e.store.GetRun(ctx, runID)
}

// ListRuns returns run records ordered most-recent first.
func (e *Engine) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	return e.store.ListRuns(ctx, filter)
}

func (e *Engine) execute(ctx context.Context, run *model.Run) {
	logger := zap.L().With(zap.String("run_id", run.ID))
	logger.Info("research run started")

	if err := e.processJurisdictions(ctx, run); err != nil {
		e.fail(ctx, run, err, logger)
		return
	}

	e.finalize(run)
	if err := e.store.SaveRun(ctx, run); err != nil {
		e.fail(ctx, run, eris.Wrap(err, "research: save completed run"), logger)
		return
	}

	logger.Info("research run completed",
		zap.Int("venues_processed", run.VenuesProcessed),
		zap.Int("offers_processed", run.OffersProcessed),
		zap.Int("missing_casinos", run.Summary.TotalMissingCasinos),
		zap.Int("new_offers", run.Summary.TotalNewOffers))
}

// processJurisdictions walks the fixed jurisdiction list in order. Stage
// failures (discovery, offer research) degrade to empty results and a log
// entry; only store errors escape and fail the run.
func (e *Engine) processJurisdictions(ctx context.Context, run *model.Run) error {
	for _, j := range model.Jurisdictions {
		run.CurrentState = j.Code
		run.CurrentVenue = ""
		run.AppendLog(fmt.Sprintf("Researching %s (%s)", j.Name, j.Code))
		if err := e.store.SaveRun(ctx, run); err != nil {
			return eris.Wrapf(err, "research: checkpoint run for %s", j.Code)
		}

		if err := e.processJurisdiction(ctx, run, j); err != nil {
			return err
		}

		run.AppendLog(fmt.Sprintf("Finished %s", j.Name))
		if err := e.store.SaveRun(ctx, run); err != nil {
			return eris.Wrapf(err, "research: checkpoint run for %s", j.Code)
		}
	}
	return nil
}

func (e *Engine) processJurisdiction(ctx context.Context, run *model.Run, j model.Jurisdiction) error {
	candidates, err := DiscoverVenues(ctx, e.ai, j)
	if err != nil {
		run.AppendLog(fmt.Sprintf("Venue discovery failed for %s: %s", j.Name, eris.Cause(err).Error()))
		candidates = nil
	} else {
		run.AppendLog(fmt.Sprintf("Discovered %d venues in %s", len(candidates), j.Name))
	}

	reference, err := e.store.ListVenues(ctx, store.VenueFilter{State: j.Code, Origin: model.OriginReference})
	if err != nil {
		return eris.Wrapf(err, "research: list reference venues for %s", j.Code)
	}

	var missing []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		key := model.VenueIdentityKey(c.Name, j.Code)
		if seen[key] || IsKnownVenue(c.Name, reference) {
			continue
		}
		seen[key] = true

		if _, err := e.store.UpsertVenue(ctx, model.Venue{
			Name:          c.Name,
			State:         j.Code,
			StateName:     j.Name,
			Website:       c.Website,
			LicenseNumber: c.LicenseNumber,
			City:          c.City,
			Origin:        model.OriginAIDiscovered,
		}); err != nil {
			return eris.Wrapf(err, "research: persist discovered venue %q", c.Name)
		}
		missing = append(missing, c.Name)
	}

	if len(missing) > 0 {
		run.MissingVenues = append(run.MissingVenues, model.MissingVenues{
			State:     j.Code,
			StateName: j.Name,
			Casinos:   missing,
		})
		run.AppendLog(fmt.Sprintf("Found %d casinos in %s missing from the reference data", len(missing), j.Name))
	} else {
		run.AppendLog(fmt.Sprintf("No missing casinos in %s", j.Name))
	}

	venues, err := e.store.ListVenues(ctx, store.VenueFilter{State: j.Code})
	if err != nil {
		return eris.Wrapf(err, "research: list venues for %s", j.Code)
	}

	for _, v := range venues {
		if err := e.processVenue(ctx, run, j, v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) processVenue(ctx context.Context, run *model.Run, j model.Jurisdiction, v model.Venue) error {
	run.CurrentVenue = v.Name
	run.VenuesProcessed++
	if err := e.store.SaveRun(ctx, run); err != nil {
		return eris.Wrapf(err, "research: checkpoint run at venue %q", v.Name)
	}

	discovered, err := ResearchOffers(ctx, e.ai, v.Name, j)
	if err != nil {
		run.AppendLog(fmt.Sprintf("Offer research failed for %s: %s", v.Name, eris.Cause(err).Error()))
		return nil
	}
	if len(discovered) == 0 {
		return nil
	}

	current, err := e.store.ListOffers(ctx, store.OfferFilter{VenueID: v.ID, Origin: model.OriginReference})
	if err != nil {
		return eris.Wrapf(err, "research: list reference offers for %q", v.Name)
	}

	var newOffers []model.DiscoveredOffer
	for _, d := range discovered {
		if IsKnownOffer(d, current) {
			continue
		}
		if _, err := e.store.CreateOffer(ctx, model.Offer{
			VenueID:         v.ID,
			VenueName:       v.Name,
			State:           j.Code,
			Name:            d.OfferName,
			Type:            model.ParseOfferType(d.OfferType),
			ExpectedDeposit: d.ExpectedDeposit,
			ExpectedBonus:   d.ExpectedBonus,
			Description:     d.Description,
			Terms:           d.Terms,
			Origin:          model.OriginAIDiscovered,
		}); err != nil {
			return eris.Wrapf(err, "research: persist new offer %q for %q", d.OfferName, v.Name)
		}
		newOffers = append(newOffers, d)
	}
	run.OffersProcessed += len(newOffers)

	if len(newOffers) > 0 {
		summaries := make([]model.OfferSummary, len(current))
		for i, o := range current {
			summaries[i] = model.OfferSummary{Name: o.Name, Type: o.Type, ExpectedBonus: o.ExpectedBonus}
		}
		run.Comparisons = append(run.Comparisons, model.OfferComparison{
			VenueID:          v.ID,
			VenueName:        v.Name,
			State:            j.Code,
			CurrentOffers:    summaries,
			DiscoveredOffers: discovered,
			NewOffers:        newOffers,
		})
		run.AppendLog(fmt.Sprintf("Found %d new offers for %s", len(newOffers), v.Name))
	}
	return nil
}

// finalize rolls up the summary and moves the run to its completed state.
func (e *Engine) finalize(run *model.Run) {
	summary := &model.RunSummary{StatesProcessed: make([]string, 0, len(model.Jurisdictions))}
	for _, j := range model.Jurisdictions {
		summary.StatesProcessed = append(summary.StatesProcessed, j.Code)
	}
	for _, mv := range run.MissingVenues {
		summary.TotalMissingCasinos += len(mv.Casinos)
	}
	for _, c := range run.Comparisons {
		summary.TotalNewOffers += len(c.NewOffers)
	}

	now := nowUTC()
	run.Status = model.RunStatusCompleted
	run.CompletedAt = &now
	run.CurrentState = ""
	run.CurrentVenue = ""
	run.Summary = summary
	run.AppendLog("Research run completed")
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// fail moves the run to its failed terminal state. Records persisted before
// the failure stay persisted; the run's summary reflects only what was
// computed up to the failure point.
func (e *Engine) fail(ctx context.Context, run *model.Run, cause error, logger *zap.Logger) {
	logger.Error("research run failed", zap.Error(cause))

	now := nowUTC()
	run.Status = model.RunStatusFailed
	run.CompletedAt = &now
	run.CurrentState = ""
	run.CurrentVenue = ""
	run.Error = eris.Cause(cause).Error()
	run.AppendLog(fmt.Sprintf("Run failed: %s", run.Error))

	if err := e.store.SaveRun(ctx, run); err != nil {
		logger.Error("failed to persist failed run state", zap.Error(err))
	}
}
