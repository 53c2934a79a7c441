// Package importer loads the reference dataset (venues and their current
// offers) from CSV files or an XLSX workbook into the store. Imported records
// carry the reference origin; the research engine only ever reads them.
package importer

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/promo-scout/internal/model"
	"github.com/sells-group/promo-scout/internal/store"
)

// Sheet names expected in an XLSX workbook.
const (
	venuesSheet = "Casinos"
	offersSheet = "Offers"
)

// Result summarizes one import.
type Result struct {
	Venues        int
	Offers        int
	SkippedOffers int
}

// Importer writes reference venues and offers into the store.
type Importer struct {
	store store.Store
}

func New(st store.Store) *Importer {
	return &Importer{store: st}
}

// ImportCSV imports venues and, optionally, offers from CSV files. Each file
// needs a header row; columns are matched by name. offersPath may be empty.
func (im *Importer) ImportCSV(ctx context.Context, venuesPath, offersPath string) (*Result, error) {
	venueRows, err := readCSV(venuesPath)
	if err != nil {
		return nil, err
	}

	var offerRows []row
	if offersPath != "" {
		offerRows, err = readCSV(offersPath)
		if err != nil {
			return nil, err
		}
	}

	return im.load(ctx, venueRows, offerRows)
}

// ImportXLSX imports from a workbook with "Casinos" and "Offers" sheets. The
// offers sheet is optional.
func (im *Importer) ImportXLSX(ctx context.Context, path string) (*Result, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open workbook")
	}

	venueRows, err := readSheet(f, venuesSheet)
	if err != nil {
		return nil, err
	}

	var offerRows []row
	if sheetExists(f, offersSheet) {
		offerRows, err = readSheet(f, offersSheet)
		if err != nil {
			return nil, err
		}
	}

	return im.load(ctx, venueRows, offerRows)
}

func (im *Importer) load(ctx context.Context, venueRows, offerRows []row) (*Result, error) {
	venues := make([]model.Venue, 0, len(venueRows))
	for _, r := range venueRows {
		name := r.get("name")
		state := strings.ToUpper(r.get("state"))
		if name == "" || state == "" {
			continue
		}
		stateName := r.get("state_name")
		if j, ok := model.JurisdictionByCode(state); ok && stateName == "" {
			stateName = j.Name
		}
		venues = append(venues, model.Venue{
			Name:          name,
			State:         state,
			StateName:     stateName,
			Website:       r.get("website"),
			LicenseNumber: r.get("license_number"),
			City:          r.get("city"),
			Origin:        model.OriginReference,
		})
	}

	nVenues, err := im.store.ImportVenues(ctx, venues)
	if err != nil {
		return nil, eris.Wrap(err, "importer: import venues")
	}

	// Offers reference venues by name + state, so resolve IDs against the
	// store after the venue import.
	stored, err := im.store.ListVenues(ctx, store.VenueFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "importer: list venues")
	}
	byKey := make(map[string]model.Venue, len(stored))
	for _, v := range stored {
		byKey[v.IdentityKey()] = v
	}

	var offers []model.Offer
	skipped := 0
	for _, r := range offerRows {
		venueName := r.get("venue_name")
		if venueName == "" {
			venueName = r.get("casino")
		}
		state := strings.ToUpper(r.get("state"))
		name := r.get("name")
		if venueName == "" || name == "" {
			continue
		}

		venue, ok := byKey[model.VenueIdentityKey(venueName, state)]
		if !ok {
			zap.L().Warn("importer: offer references unknown venue",
				zap.String("venue", venueName), zap.String("state", state), zap.String("offer", name))
			skipped++
			continue
		}

		offers = append(offers, model.Offer{
			VenueID:         venue.ID,
			VenueName:       venue.Name,
			State:           venue.State,
			Name:            name,
			Type:            model.ParseOfferType(r.get("type")),
			ExpectedDeposit: parseAmount(r.get("expected_deposit")),
			ExpectedBonus:   parseAmount(r.get("expected_bonus")),
			Description:     r.get("description"),
			Terms:           r.get("terms"),
			Origin:          model.OriginReference,
			Verified:        parseBool(r.get("verified")),
		})
	}

	nOffers, err := im.store.ImportOffers(ctx, offers)
	if err != nil {
		return nil, eris.Wrap(err, "importer: import offers")
	}

	return &Result{Venues: nVenues, Offers: nOffers, SkippedOffers: skipped}, nil
}

// row is one data record with header-keyed access.
type row struct {
	header map[string]int
	cells  []string
}

func (r row) get(col string) string {
	idx, ok := r.header[col]
	if !ok || idx >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[idx])
}

func buildHeader(cells []string) map[string]int {
	header := make(map[string]int, len(cells))
	for i, c := range cells {
		key := strings.ToLower(strings.TrimSpace(c))
		key = strings.ReplaceAll(key, " ", "_")
		header[key] = i
	}
	return header
}

func readCSV(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headerCells, err := reader.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "importer: read header of %s", path)
	}
	header := buildHeader(headerCells)

	var rows []row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "importer: read %s", path)
		}
		rows = append(rows, row{header: header, cells: record})
	}
	return rows, nil
}

func readSheet(f *xlsx.File, name string) ([]row, error) {
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("importer: workbook has no %q sheet", name)
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := buildHeader(rowToStrings(sheet.Rows[0]))
	rows := make([]row, 0, len(sheet.Rows)-1)
	for _, r := range sheet.Rows[1:] {
		rows = append(rows, row{header: header, cells: rowToStrings(r)})
	}
	return rows, nil
}

func sheetExists(f *xlsx.File, name string) bool {
	_, ok := f.Sheet[name]
	return ok
}

func rowToStrings(r *xlsx.Row) []string {
	cells := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		cells[i] = c.String()
	}
	return cells
}

func parseAmount(s string) float64 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true
	default:
		return false
	}
}
