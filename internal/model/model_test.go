package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJurisdictions_StableOrder(t *testing.T) {
	codes := make([]string, 0, len(Jurisdictions))
	for _, j := range Jurisdictions {
		codes = append(codes, j.Code)
	}
	assert.Equal(t, []string{"NJ", "PA", "MI", "WV"}, codes)
}

func TestJurisdictionByCode(t *testing.T) {
	j, ok := JurisdictionByCode("PA")
	assert.True(t, ok)
	assert.Equal(t, "Pennsylvania", j.Name)

	_, ok = JurisdictionByCode("NV")
	assert.False(t, ok)
}

func TestVenueIdentityKey_Normalizes(t *testing.T) {
	a := VenueIdentityKey("  Golden Nugget  ", "NJ")
	b := VenueIdentityKey("golden nugget", "NJ")
	assert.Equal(t, a, b)

	c := VenueIdentityKey("golden nugget", "PA")
	assert.NotEqual(t, a, c)
}

func TestParseOfferType(t *testing.T) {
	assert.Equal(t, OfferTypeWelcome, ParseOfferType("Welcome"))
	assert.Equal(t, OfferTypeDepositMatch, ParseOfferType("Deposit Match"))
	assert.Equal(t, OfferTypeFreeSpins, ParseOfferType("free_spins"))
	assert.Equal(t, OfferTypeUnknown, ParseOfferType("mystery box"))
	assert.Equal(t, OfferTypeUnknown, ParseOfferType(""))
}

func TestRunStatus_Terminal(t *testing.T) {
	assert.False(t, RunStatusInProgress.Terminal())
	assert.True(t, RunStatusCompleted.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
}

func TestRun_AppendLog(t *testing.T) {
	var r Run
	r.AppendLog("first")
	r.AppendLog("second")
	assert.Len(t, r.Log, 2)
	assert.Equal(t, "first", r.Log[0].Message)
	assert.False(t, r.Log[0].At.IsZero())
}
