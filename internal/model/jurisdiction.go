package model

// Jurisdiction is one of the fixed US states the research engine covers.
type Jurisdiction struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Jurisdictions is the fixed set of states with licensed online casino markets,
// processed in this order on every run.
var Jurisdictions = []Jurisdiction{
	{Code: "NJ", Name: "New Jersey"},
	{Code: "PA", Name: "Pennsylvania"},
	{Code: "MI", Name: "Michigan"},
	{Code: "WV", Name: "West Virginia"},
}

// JurisdictionByCode looks up a jurisdiction by its state code.
func JurisdictionByCode(code string) (Jurisdiction, bool) {
	for _, j := range Jurisdictions {
		if j.Code == code {
			return j, true
		}
	}
	return Jurisdiction{}, false
}
