package entities

// RawSourceRecord is a facility as an adapter read it, before normalization.
// String fields are empty when the source had no value; pointer fields are nil.
type RawSourceRecord struct {
	SourceID     string
	Name         string
	TypeText     string
	Latitude     *float64
	Longitude    *float64
	Address      string
	City         string
	State        string
	ZipCode      string
	Phone        string
	Website      string
	Description  string
	ImageURL     string
	Rating       *float64
	ReviewCount  *int
	PriceTier    string
	CareLevels   []string
	Insurance    []string
	MedicalNeeds []string
	Amenities    []string
	AvailableNow *bool
}
