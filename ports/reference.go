package ports

// County is one row of the FIPS reference table
type County struct {
	FIPS   int    `json:"fips"`
	County string `json:"county_name"`
	State  string `json:"state_name"`
}

// ReferenceTable is a read-only lookup of counties by FIPS code
type ReferenceTable interface {
	// Lookup returns the counties whose FIPS code is in codes, in table order
	Lookup(codes []int) []County
	// Len returns the number of rows in the table
	Len() int
}
