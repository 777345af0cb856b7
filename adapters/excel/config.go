package excel

// LoadConfig controls how a raw table becomes a dataset
type LoadConfig struct {
	// Renames maps a header to the column name used in the dataset
	Renames map[string]string `json:"renames"`
	// Categories maps text values of a column to numbers; unmapped values become missing
	Categories map[string]map[string]float64 `json:"categories"`
	// Missing lists the cell values read as missing in numeric columns
	Missing []string `json:"missing"`
}

// DefaultLoadConfig matches the county opioid dataset: the death rate change
// column is renamed to the outcome and Urbanicity is coded Urban=1, Rural=0.
func DefaultLoadConfig() LoadConfig {
	return LoadConfig{
		Renames: map[string]string{"death-rate-2013-2016": "delta_death_rate"},
		Categories: map[string]map[string]float64{
			"Urbanicity": {"Urban": 1, "Rural": 0},
		},
		Missing: []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None"},
	}
}
