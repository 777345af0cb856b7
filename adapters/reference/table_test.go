package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"goodsam/ports"
)

func TestTable_LookupKeepsTableOrder(t *testing.T) {
	table := NewTable([]ports.County{
		{FIPS: 39001, County: "Adams", State: "Ohio"},
		{FIPS: 21001, County: "Adair", State: "Kentucky"},
		{FIPS: 39003, County: "Allen", State: "Ohio"},
	})

	got := table.Lookup([]int{39003, 39001, 39001, 99999})
	assert.Equal(t, []ports.County{
		{FIPS: 39001, County: "Adams", State: "Ohio"},
		{FIPS: 39003, County: "Allen", State: "Ohio"},
	}, got)
	assert.Empty(t, table.Lookup(nil))
	assert.Equal(t, 3, table.Len())
}
