package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		TierExecutive: {
			CategoryTravel: {
				KindBusinessTrips: Range(400000, 1600000),
				KindParkingTolls:  FullyCovered(),
			},
			CategoryAccommodation: {
				KindHotelStays: Range(25000, 125000),
			},
		},
		TierStaff: {
			CategoryTravel: {
				KindBusinessTrips:        Range(24000, 160000),
				KindMileageReimbursement: Ceiling(10000),
			},
		},
	}
}

func TestNewCatalog(t *testing.T) {
	catalog, err := NewCatalog("test-1", sampleTable(), nil)
	require.NoError(t, err)

	assert.Equal(t, "test-1", catalog.Version())
	assert.True(t, catalog.HasTier(TierExecutive))
	assert.False(t, catalog.HasTier(TierMiddleManagement))
	assert.Equal(t, []Tier{TierExecutive, TierStaff}, catalog.DefinedTiers())
	assert.Equal(t, []Tier{TierSeniorManagement, TierMiddleManagement, TierLowerManagement, TierTeamLeads},
		catalog.MissingTiers())
}

func TestNewCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		version string
		table   Table
		rules   []RuleSpec
	}{
		{"missing version", "", sampleTable(), nil},
		{"empty table", "v1", Table{}, nil},
		{"unknown tier", "v1", Table{"Intern": {}}, nil},
		{"unknown category", "v1", Table{TierStaff: {"Snacks": {}}}, nil},
		{"unknown kind", "v1", Table{TierStaff: {CategoryTravel: {"Rocket": Ceiling(1)}}}, nil},
		{"kind in wrong category", "v1", Table{TierStaff: {CategoryTravel: {KindHotelStays: Ceiling(1)}}}, nil},
		{"invalid limit", "v1", Table{TierStaff: {CategoryTravel: {KindBusinessTrips: Range(5, 1)}}}, nil},
		{"incomplete rule", "v1", sampleTable(), []RuleSpec{{Name: "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.version, tt.table, tt.rules)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestCatalog_LimitFor(t *testing.T) {
	catalog, err := NewCatalog("test-1", sampleTable(), nil)
	require.NoError(t, err)

	limit, found, err := catalog.LimitFor(TierStaff, CategoryTravel, KindBusinessTrips)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, Range(24000, 160000), limit)

	_, found, err = catalog.LimitFor(TierStaff, CategoryAccommodation, KindHotelStays)
	require.NoError(t, err)
	assert.False(t, found, "absent kind within a known tier is not an error")

	_, _, err = catalog.LimitFor(TierMiddleManagement, CategoryTravel, KindBusinessTrips)
	assert.ErrorIs(t, err, ErrUnknownTier)

	_, err = catalog.Tier("Intern")
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestCatalog_IsImmutable(t *testing.T) {
	table := sampleTable()
	catalog, err := NewCatalog("test-1", table, nil)
	require.NoError(t, err)

	table[TierStaff][CategoryTravel][KindBusinessTrips] = Range(0, 1)
	copied := catalog.Table()
	copied[TierStaff][CategoryTravel][KindBusinessTrips] = Range(0, 2)

	limit, _, err := catalog.LimitFor(TierStaff, CategoryTravel, KindBusinessTrips)
	require.NoError(t, err)
	assert.Equal(t, Range(24000, 160000), limit)
}

func TestCatalog_MonotonicityWarnings(t *testing.T) {
	table := Table{
		TierSeniorManagement: {
			CategoryTravel: {KindBusinessTrips: Range(150000, 400000)},
		},
		TierMiddleManagement: {
			CategoryTravel: {KindBusinessTrips: Range(160000, 560000)},
		},
		TierStaff: {
			CategoryTravel: {KindBusinessTrips: Range(24000, 160000)},
		},
	}
	catalog, err := NewCatalog("test-1", table, nil)
	require.NoError(t, err)

	warnings := catalog.MonotonicityWarnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Middle Management")
	assert.Contains(t, warnings[0], "560000")
}

func TestTier_Rank(t *testing.T) {
	assert.Equal(t, 0, TierExecutive.Rank())
	assert.Equal(t, 5, TierStaff.Rank())
	assert.Equal(t, -1, Tier("Manager").Rank())
	assert.Equal(t, CategoryAccommodation, KindHotelStays.Category())
	assert.Equal(t, Category(""), Kind("Rocket").Category())
}

func TestTierPolicy_Entries(t *testing.T) {
	catalog, err := NewCatalog("test-1", sampleTable(), nil)
	require.NoError(t, err)

	tp, err := catalog.Tier(TierExecutive)
	require.NoError(t, err)

	entries := tp.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Category: CategoryTravel, Kind: KindBusinessTrips, Limit: Range(400000, 1600000)}, entries[0])
	assert.Equal(t, KindParkingTolls, entries[1].Kind)
	assert.Equal(t, KindHotelStays, entries[2].Kind)
	assert.Equal(t, CategoryAccommodation, entries[2].Category)
}

func TestLimit_MarshalText(t *testing.T) {
	text, err := LimitCoverage.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "coverage", string(text))

	text, err = CoveragePartial.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "partially covered", string(text))
}

func TestLimit_JSONRoundTrip(t *testing.T) {
	for _, limit := range []Limit{Range(1, 2), Ceiling(5).WithPeriod("month"), PartiallyCovered(10, 20), FullyCovered()} {
		data, err := json.Marshal(limit)
		require.NoError(t, err)

		var got Limit
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, limit, got)
	}

	var kind LimitKind
	assert.ErrorIs(t, kind.UnmarshalText([]byte("band")), ErrInvalidLimit)
}
