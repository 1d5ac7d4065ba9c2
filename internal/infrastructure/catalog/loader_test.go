package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/expense-screening/internal/domain/policy"
)

func newTestLoader(t *testing.T) (*Loader, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	loader, err := NewLoader(zap.New(core))
	require.NoError(t, err)
	return loader, logs
}

func TestLoader_Default(t *testing.T) {
	loader, logs := newTestLoader(t)

	catalog, err := loader.Load("", FormatAuto)
	require.NoError(t, err)

	assert.Equal(t, "2024.1", catalog.Version())
	assert.Equal(t, policy.Tiers(), catalog.DefinedTiers())
	assert.Empty(t, catalog.MissingTiers())

	tests := []struct {
		tier     policy.Tier
		kind     policy.Kind
		min, max int64
	}{
		{policy.TierStaff, policy.KindBusinessTrips, 24000, 160000},
		{policy.TierExecutive, policy.KindBusinessTrips, 400000, 1600000},
		{policy.TierExecutive, policy.KindHotelStays, 25000, 125000},
		{policy.TierSeniorManagement, policy.KindRentalAllowance, 100000, 150000},
		{policy.TierStaff, policy.KindLocalTransportation, 0, 5000},
		{policy.TierTeamLeads, policy.KindMileageReimbursement, 0, 15000},
	}
	for _, tt := range tests {
		limit, found, err := catalog.LimitFor(tt.tier, tt.kind.Category(), tt.kind)
		require.NoError(t, err)
		require.True(t, found, "%s / %s", tt.tier, tt.kind)
		min, max, bounded := limit.Bounds()
		assert.True(t, bounded)
		assert.Equal(t, tt.min, min, "%s / %s", tt.tier, tt.kind)
		assert.Equal(t, tt.max, max, "%s / %s", tt.tier, tt.kind)
	}

	tools, _, err := catalog.LimitFor(policy.TierExecutive, policy.CategorySupplies, policy.KindWorkTools)
	require.NoError(t, err)
	assert.True(t, tools.Unlimited)

	parking, _, err := catalog.LimitFor(policy.TierExecutive, policy.CategoryTravel, policy.KindParkingTolls)
	require.NoError(t, err)
	assert.True(t, parking.IsFullyCovered())

	// Middle management business trips out-rank senior management
	assert.Equal(t, 1, logs.FilterMessage("Policy generosity inversion").Len())
}

func TestLoader_FileFormats(t *testing.T) {
	loader, _ := newTestLoader(t)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "policies.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"version": "json-1",
		"tiers": {
			"Staff & Employees": {
				"Travel Expenses": {
					"Business Trips": {"min": 100, "max": 200, "period": "trip"},
					"Mileage Reimbursement": 50,
					"Parking Fees & Tolls": {"coverage": "full"}
				},
				"Office Supplies and Equipment": {"Work Tools": {"max": 900}}
			}
		},
		"rules": [{"name": "usd", "when": "currency == \"USD\"", "message": "USD bills need approval."}]
	}`), 0o644))

	catalog, err := loader.Load(jsonPath, FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, "json-1", catalog.Version())
	require.Len(t, catalog.Rules(), 1)

	trips, _, _ := catalog.LimitFor(policy.TierStaff, policy.CategoryTravel, policy.KindBusinessTrips)
	assert.Equal(t, policy.Range(100, 200).WithPeriod("trip"), trips)
	mileage, _, _ := catalog.LimitFor(policy.TierStaff, policy.CategoryTravel, policy.KindMileageReimbursement)
	assert.Equal(t, policy.Ceiling(50), mileage)
	parking, _, _ := catalog.LimitFor(policy.TierStaff, policy.CategoryTravel, policy.KindParkingTolls)
	assert.True(t, parking.IsFullyCovered())
	tools, _, _ := catalog.LimitFor(policy.TierStaff, policy.CategorySupplies, policy.KindWorkTools)
	assert.Equal(t, policy.Ceiling(900), tools)

	yamlPath := filepath.Join(dir, "policies.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
version: yaml-1
tiers:
  Executive Level:
    Accommodation:
      Hotel Stays: "Rs. 1,000 - Rs. 2,000 per night"
`), 0o644))

	catalog, err = loader.Load(yamlPath, FormatAuto)
	require.NoError(t, err)
	hotel, _, _ := catalog.LimitFor(policy.TierExecutive, policy.CategoryAccommodation, policy.KindHotelStays)
	assert.Equal(t, int64(1000), hotel.Min)
	assert.Equal(t, int64(2000), hotel.Max)
}

func TestLoader_Rejects(t *testing.T) {
	loader, _ := newTestLoader(t)

	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "tiers: [unclosed"},
		{"missing version", `tiers: {"Staff & Employees": {}}`},
		{"no tiers", `version: v1`},
		{"unknown top-level key", "version: v1\ntiers: {\"Staff & Employees\": {}}\nowner: finance"},
		{"negative ceiling", "version: v1\ntiers:\n  Staff & Employees:\n    Travel Expenses:\n      Mileage Reimbursement: -5"},
		{"bad coverage", "version: v1\ntiers:\n  Staff & Employees:\n    Travel Expenses:\n      Parking Fees & Tolls: {coverage: some}"},
		{"unparseable text", "version: v1\ntiers:\n  Staff & Employees:\n    Travel Expenses:\n      Business Trips: \"ask your manager\""},
		{"unknown tier", "version: v1\ntiers:\n  Intern:\n    Travel Expenses: {}"},
		{"inverted range", "version: v1\ntiers:\n  Staff & Employees:\n    Travel Expenses:\n      Business Trips: {min: 9, max: 1}"},
		{"rule without message", "version: v1\ntiers: {\"Staff & Employees\": {}}\nrules:\n  - name: x\n    when: amount > 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse([]byte(tt.doc), FormatYAML)
			assert.ErrorIs(t, err, policy.ErrInvalidCatalog)
		})
	}
}

func TestLoader_MissingFile(t *testing.T) {
	loader, _ := newTestLoader(t)

	_, err := loader.Load(filepath.Join(t.TempDir(), "absent.yaml"), FormatAuto)
	assert.Error(t, err)

	_, err = loader.Parse([]byte(`{}`), Format("toml"))
	assert.ErrorIs(t, err, policy.ErrInvalidCatalog)
}

func TestLoader_WarnsAboutMissingTiers(t *testing.T) {
	loader, logs := newTestLoader(t)

	_, err := loader.Parse([]byte("version: v1\ntiers:\n  Staff & Employees: {}"), FormatYAML)
	require.NoError(t, err)

	entries := logs.FilterMessage("Policy catalog does not define every tier").All()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].ContextMap()["missing"], 5)
}
