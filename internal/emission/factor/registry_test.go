package factor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewStaticRegistry(DefaultTable())
	require.NoError(t, err)
	return reg
}

func TestLookupKnownPair(t *testing.T) {
	reg := newTestRegistry(t)

	assert.InDelta(t, 0.379, reg.Lookup("aws", "us-east-1"), 1e-9)
	assert.InDelta(t, 0.127, reg.Lookup("gcp", "europe-west1"), 1e-9)
}

func TestLookupNormalizesKeys(t *testing.T) {
	reg := newTestRegistry(t)

	assert.Equal(t, reg.Lookup("aws", "us-east-1"), reg.Lookup(" AWS ", "US_EAST_1"))
}

func TestLookupFallsBackToDefault(t *testing.T) {
	reg := newTestRegistry(t)

	tests := []struct {
		name   string
		source string
		region string
	}{
		{name: "unknown region", source: "aws", region: "mars-central-1"},
		{name: "unknown source", source: "oracle", region: "us-east-1"},
		{name: "empty", source: "", region: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, DefaultIntensity, reg.Lookup(tt.source, tt.region))
		})
	}
}

func TestLookupIsDeterministic(t *testing.T) {
	reg := newTestRegistry(t)

	first := reg.Lookup("azure", "westeurope")
	for i := 0; i < 100; i++ {
		if got := reg.Lookup("azure", "westeurope"); got != first {
			t.Fatalf("lookup changed between calls: %v != %v", got, first)
		}
	}
}

func TestInstanceBaselineAndBasePoints(t *testing.T) {
	reg := newTestRegistry(t)

	assert.InDelta(t, 0.3, reg.InstanceBaseline("t3.micro"), 1e-9)
	assert.Equal(t, DefaultInstanceBaseline, reg.InstanceBaseline("x99.huge"))
	assert.Equal(t, 20.0, reg.BasePoints("E-Waste"))
	assert.Equal(t, DefaultWastePoints, reg.BasePoints("styrofoam"))
}

func TestCompileRejectsInvalidTable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Table)
	}{
		{name: "negative default", mutate: func(tb *Table) { tb.DefaultIntensity = -1 }},
		{name: "nan intensity", mutate: func(tb *Table) { tb.Intensities[0].Value = math.NaN() }},
		{name: "missing source", mutate: func(tb *Table) { tb.Intensities[0].Source = " " }},
		{name: "missing waste type", mutate: func(tb *Table) { tb.WastePoints[0].WasteType = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := DefaultTable()
			tt.mutate(&table)
			_, err := Compile(table)
			assert.Error(t, err)
		})
	}
}

type swapSource struct {
	current *Snapshot
}

func (s *swapSource) Snapshot() *Snapshot { return s.current }

func TestRegistryFollowsSourceSwap(t *testing.T) {
	first, err := Compile(DefaultTable())
	require.NoError(t, err)

	updated := DefaultTable()
	updated.Version = "next"
	updated.DefaultIntensity = 0.5
	second, err := Compile(updated)
	require.NoError(t, err)

	src := &swapSource{current: first}
	reg := NewRegistry(src)
	assert.Equal(t, DefaultIntensity, reg.Lookup("nowhere", "nowhere"))

	src.current = second
	assert.Equal(t, 0.5, reg.Lookup("nowhere", "nowhere"))
	assert.Equal(t, "next", reg.Table().Version)
}
