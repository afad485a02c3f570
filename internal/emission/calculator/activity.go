package calculator

import (
	"math"

	"github.com/smallbiznis/footprint/internal/emission/domain"
)

const (
	// CarGramsPerKm is the reference passenger-car emission used for travel savings.
	CarGramsPerKm = 170.0

	defaultSensorSource = "grid"
)

// InferenceCalculator records the emission reported by an inference run.
type InferenceCalculator struct{}

func (InferenceCalculator) Domain() domain.Domain { return domain.DomainInference }

func (InferenceCalculator) Calculate(metrics domain.Metrics, _ Factors) (domain.EmissionRecord, error) {
	f := newFields(metrics)
	model := f.requireString("model")
	f.requireNumber("tokens")
	f.requireNumber("durationMs")
	f.requireNumber("batchSize")
	emission := f.requireNumber("carbonEmission")
	source := f.optionalString("provider", model)
	region := f.optionalString("region", "")
	if err := f.err(); err != nil {
		return domain.EmissionRecord{}, err
	}

	return domain.NewRecord(domain.DomainInference, source, region, map[domain.Category]float64{
		domain.CategoryCompute: emission,
	}), nil
}

// CarEquivalent is the emission, in grams, of driving distanceKm in a reference car.
func CarEquivalent(distanceKm float64) float64 {
	return distanceKm * CarGramsPerKm
}

// TravelCalculator records the emission of one travel leg.
type TravelCalculator struct{}

func (TravelCalculator) Domain() domain.Domain { return domain.DomainTravel }

func (TravelCalculator) Calculate(metrics domain.Metrics, _ Factors) (domain.EmissionRecord, error) {
	f := newFields(metrics)
	mode := f.requireString("mode")
	f.requireNumber("distanceKm")
	co2 := f.requireNumber("co2Emissions")
	if err := f.err(); err != nil {
		return domain.EmissionRecord{}, err
	}

	return domain.NewRecord(domain.DomainTravel, mode, "", map[domain.Category]float64{
		domain.CategoryTravel: co2,
	}), nil
}

// RewardPoints is round(basePoints(wasteType) * amount).
func RewardPoints(factors Factors, wasteType string, amount float64) int64 {
	return int64(math.Round(factors.BasePoints(wasteType) * amount))
}

// WasteCalculator awards reward points for a disposal; it emits nothing.
type WasteCalculator struct{}

func (WasteCalculator) Domain() domain.Domain { return domain.DomainWaste }

func (WasteCalculator) Calculate(metrics domain.Metrics, factors Factors) (domain.EmissionRecord, error) {
	f := newFields(metrics)
	wasteType := f.requireString("wasteType")
	amount := f.requireNumber("amount")
	if err := f.err(); err != nil {
		return domain.EmissionRecord{}, err
	}

	record := domain.NewRecord(domain.DomainWaste, wasteType, "", nil)
	record.RewardPoints = RewardPoints(factors, wasteType, amount)
	return record, nil
}

// SensorCalculator converts a manual meter reading using the grid intensity of its region.
type SensorCalculator struct{}

func (SensorCalculator) Domain() domain.Domain { return domain.DomainSensor }

func (SensorCalculator) Calculate(metrics domain.Metrics, factors Factors) (domain.EmissionRecord, error) {
	f := newFields(metrics)
	f.requireString("deviceId")
	kwh := f.requireNumber("readingKwh")
	source := f.optionalString("source", defaultSensorSource)
	region := f.optionalString("region", "")
	if err := f.err(); err != nil {
		return domain.EmissionRecord{}, err
	}

	return domain.NewRecord(domain.DomainSensor, source, region, map[domain.Category]float64{
		domain.CategoryEnergy: kwh * factors.Lookup(source, region),
	}), nil
}
