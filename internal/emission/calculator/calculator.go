package calculator

import (
	"github.com/smallbiznis/footprint/internal/emission/domain"
)

// Factors is the read-only view of the emission factor table calculators need.
type Factors interface {
	Lookup(source, region string) float64
	InstanceBaseline(instanceType string) float64
	BasePoints(wasteType string) float64
}

// Calculator turns the metrics of one domain into an EmissionRecord.
// Implementations are pure: no I/O, no clock, no shared state.
type Calculator interface {
	Domain() domain.Domain
	Calculate(metrics domain.Metrics, factors Factors) (domain.EmissionRecord, error)
}

// Set dispatches to the calculator registered for a domain tag.
type Set struct {
	byDomain map[domain.Domain]Calculator
}

func NewSet(calculators ...Calculator) *Set {
	s := &Set{byDomain: make(map[domain.Domain]Calculator, len(calculators))}
	for _, c := range calculators {
		s.byDomain[c.Domain()] = c
	}
	return s
}

// Default returns a set with a calculator for every supported domain.
func Default() *Set {
	return NewSet(
		CloudCalculator{},
		ExternalProviderCalculator{},
		InferenceCalculator{},
		TravelCalculator{},
		WasteCalculator{},
		SensorCalculator{},
	)
}

func (s *Set) Calculate(d domain.Domain, metrics domain.Metrics, factors Factors) (domain.EmissionRecord, error) {
	c, ok := s.byDomain[d]
	if !ok {
		return domain.EmissionRecord{}, domain.ErrUnknownDomain
	}
	if metrics == nil {
		return domain.EmissionRecord{}, &domain.MetricsError{
			Issues: []domain.FieldIssue{{Field: "metrics", Reason: reasonRequired}},
		}
	}
	return c.Calculate(metrics, factors)
}
