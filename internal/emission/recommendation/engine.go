package recommendation

import (
	"github.com/smallbiznis/footprint/internal/emission/domain"
)

// Thresholds parameterize the advisory rules.
type Thresholds struct {
	CPUUtilizationBelowPct  float64
	ComputeSavingRatio      float64
	AccessFrequencyBelowPct float64
	StorageSavingRatio      float64
	DataTransferAboveGB     float64
	NetworkSavingRatio      float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUUtilizationBelowPct:  50,
		ComputeSavingRatio:      0.3,
		AccessFrequencyBelowPct: 20,
		StorageSavingRatio:      0.4,
		DataTransferAboveGB:     1000,
		NetworkSavingRatio:      0.3,
	}
}

const (
	suggestCompute = "Consider right-sizing or consolidating instances; average CPU utilization is low."
	suggestStorage = "Move infrequently accessed data to a colder storage tier."
	suggestNetwork = "Serve high-volume transfer through a CDN to cut network emissions."
)

// Engine derives advisory recommendations from an emission record.
type Engine struct {
	thresholds Thresholds
}

func NewEngine() *Engine {
	return NewEngineWithThresholds(DefaultThresholds())
}

func NewEngineWithThresholds(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Generate returns zero or more recommendations, in compute, storage, network order.
// Only cloud records carry the sub-metrics the rules need, and a rule is
// skipped when its input field was not submitted.
func (e *Engine) Generate(record domain.EmissionRecord) []domain.Recommendation {
	profile := record.Cloud
	if profile == nil {
		return nil
	}

	var out []domain.Recommendation
	if profile.HasCPUUtilization && profile.CPUUtilizationPct < e.thresholds.CPUUtilizationBelowPct {
		out = append(out, domain.Recommendation{
			Category:        domain.CategoryCompute,
			Suggestion:      suggestCompute,
			PotentialSaving: record.Category(domain.CategoryCompute) * e.thresholds.ComputeSavingRatio,
		})
	}
	if profile.HasAccessFrequency && profile.AccessFrequencyPct < e.thresholds.AccessFrequencyBelowPct {
		out = append(out, domain.Recommendation{
			Category:        domain.CategoryStorage,
			Suggestion:      suggestStorage,
			PotentialSaving: record.Category(domain.CategoryStorage) * e.thresholds.StorageSavingRatio,
		})
	}
	if profile.HasDataTransfer && profile.DataTransferGB > e.thresholds.DataTransferAboveGB && !profile.CDNEnabled {
		out = append(out, domain.Recommendation{
			Category:        domain.CategoryNetwork,
			Suggestion:      suggestNetwork,
			PotentialSaving: record.Category(domain.CategoryNetwork) * e.thresholds.NetworkSavingRatio,
		})
	}
	return out
}
