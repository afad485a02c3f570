package calculator

import (
	"github.com/smallbiznis/footprint/internal/emission/domain"
)

const (
	// StorageFactorPerGB is kg CO2e per GB-month of stored data.
	StorageFactorPerGB = 0.0024
	// NetworkFactorPerGB is kg CO2e per GB transferred.
	NetworkFactorPerGB = 0.001
	// CDNReductionFactor scales network emissions when a CDN fronts the traffic.
	CDNReductionFactor = 0.7
)

// ComputeEmission is (cpu% / 100) * hours * instances * intensity.
func ComputeEmission(cpuUtilization, runningHours, instanceCount, intensity float64) float64 {
	return (cpuUtilization / 100) * runningHours * instanceCount * intensity
}

// StorageEmission is sizeGB * storage factor * intensity * (access% / 100).
func StorageEmission(sizeGB, accessFrequency, intensity float64) float64 {
	return sizeGB * StorageFactorPerGB * intensity * (accessFrequency / 100)
}

// NetworkEmission is dataTransferGB * network factor * intensity, reduced
// when a CDN is enabled.
func NetworkEmission(dataTransferGB, intensity float64, cdnEnabled bool) float64 {
	reduction := 1.0
	if cdnEnabled {
		reduction = CDNReductionFactor
	}
	return dataTransferGB * NetworkFactorPerGB * intensity * reduction
}

// CloudCalculator handles cloud infrastructure metrics with optional
// compute, storage and network sub-objects.
type CloudCalculator struct{}

func (CloudCalculator) Domain() domain.Domain { return domain.DomainCloud }

func (CloudCalculator) Calculate(metrics domain.Metrics, factors Factors) (domain.EmissionRecord, error) {
	f := newFields(metrics)
	provider := f.requireString("provider")
	region := f.requireString("region")

	profile := &domain.CloudProfile{}
	var runningHours, instanceCount, sizeGB float64

	if compute, ok := f.nested("compute"); ok {
		profile.HasCPUUtilization = compute.has("cpuUtilization")
		profile.CPUUtilizationPct = compute.optionalPercentage("cpuUtilization")
		runningHours = compute.optionalNumber("runningHours")
		instanceCount = compute.optionalNumber("instanceCount")
	}
	if storage, ok := f.nested("storage"); ok {
		profile.HasAccessFrequency = storage.has("accessFrequency")
		sizeGB = storage.optionalNumber("sizeGB")
		profile.AccessFrequencyPct = storage.optionalPercentage("accessFrequency")
	}
	if network, ok := f.nested("network"); ok {
		profile.HasDataTransfer = network.has("dataTransferGB")
		profile.DataTransferGB = network.optionalNumber("dataTransferGB")
		profile.CDNEnabled = network.optionalBool("cdnEnabled")
	}
	if err := f.err(); err != nil {
		return domain.EmissionRecord{}, err
	}

	intensity := factors.Lookup(provider, region)
	record := domain.NewRecord(domain.DomainCloud, provider, region, map[domain.Category]float64{
		domain.CategoryCompute: ComputeEmission(profile.CPUUtilizationPct, runningHours, instanceCount, intensity),
		domain.CategoryStorage: StorageEmission(sizeGB, profile.AccessFrequencyPct, intensity),
		domain.CategoryNetwork: NetworkEmission(profile.DataTransferGB, intensity, profile.CDNEnabled),
	})
	record.Cloud = profile
	return record, nil
}
