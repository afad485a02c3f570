package calculator

import (
	"strings"

	"github.com/smallbiznis/footprint/internal/emission/domain"
)

const (
	// ProviderNetworkFactorPerGB is kg CO2e per GB moved between provider regions.
	ProviderNetworkFactorPerGB = 0.1
	// ProviderStorageFactorPerGB is kg CO2e per stored GB.
	ProviderStorageFactorPerGB = 0.05
	// ProviderRequestFactor is kg CO2e per storage request.
	ProviderRequestFactor = 0.001

	defaultProviderSource = "aws"
)

type resourceType string

const (
	resourceInstance resourceType = "instance"
	resourceNetwork  resourceType = "network"
	resourceStorage  resourceType = "storage"
)

var resourceAliases = map[string]resourceType{
	"instance":      resourceInstance,
	"ec2":           resourceInstance,
	"vm":            resourceInstance,
	"network":       resourceNetwork,
	"data-transfer": resourceNetwork,
	"storage":       resourceStorage,
	"s3":            resourceStorage,
	"object-store":  resourceStorage,
}

// InstanceEmission is baseline * ((cpu + memory + disk) / 300).
func InstanceEmission(baseline, cpu, memory, disk float64) float64 {
	return baseline * ((cpu + memory + disk) / 300)
}

// ProviderStorageEmission is sizeGB * 0.05 + requests * 0.001.
func ProviderStorageEmission(sizeGB, requestCount float64) float64 {
	return sizeGB*ProviderStorageFactorPerGB + requestCount*ProviderRequestFactor
}

// ExternalProviderCalculator handles metrics pulled from a provider's
// monitoring API, one resource per event.
type ExternalProviderCalculator struct{}

func (ExternalProviderCalculator) Domain() domain.Domain { return domain.DomainExternalProvider }

func (ExternalProviderCalculator) Calculate(metrics domain.Metrics, factors Factors) (domain.EmissionRecord, error) {
	f := newFields(metrics)
	source := f.optionalString("provider", defaultProviderSource)
	region := f.optionalString("region", "")

	raw := strings.ToLower(f.requireString("resourceType"))
	kind, known := resourceAliases[raw]
	if raw != "" && !known {
		f.reject("resourceType", "must be one of instance, network, storage")
	}

	categories := map[domain.Category]float64{}
	switch kind {
	case resourceInstance:
		instanceType := f.requireString("instanceType")
		cpu := f.requirePercentage("cpuUtilization")
		memory := f.requirePercentage("memoryUtilization")
		disk := f.requirePercentage("diskUtilization")
		categories[domain.CategoryCompute] = InstanceEmission(factors.InstanceBaseline(instanceType), cpu, memory, disk)
	case resourceNetwork:
		categories[domain.CategoryNetwork] = f.requireNumber("dataTransferGB") * ProviderNetworkFactorPerGB
	case resourceStorage:
		categories[domain.CategoryStorage] = ProviderStorageEmission(f.requireNumber("sizeGB"), f.optionalNumber("averageRequestCount"))
	}

	if err := f.err(); err != nil {
		return domain.EmissionRecord{}, err
	}
	return domain.NewRecord(domain.DomainExternalProvider, source, region, categories), nil
}
