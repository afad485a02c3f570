package domain

import (
	"sort"
	"strings"
)

// Domain tags the kind of activity a usage event describes.
type Domain string

const (
	DomainCloud            Domain = "cloud"
	DomainExternalProvider Domain = "external-provider"
	DomainInference        Domain = "inference"
	DomainTravel           Domain = "travel"
	DomainWaste            Domain = "waste"
	DomainSensor           Domain = "sensor"
)

var knownDomains = map[Domain]struct{}{
	DomainCloud:            {},
	DomainExternalProvider: {},
	DomainInference:        {},
	DomainTravel:           {},
	DomainWaste:            {},
	DomainSensor:           {},
}

// ParseDomain normalizes a raw domain tag.
func ParseDomain(raw string) (Domain, error) {
	value := Domain(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownDomains[value]; !ok {
		return "", ErrUnknownDomain
	}
	return value, nil
}

// Domains lists every supported domain tag in a stable order.
func Domains() []Domain {
	return []Domain{
		DomainCloud,
		DomainExternalProvider,
		DomainInference,
		DomainTravel,
		DomainWaste,
		DomainSensor,
	}
}

// Category names an emission bucket inside a record.
type Category string

const (
	CategoryCompute Category = "compute"
	CategoryStorage Category = "storage"
	CategoryNetwork Category = "network"
	CategoryTravel  Category = "travel"
	CategoryEnergy  Category = "energy"
)

// Metrics is the raw, domain-specific payload submitted with a usage event.
type Metrics map[string]any

// CloudProfile keeps the cloud sub-metrics the recommendation rules look at.
// Has* flags record whether the matching field was present in the payload;
// a missing field reads as zero but never triggers a rule.
type CloudProfile struct {
	HasCPUUtilization bool
	CPUUtilizationPct float64

	HasAccessFrequency bool
	AccessFrequencyPct float64

	HasDataTransfer bool
	DataTransferGB  float64
	CDNEnabled      bool
}

// EmissionRecord is the CO2e breakdown computed for one usage event, in kg.
type EmissionRecord struct {
	Domain       Domain
	Source       string
	Region       string
	Categories   map[Category]float64
	Total        float64
	RewardPoints int64
	Cloud        *CloudProfile
}

// NewRecord builds a record whose total is the sum of its categories.
func NewRecord(d Domain, source, region string, categories map[Category]float64) EmissionRecord {
	if categories == nil {
		categories = map[Category]float64{}
	}
	return EmissionRecord{
		Domain:     d,
		Source:     source,
		Region:     region,
		Categories: categories,
		Total:      SumCategories(categories),
	}
}

// Category returns the emission of a single category, zero when absent.
func (r EmissionRecord) Category(c Category) float64 {
	return r.Categories[c]
}

// Breakdown renders the categories with string keys for storage.
func (r EmissionRecord) Breakdown() map[string]float64 {
	out := make(map[string]float64, len(r.Categories))
	for k, v := range r.Categories {
		out[string(k)] = v
	}
	return out
}

// SumCategories adds categories in key order so totals are reproducible.
func SumCategories(categories map[Category]float64) float64 {
	keys := make([]string, 0, len(categories))
	for k := range categories {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	total := 0.0
	for _, k := range keys {
		total += categories[Category(k)]
	}
	return total
}

// Recommendation is an advisory suggestion derived from a record.
type Recommendation struct {
	Category        Category `json:"category"`
	Suggestion      string   `json:"suggestion"`
	PotentialSaving float64  `json:"potential_saving"`
}
