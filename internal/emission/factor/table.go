package factor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gosimple/slug"
)

const (
	DefaultIntensity        = 0.35
	DefaultInstanceBaseline = 1.0
	DefaultWastePoints      = 5.0
)

// Table is the versioned set of emission factors, as loaded from configuration.
type Table struct {
	Version                 string             `mapstructure:"version" json:"version"`
	DefaultIntensity        float64            `mapstructure:"defaultIntensity" json:"default_intensity"`
	Intensities             []Intensity        `mapstructure:"intensities" json:"intensities"`
	DefaultInstanceBaseline float64            `mapstructure:"defaultInstanceBaseline" json:"default_instance_baseline"`
	InstanceBaselines       []InstanceBaseline `mapstructure:"instanceBaselines" json:"instance_baselines"`
	DefaultWastePoints      float64            `mapstructure:"defaultWastePoints" json:"default_waste_points"`
	WastePoints             []WastePoints      `mapstructure:"wastePoints" json:"waste_points"`
}

// Intensity is the kg CO2e per kWh-equivalent for one source and region.
type Intensity struct {
	Source string  `mapstructure:"source" json:"source"`
	Region string  `mapstructure:"region" json:"region"`
	Value  float64 `mapstructure:"value" json:"value"`
}

// InstanceBaseline is the kg CO2e an instance type emits at full utilization.
type InstanceBaseline struct {
	InstanceType string  `mapstructure:"instanceType" json:"instance_type"`
	Value        float64 `mapstructure:"value" json:"value"`
}

// WastePoints is the reward multiplier for one unit of a waste type.
type WastePoints struct {
	WasteType string  `mapstructure:"wasteType" json:"waste_type"`
	Points    float64 `mapstructure:"points" json:"points"`
}

// DefaultTable returns the compiled-in factor table used when no configuration file exists.
// Grid intensities are kg CO2e/kWh from the EPA eGRID 2022 and EEA 2023 averages.
func DefaultTable() Table {
	return Table{
		Version:          "builtin-2024.1",
		DefaultIntensity: DefaultIntensity,
		Intensities: []Intensity{
			{Source: "aws", Region: "us-east-1", Value: 0.379},
			{Source: "aws", Region: "us-east-2", Value: 0.411},
			{Source: "aws", Region: "us-west-1", Value: 0.203},
			{Source: "aws", Region: "us-west-2", Value: 0.322},
			{Source: "aws", Region: "eu-west-1", Value: 0.279},
			{Source: "aws", Region: "eu-central-1", Value: 0.338},
			{Source: "aws", Region: "eu-north-1", Value: 0.009},
			{Source: "aws", Region: "ap-south-1", Value: 0.708},
			{Source: "aws", Region: "ap-southeast-1", Value: 0.408},
			{Source: "aws", Region: "ap-southeast-2", Value: 0.790},
			{Source: "aws", Region: "ap-northeast-1", Value: 0.506},
			{Source: "gcp", Region: "us-central1", Value: 0.479},
			{Source: "gcp", Region: "us-east1", Value: 0.393},
			{Source: "gcp", Region: "europe-west1", Value: 0.127},
			{Source: "gcp", Region: "europe-north1", Value: 0.095},
			{Source: "gcp", Region: "asia-southeast1", Value: 0.408},
			{Source: "azure", Region: "eastus", Value: 0.379},
			{Source: "azure", Region: "westus2", Value: 0.322},
			{Source: "azure", Region: "westeurope", Value: 0.390},
			{Source: "azure", Region: "northeurope", Value: 0.279},
			{Source: "grid", Region: "us", Value: 0.386},
			{Source: "grid", Region: "eu", Value: 0.276},
			{Source: "grid", Region: "gb", Value: 0.207},
			{Source: "grid", Region: "in", Value: 0.708},
			{Source: "grid", Region: "id", Value: 0.761},
		},
		DefaultInstanceBaseline: DefaultInstanceBaseline,
		InstanceBaselines: []InstanceBaseline{
			{InstanceType: "t3.nano", Value: 0.15},
			{InstanceType: "t3.micro", Value: 0.3},
			{InstanceType: "t3.small", Value: 0.6},
			{InstanceType: "t3.medium", Value: 1.0},
			{InstanceType: "m5.large", Value: 2.0},
			{InstanceType: "m5.xlarge", Value: 4.0},
			{InstanceType: "c5.large", Value: 1.8},
			{InstanceType: "r5.large", Value: 2.4},
		},
		DefaultWastePoints: DefaultWastePoints,
		WastePoints: []WastePoints{
			{WasteType: "plastic", Points: 10},
			{WasteType: "mixed", Points: 5},
			{WasteType: "e-waste", Points: 20},
			{WasteType: "organic", Points: 3},
			{WasteType: "paper", Points: 8},
			{WasteType: "metal", Points: 15},
			{WasteType: "glass", Points: 12},
		},
	}
}

// Validate rejects tables that would produce negative or undefined emissions.
func (t Table) Validate() error {
	if !validFactor(t.DefaultIntensity) {
		return errors.New("factors.defaultIntensity must be a non-negative number")
	}
	if !validFactor(t.DefaultInstanceBaseline) {
		return errors.New("factors.defaultInstanceBaseline must be a non-negative number")
	}
	if !validFactor(t.DefaultWastePoints) {
		return errors.New("factors.defaultWastePoints must be a non-negative number")
	}
	for i, item := range t.Intensities {
		if Key(item.Source) == "" {
			return fmt.Errorf("factors.intensities[%d].source is required", i)
		}
		if !validFactor(item.Value) {
			return fmt.Errorf("factors.intensities[%d].value must be a non-negative number", i)
		}
	}
	for i, item := range t.InstanceBaselines {
		if Key(item.InstanceType) == "" {
			return fmt.Errorf("factors.instanceBaselines[%d].instanceType is required", i)
		}
		if !validFactor(item.Value) {
			return fmt.Errorf("factors.instanceBaselines[%d].value must be a non-negative number", i)
		}
	}
	for i, item := range t.WastePoints {
		if Key(item.WasteType) == "" {
			return fmt.Errorf("factors.wastePoints[%d].wasteType is required", i)
		}
		if !validFactor(item.Points) {
			return fmt.Errorf("factors.wastePoints[%d].points must be a non-negative number", i)
		}
	}
	return nil
}

func validFactor(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Key normalizes a factor key so "AWS"/"us_east_1" matches "aws"/"us-east-1".
func Key(raw string) string {
	return slug.Make(strings.ReplaceAll(raw, "_", "-"))
}
