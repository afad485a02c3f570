// Package domain contains the persistence model and contracts for usage ingestion.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	emissiondomain "github.com/smallbiznis/footprint/internal/emission/domain"
	"gorm.io/datatypes"
)

// UsageEvent stores one submitted activity together with the emission
// computed for it at ingestion time. Emissions, TotalEmission and
// RewardPoints are never recomputed after insert.
type UsageEvent struct {
	ID              snowflake.ID                                       `gorm:"primaryKey" json:"id"`
	OwnerID         *snowflake.ID                                      `gorm:"index" json:"owner_id,omitempty"`
	OwnerEmail      *string                                            `gorm:"type:text;index" json:"owner_email,omitempty"`
	Domain          string                                             `gorm:"type:text;not null" json:"domain"`
	Source          string                                             `gorm:"type:text;not null;default:''" json:"source"`
	Region          string                                             `gorm:"type:text;not null;default:''" json:"region"`
	Metrics         datatypes.JSONMap                                  `gorm:"type:jsonb" json:"metrics"`
	Emissions       datatypes.JSONType[map[string]float64]             `gorm:"type:jsonb" json:"emissions"`
	TotalEmission   float64                                            `gorm:"not null;default:0" json:"total_emission"`
	RewardPoints    int64                                              `gorm:"not null;default:0" json:"reward_points"`
	Recommendations datatypes.JSONSlice[emissiondomain.Recommendation] `gorm:"type:jsonb" json:"recommendations"`
	RecordedAt      time.Time                                          `gorm:"not null;index" json:"recorded_at"`
	CreatedAt       time.Time                                          `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                                          `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }

// Categories returns the frozen per-category emissions.
func (e UsageEvent) Categories() map[string]float64 {
	data := e.Emissions.Data()
	if data == nil {
		return map[string]float64{}
	}
	return data
}

// NormalizeLabel is the stored form of source and region labels.
func NormalizeLabel(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
