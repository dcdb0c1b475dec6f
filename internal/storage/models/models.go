package models

import "time"

type Principle struct {
	ID        string
	Text      string
	Category  string
	Embedding []float32
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Tenant struct {
	ID        int64
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
}

// TenantPrinciple is the adoption link between a tenant and a principle.
// Soft-deletable independently of both sides.
type TenantPrinciple struct {
	TenantID    int64
	PrincipleID string
	IsActive    bool
	CreatedAt   time.Time
}

type EvaluationLog struct {
	ID                  string
	TenantID            *int64
	Action              string
	ResultJSON          string
	OverallScore        float64
	Compliance          string
	PrinciplesEvaluated int
	DurationMS          int64
	MetadataJSON        string
	CreatedAt           time.Time
}

type LogFilter struct {
	TenantID *int64
	MinScore *float64
	MaxScore *float64
	Limit    int
	Offset   int
}

type LogStats struct {
	Total        int
	AverageScore float64
	MinScore     float64
	MaxScore     float64
}

// ScoreDistribution buckets overall scores for reporting:
// excellent >=0.9, good 0.7-0.89, fair 0.5-0.69, poor <0.5.
type ScoreDistribution struct {
	Excellent int
	Good      int
	Fair      int
	Poor      int
}

type DailyStat struct {
	Day          string
	Count        int
	AverageScore float64
}
