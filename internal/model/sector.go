package model

import "time"

// Quadrant is a Relative Rotation Graph bucket.
type Quadrant string

const (
	QuadrantLeading   Quadrant = "LEADING"
	QuadrantImproving Quadrant = "IMPROVING"
	QuadrantWeakening Quadrant = "WEAKENING"
	QuadrantLagging   Quadrant = "LAGGING"
)

// SectorScore is one aggregate strength observation for a sector.
type SectorScore struct {
	Date     time.Time `json:"date"`
	SectorID string    `json:"sector_id"`
	Score    float64   `json:"strength_score"`
}

// SectorRank is the rotation classification of one sector on one date.
type SectorRank struct {
	Date          time.Time `json:"date"`
	SectorID      string    `json:"sector_id"`
	StrengthScore float64   `json:"strength_score"`
	RSRatio       float64   `json:"rs_ratio"`
	RSMomentum    float64   `json:"rs_momentum"`
	Quadrant      Quadrant  `json:"quadrant"`
}
