package model

// DeviationKind classifies how an observed boundary relates to the plan.
type DeviationKind string

const (
	DeviationMatch DeviationKind = "match"
	DeviationLate  DeviationKind = "late"
	DeviationEarly DeviationKind = "early"
)

// DeviationRecord compares one planned interval against the observed state.
// DeltaMinutes is signed: positive means the boundary was observed later
// than planned.
type DeviationRecord struct {
	Date          string        `json:"date"`
	Group         string        `json:"group"`
	Planned       PowerState    `json:"planned"`
	Actual        PowerState    `json:"actual"`
	IntervalStart int           `json:"interval_start"`
	IntervalEnd   int           `json:"interval_end"`
	DeltaMinutes  int           `json:"delta_minutes"`
	Kind          DeviationKind `json:"kind"`
}
