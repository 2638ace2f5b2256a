package model

// Deliverable is a named unit of work output, optionally linked to a Goal.
type Deliverable struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	GoalID    string `json:"goal_id,omitempty"`
	Completed bool   `json:"completed"`
}

// Goal is a user-defined target.
type Goal struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DailyTarget *float64 `json:"daily_target,omitempty"` // hours
	Impact      string   `json:"impact,omitempty"`
	TargetDate  string   `json:"target_date,omitempty"`
	Completed   bool     `json:"completed"`
}
