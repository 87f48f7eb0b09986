package models

// Job is the read-side job lookup used to render coding dispositions.
type Job struct {
	ID     string  `json:"id" db:"id"`
	Name   string  `json:"name" db:"name"`
	Status *string `json:"status,omitempty" db:"status"`
}

// CostCode is the read-side cost code lookup.
type CostCode struct {
	ID       string  `json:"id" db:"id"`
	Number   string  `json:"number" db:"number"`
	Name     string  `json:"name" db:"name"`
	Category *string `json:"category,omitempty" db:"category"`
}
