package model

import "time"

// Submission is a completed form handed to the submission sink.
type Submission struct {
	ID          string         `json:"id"`
	CategoryID  string         `json:"categoryId"`
	UserID      string         `json:"userId"`
	Office      string         `json:"office,omitempty"`
	Values      map[string]any `json:"values"`
	SubmittedAt time.Time      `json:"submittedAt"`
}
