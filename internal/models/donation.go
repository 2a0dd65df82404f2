package models

import "time"

type BloodRequest struct {
	ID          int64     `json:"id"`
	RequesterID int64     `json:"requester_id"`
	BloodGroup  string    `json:"blood_group"`
	City        string    `json:"city"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
