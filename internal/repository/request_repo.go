package repository

import (
	"context"

	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/models"
)

type RequestRepository struct {
	db DBTX
}

func NewRequestRepository(db DBTX) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) GetRequestByID(ctx context.Context, id int64) (*models.BloodRequest, error) {
	query := `
		SELECT id, requester_id, blood_group, city, status, created_at
		FROM blood_requests
		WHERE id = $1
	`
	var request models.BloodRequest
	err := r.db.QueryRow(ctx, query, id).Scan(
		&request.ID,
		&request.RequesterID,
		&request.BloodGroup,
		&request.City,
		&request.Status,
		&request.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}
