package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/models"
	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/repository"
)

var ErrRequestNotFound = errors.New("blood request not found")

type requestReader interface {
	GetRequestByID(ctx context.Context, id int64) (*models.BloodRequest, error)
}

// DonationService covers the single donation-side operation chat depends
// on: accepting a request, which opens the chat room between requester and
// donor. The rest of the donation CRUD lives with other collaborators.
type DonationService struct {
	roomRepo    *repository.RoomRepository
	requestRepo requestReader
}

func NewDonationService(roomRepo *repository.RoomRepository, requestRepo requestReader) *DonationService {
	return &DonationService{
		roomRepo:    roomRepo,
		requestRepo: requestRepo,
	}
}

// AcceptRequest creates (or returns) the room for this donor on this
// request. A requester cannot accept their own request.
func (s *DonationService) AcceptRequest(
	ctx context.Context,
	donorID int64,
	requestID int64,
) (*models.ChatRoom, error) {
	if requestID <= 0 {
		return nil, ErrInvalidInput
	}

	request, err := s.requestRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	if request.RequesterID == donorID {
		return nil, ErrInvalidInput
	}

	return s.roomRepo.Create(ctx, requestID, donorID)
}
