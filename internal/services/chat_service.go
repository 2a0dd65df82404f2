package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/models"
	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/repository"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrRoomNotFound = errors.New("room not found")
)

type ChatService struct {
	db          *pgxpool.Pool
	roomRepo    *repository.RoomRepository
	messageRepo *repository.MessageRepository
	userRepo    *repository.UserRepository
}

// ChatDelivery carries everything the hub needs to fan a persisted
// message out to the room.
type ChatDelivery struct {
	RoomToken string
	Message   *models.ChatMessage
}

func NewChatService(
	db *pgxpool.Pool,
	roomRepo *repository.RoomRepository,
	messageRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
) *ChatService {
	return &ChatService{
		db:          db,
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

// ListConversations builds both role partitions independently. A user who
// is requester on one room and donor on another with the same counterpart
// appears in both partitions.
func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
) (*models.ConversationDirectory, error) {
	asRequester, err := s.roomRepo.ListAsRequester(ctx, actorID)
	if err != nil {
		return nil, err
	}

	asDonor, err := s.roomRepo.ListAsDonor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	return &models.ConversationDirectory{
		AsRequester: asRequester,
		AsDonor:     asDonor,
	}, nil
}

// ListMessages returns the room transcript oldest to newest and marks the
// counterpart's messages read, so the next directory fetch reflects the
// visit.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	roomToken string,
) ([]models.ChatMessage, error) {
	room, err := s.memberRoom(ctx, actorID, roomToken)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)

	messages, err := txMessageRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	if err := txMessageRepo.MarkRoomRead(ctx, room.ID, actorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	for i := range messages {
		if messages[i].Sender.ID != actorID {
			messages[i].IsRead = true
		}
	}

	return messages, nil
}

// SendMessage persists one outbound message. Content is trimmed; empty
// content is rejected before it reaches the database.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	roomToken string,
	content string,
) (*ChatDelivery, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	room, err := s.memberRoom(ctx, actorID, roomToken)
	if err != nil {
		return nil, err
	}

	message, err := s.messageRepo.Create(ctx, room.ID, actorID, trimmed)
	if err != nil {
		return nil, err
	}

	return &ChatDelivery{
		RoomToken: room.UniqueID,
		Message:   message,
	}, nil
}

// Authorize is the connection-time gate for the websocket upgrade: the
// actor must be the requester or the donor of the room. It returns the
// actor's current username from the users table rather than echoing the
// token claim, so a renamed account broadcasts under its current name.
func (s *ChatService) Authorize(ctx context.Context, actorID int64, roomToken string) (string, error) {
	if _, err := s.memberRoom(ctx, actorID, roomToken); err != nil {
		return "", err
	}

	user, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrForbidden
		}
		return "", err
	}

	return user.Username, nil
}

func (s *ChatService) memberRoom(
	ctx context.Context,
	actorID int64,
	roomToken string,
) (*models.ChatRoom, error) {
	if strings.TrimSpace(roomToken) == "" {
		return nil, ErrInvalidInput
	}

	room, err := s.roomRepo.GetByToken(ctx, roomToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	if room.RequesterID != actorID && room.DonorID != actorID {
		return nil, ErrForbidden
	}

	return room, nil
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
