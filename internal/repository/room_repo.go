package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/models"
)

type RoomRepository struct {
	db DBTX
}

func NewRoomRepository(db DBTX) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create opens a chat room for an accepted (request, donor) pair. The
// generated unique_id is the only identifier ever exposed over the wire.
func (r *RoomRepository) Create(
	ctx context.Context,
	requestID int64,
	donorID int64,
) (*models.ChatRoom, error) {
	query := `
		INSERT INTO chat_rooms (unique_id, request_id, donor_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id, donor_id)
		DO UPDATE SET unique_id = chat_rooms.unique_id
		RETURNING id, unique_id, request_id,
			(SELECT requester_id FROM blood_requests WHERE id = chat_rooms.request_id),
			donor_id, created_at
	`

	var room models.ChatRoom
	err := r.db.QueryRow(ctx, query, uuid.NewString(), requestID, donorID).Scan(
		&room.ID,
		&room.UniqueID,
		&room.RequestID,
		&room.RequesterID,
		&room.DonorID,
		&room.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &room, nil
}

// GetByToken resolves a room from its opaque token, including the
// requester side pulled from the parent blood request.
func (r *RoomRepository) GetByToken(ctx context.Context, token string) (*models.ChatRoom, error) {
	query := `
		SELECT cr.id, cr.unique_id, cr.request_id, br.requester_id, cr.donor_id, cr.created_at
		FROM chat_rooms cr
		JOIN blood_requests br ON br.id = cr.request_id
		WHERE cr.unique_id = $1
	`

	var room models.ChatRoom
	err := r.db.QueryRow(ctx, query, token).Scan(
		&room.ID,
		&room.UniqueID,
		&room.RequestID,
		&room.RequesterID,
		&room.DonorID,
		&room.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &room, nil
}

// ListAsRequester returns one summary per room hanging off a blood request
// the user made; the counterpart shown is the accepted donor.
func (r *RoomRepository) ListAsRequester(
	ctx context.Context,
	userID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			u.id,
			u.username,
			cr.unique_id,
			COALESCE(p.blood_group, ''),
			lm.content,
			COALESCE(uc.unread_count, 0)
		FROM chat_rooms cr
		JOIN blood_requests br ON br.id = cr.request_id
		JOIN users u ON u.id = cr.donor_id
		LEFT JOIN profiles p ON p.user_id = u.id
		LEFT JOIN LATERAL (
			SELECT content
			FROM chat_messages
			WHERE room_id = cr.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM chat_messages
			WHERE room_id = cr.id
			  AND sender_id <> $1
			  AND is_read = FALSE
		) uc ON TRUE
		WHERE br.requester_id = $1
		ORDER BY cr.created_at DESC, cr.id DESC
	`

	return r.scanSummaries(ctx, query, userID)
}

// ListAsDonor returns one summary per room where the user is the accepted
// donor; the counterpart shown is the requester.
func (r *RoomRepository) ListAsDonor(
	ctx context.Context,
	userID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			u.id,
			u.username,
			cr.unique_id,
			COALESCE(p.blood_group, ''),
			lm.content,
			COALESCE(uc.unread_count, 0)
		FROM chat_rooms cr
		JOIN blood_requests br ON br.id = cr.request_id
		JOIN users u ON u.id = br.requester_id
		LEFT JOIN profiles p ON p.user_id = u.id
		LEFT JOIN LATERAL (
			SELECT content
			FROM chat_messages
			WHERE room_id = cr.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM chat_messages
			WHERE room_id = cr.id
			  AND sender_id <> $1
			  AND is_read = FALSE
		) uc ON TRUE
		WHERE cr.donor_id = $1
		ORDER BY cr.created_at DESC, cr.id DESC
	`

	return r.scanSummaries(ctx, query, userID)
}

func (r *RoomRepository) scanSummaries(
	ctx context.Context,
	query string,
	userID int64,
) ([]models.ConversationSummary, error) {
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var lastMessage sql.NullString

		if err := rows.Scan(
			&summary.ID,
			&summary.Username,
			&summary.UniqueID,
			&summary.BloodGroup,
			&lastMessage,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		if lastMessage.Valid {
			summary.LastMessage = &lastMessage.String
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}
