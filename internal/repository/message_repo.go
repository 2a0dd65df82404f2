package repository

import (
	"context"

	"github.com/blnivas20/Blood-Connect-Full-Stack/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	roomID int64,
	senderID int64,
	content string,
) (*models.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (room_id, sender_id, content, is_read)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id, room_id, sender_id,
			(SELECT username FROM users WHERE id = $2),
			content, is_read, created_at
	`

	var message models.ChatMessage
	err := r.db.QueryRow(ctx, query, roomID, senderID, content).Scan(
		&message.ID,
		&message.RoomID,
		&message.Sender.ID,
		&message.Sender.Username,
		&message.Content,
		&message.IsRead,
		&message.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// ListByRoom returns the full transcript oldest to newest, the order the
// history endpoint serves it in.
func (r *MessageRepository) ListByRoom(
	ctx context.Context,
	roomID int64,
) ([]models.ChatMessage, error) {
	query := `
		SELECT m.id, m.room_id, m.sender_id, u.username, m.content, m.is_read, m.created_at
		FROM chat_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var message models.ChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.RoomID,
			&message.Sender.ID,
			&message.Sender.Username,
			&message.Content,
			&message.IsRead,
			&message.Timestamp,
		); err != nil {
			return nil, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *MessageRepository) MarkRoomRead(
	ctx context.Context,
	roomID int64,
	readerID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE chat_messages
		SET is_read = TRUE
		WHERE room_id = $1
		  AND sender_id <> $2
		  AND is_read = FALSE
	`, roomID, readerID)
	return err
}
