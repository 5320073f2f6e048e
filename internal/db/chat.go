package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"artizen/internal/models"
)

const (
	DefaultMessageTake = 30
	MaxMessageTake     = 100
	maxMessageLength   = 4000
)

// threadSelect expects the viewer's email as its first argument.
const threadSelect = `
SELECT t.id, t.user_a, t.user_b, t.updated,
       COALESCE(o.email, ''), COALESCE(o.full_name, ''), COALESCE(o.profile_image, ''),
       m.id, m.sender_email, m.text, m.client_id, m.created
FROM chat_threads t
LEFT JOIN users o ON o.email = CASE WHEN t.user_a = ? THEN t.user_b ELSE t.user_a END
LEFT JOIN chat_messages m ON m.seq = (SELECT MAX(seq) FROM chat_messages WHERE thread_id = t.id)`

func threadPair(a, b string) (string, string) {
	a, b = normalizeEmail(a), normalizeEmail(b)
	if a > b {
		return b, a
	}
	return a, b
}

// OpenThread returns the thread between me and other, creating it on first use.
func OpenThread(ctx context.Context, database *sql.DB, me, other string) (*models.Thread, error) {
	me = normalizeEmail(me)
	other = normalizeEmail(other)
	if other == "" || other == me {
		return nil, fmt.Errorf("%w: a different user is required", ErrInvalidInput)
	}
	var out *models.Thread
	err := withTx(ctx, database, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, other); err != nil {
			return err
		}
		lo, hi := threadPair(me, other)
		now := nowString()
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO chat_threads (id, user_a, user_b, created, updated)
VALUES (?, ?, ?, ?, ?)`, newID(), lo, hi, now, now); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, threadSelect+` WHERE t.user_a = ? AND t.user_b = ?`, me, lo, hi)
		var err error
		out, err = scanThread(row, me)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func GetThread(ctx context.Context, database *sql.DB, id, viewer string) (*models.Thread, error) {
	viewer = normalizeEmail(viewer)
	row := database.QueryRowContext(ctx, threadSelect+` WHERE t.id = ?`, viewer, id)
	return scanThread(row, viewer)
}

// ListThreads returns the viewer's threads, most recently active first.
func ListThreads(ctx context.Context, database *sql.DB, viewer string) ([]models.Thread, error) {
	viewer = normalizeEmail(viewer)
	rows, err := database.QueryContext(ctx, threadSelect+`
WHERE t.user_a = ? OR t.user_b = ?
ORDER BY t.updated DESC, t.rowid DESC`, viewer, viewer, viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Thread, 0)
	for rows.Next() {
		t, err := scanThread(rows, viewer)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ThreadParticipants returns both participant emails of a thread.
func ThreadParticipants(ctx context.Context, database *sql.DB, id string) ([]string, error) {
	return threadParticipants(ctx, database, id)
}

func threadParticipants(ctx context.Context, q querier, id string) ([]string, error) {
	var a, b string
	if err := q.QueryRowContext(ctx, `SELECT user_a, user_b FROM chat_threads WHERE id = ?`, id).Scan(&a, &b); err != nil {
		return nil, err
	}
	return []string{a, b}, nil
}

// IsParticipant reports whether email belongs to the thread. A missing thread yields sql.ErrNoRows.
func IsParticipant(ctx context.Context, database *sql.DB, threadID, email string) (bool, error) {
	participants, err := ThreadParticipants(ctx, database, threadID)
	if err != nil {
		return false, err
	}
	email = normalizeEmail(email)
	return participants[0] == email || participants[1] == email, nil
}

// ListMessages returns up to take messages immediately preceding cursor (or the
// newest take when cursor is empty), ordered oldest to newest.
func ListMessages(ctx context.Context, database *sql.DB, threadID string, take int, cursor string) ([]models.Message, error) {
	if take <= 0 {
		take = DefaultMessageTake
	}
	if take > MaxMessageTake {
		take = MaxMessageTake
	}

	query := `
SELECT id, thread_id, sender_email, text, COALESCE(client_id, ''), created
FROM chat_messages
WHERE thread_id = ?`
	args := []any{threadID}
	if cursor = strings.TrimSpace(cursor); cursor != "" {
		var seq int64
		err := database.QueryRowContext(ctx, `
SELECT seq FROM chat_messages WHERE id = ? AND thread_id = ?`, cursor, threadID).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown cursor", ErrInvalidInput)
		}
		if err != nil {
			return nil, err
		}
		query += " AND seq < ?"
		args = append(args, seq)
	}
	query += " ORDER BY seq DESC LIMIT ?"
	args = append(args, take)

	rows, err := database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Message, 0, take)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CreateMessage appends a message to a thread. When clientID repeats a prior
// send from the same sender, the stored message is returned and created is false.
func CreateMessage(ctx context.Context, database *sql.DB, threadID, sender, text, clientID string) (msg *models.Message, created bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if len([]rune(text)) > maxMessageLength {
		return nil, false, fmt.Errorf("%w: text exceeds %d characters", ErrInvalidInput, maxMessageLength)
	}
	sender = normalizeEmail(sender)
	clientID = strings.TrimSpace(clientID)

	err = withTx(ctx, database, func(tx *sql.Tx) error {
		participants, err := threadParticipants(ctx, tx, threadID)
		if err != nil {
			return err
		}
		recipient := ""
		switch sender {
		case participants[0]:
			recipient = participants[1]
		case participants[1]:
			recipient = participants[0]
		default:
			return ErrForbidden
		}

		if clientID != "" {
			row := tx.QueryRowContext(ctx, `
SELECT id, thread_id, sender_email, text, COALESCE(client_id, ''), created
FROM chat_messages
WHERE thread_id = ? AND sender_email = ? AND client_id = ?`, threadID, sender, clientID)
			existing, err := scanMessage(row)
			if err == nil {
				msg = existing
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		now := nowString()
		m := &models.Message{
			ID:          newID(),
			ThreadID:    threadID,
			SenderEmail: sender,
			Text:        text,
			ClientID:    clientID,
			CreatedAt:   parseTime(now),
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chat_messages (id, thread_id, sender_email, text, client_id, created)
VALUES (?, ?, ?, ?, ?, ?)`, m.ID, threadID, sender, text, nullableString(clientID), now); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chat_threads SET updated = ? WHERE id = ?`, now, threadID); err != nil {
			return err
		}
		if err := createNotificationTx(ctx, tx, notificationInput{
			recipient: recipient,
			sender:    sender,
			kind:      models.NotificationMessage,
			threadID:  threadID,
			preview:   text,
		}); err != nil {
			return err
		}
		msg = m
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return msg, created, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	var created string
	if err := row.Scan(&m.ID, &m.ThreadID, &m.SenderEmail, &m.Text, &m.ClientID, &created); err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(created)
	return m, nil
}

func scanThread(row rowScanner, viewer string) (*models.Thread, error) {
	var (
		t                                 models.Thread
		userA, userB, updated             string
		msgID, msgSender, msgText, msgCID sql.NullString
		msgCreated                        sql.NullString
	)
	if err := row.Scan(
		&t.ID, &userA, &userB, &updated,
		&t.OtherUser.Email, &t.OtherUser.FullName, &t.OtherUser.ProfileImage,
		&msgID, &msgSender, &msgText, &msgCID, &msgCreated,
	); err != nil {
		return nil, err
	}
	t.Participants = []string{userA, userB}
	t.UpdatedAt = parseTime(updated)
	if t.OtherUser.Email == "" {
		if userA == viewer {
			t.OtherUser.Email = userB
		} else {
			t.OtherUser.Email = userA
		}
	}
	if msgID.Valid {
		t.LastMessage = &models.Message{
			ID:          msgID.String,
			ThreadID:    t.ID,
			SenderEmail: msgSender.String,
			Text:        msgText.String,
			ClientID:    msgCID.String,
			CreatedAt:   parseTime(msgCreated.String),
		}
	}
	return &t, nil
}
