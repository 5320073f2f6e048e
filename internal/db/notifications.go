package db

import (
	"context"
	"database/sql"
	"time"

	"artizen/internal/models"
)

type notificationInput struct {
	recipient string
	sender    string
	kind      string
	postID    string
	threadID  string
	preview   string
}

var notificationTemplates = map[string]string{
	models.NotificationLike:    "liked your post",
	models.NotificationComment: "commented on your post",
	models.NotificationFollow:  "started following you",
	models.NotificationMessage: "sent you a message",
}

// createNotificationTx records a notification unless sender and recipient are the same user.
func createNotificationTx(ctx context.Context, tx *sql.Tx, in notificationInput) error {
	recipient := normalizeEmail(in.recipient)
	sender := normalizeEmail(in.sender)
	if recipient == "" || recipient == sender {
		return nil
	}
	message := notificationTemplates[in.kind]
	if in.preview != "" {
		message += ": " + truncate(in.preview, 200)
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO notifications (id, recipient_email, sender_email, type, post_id, thread_id, message, created, read)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		newID(), recipient, sender, in.kind, nullableString(in.postID), nullableString(in.threadID), message, nowString(),
	)
	return err
}

func ListNotifications(ctx context.Context, database *sql.DB, recipient string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := database.QueryContext(ctx, `
SELECT n.id, n.recipient_email, n.sender_email, COALESCE(u.full_name, n.sender_email), n.type,
       COALESCE(n.post_id, ''), COALESCE(n.thread_id, ''), n.message, n.created, n.read
FROM notifications n
LEFT JOIN users u ON u.email = n.sender_email
WHERE n.recipient_email = ?
ORDER BY n.created DESC, n.rowid DESC
LIMIT ?`, normalizeEmail(recipient), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		var (
			n       models.Notification
			created string
			readInt int
		)
		if err := rows.Scan(
			&n.ID, &n.RecipientEmail, &n.SenderEmail, &n.SenderName, &n.Type,
			&n.PostID, &n.ThreadID, &n.Message, &created, &readInt,
		); err != nil {
			return nil, err
		}
		n.CreatedAt = parseTime(created)
		n.Read = readInt == 1
		out = append(out, n)
	}
	return out, rows.Err()
}

func MarkAllNotificationsRead(ctx context.Context, database *sql.DB, recipient string) (int64, error) {
	res, err := database.ExecContext(ctx, `
UPDATE notifications
SET read = 1
WHERE recipient_email = ? AND read = 0`, normalizeEmail(recipient))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func CountUnreadNotifications(ctx context.Context, database *sql.DB, recipient string) (int, error) {
	var count int
	err := database.QueryRowContext(ctx, `
SELECT COUNT(1) FROM notifications WHERE recipient_email = ? AND read = 0`, normalizeEmail(recipient)).Scan(&count)
	return count, err
}

func ClearNotifications(ctx context.Context, database *sql.DB, recipient string) (int64, error) {
	res, err := database.ExecContext(ctx, `DELETE FROM notifications WHERE recipient_email = ?`, normalizeEmail(recipient))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeReadNotifications deletes read notifications created before cutoff.
func PurgeReadNotifications(ctx context.Context, database *sql.DB, cutoff time.Time) (int64, error) {
	res, err := database.ExecContext(ctx, `
DELETE FROM notifications WHERE read = 1 AND created < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
