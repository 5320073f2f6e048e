package db

import (
	"context"
	"database/sql"
	"fmt"

	"artizen/internal/models"
)

// ToggleFollow flips the follow edge and reports whether follower now follows target.
func ToggleFollow(ctx context.Context, database *sql.DB, follower, target string) (bool, error) {
	follower = normalizeEmail(follower)
	target = normalizeEmail(target)
	if follower == target {
		return false, fmt.Errorf("%w: cannot follow yourself", ErrInvalidInput)
	}

	following := false
	err := withTx(ctx, database, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, target); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM follows WHERE follower_email = ? AND following_email = ?`, follower, target)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO follows (follower_email, following_email, created) VALUES (?, ?, ?)`,
			follower, target, nowString()); err != nil {
			return err
		}
		following = true
		return createNotificationTx(ctx, tx, notificationInput{
			recipient: target,
			sender:    follower,
			kind:      models.NotificationFollow,
		})
	})
	if err != nil {
		return false, err
	}
	return following, nil
}

func IsFollowing(ctx context.Context, database *sql.DB, follower, target string) (bool, error) {
	var count int
	err := database.QueryRowContext(ctx, `
SELECT COUNT(1) FROM follows WHERE follower_email = ? AND following_email = ?`,
		normalizeEmail(follower), normalizeEmail(target)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func GetFollowCounts(ctx context.Context, database *sql.DB, email string) (models.FollowCounts, error) {
	email = normalizeEmail(email)
	var c models.FollowCounts
	err := database.QueryRowContext(ctx, `
SELECT
    (SELECT COUNT(1) FROM follows WHERE following_email = ?),
    (SELECT COUNT(1) FROM follows WHERE follower_email = ?)`, email, email).Scan(&c.Followers, &c.Following)
	return c, err
}
