package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"artizen/internal/models"
)

type NewUser struct {
	Email        string
	FullName     string
	DOB          string
	PasswordHash string
}

type ProfileUpdate struct {
	FullName     *string
	Bio          *string
	Link         *string
	ProfileImage *string
}

const userColumns = `email, full_name, COALESCE(dob, ''), COALESCE(bio, ''), COALESCE(link, ''), COALESCE(profile_image, ''), created`

func CreateUser(ctx context.Context, database *sql.DB, in NewUser) (*models.User, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.FullName)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: fullName is required", ErrInvalidInput)
	}
	if in.PasswordHash == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	_, err := database.ExecContext(ctx, `
INSERT INTO users (email, full_name, dob, password_hash, created)
VALUES (?, ?, ?, ?, ?)`, email, name, nullableString(in.DOB), in.PasswordHash, nowString())
	if err != nil {
		if isUniqueConstraint(err) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return GetUser(ctx, database, email)
}

func GetUser(ctx context.Context, database *sql.DB, email string) (*models.User, error) {
	return getUser(ctx, database, email)
}

func getUser(ctx context.Context, q querier, email string) (*models.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email))
	return scanUser(row)
}

// GetUserCredentials returns the user and their stored password hash.
func GetUserCredentials(ctx context.Context, database *sql.DB, email string) (*models.User, string, error) {
	var hash string
	row := database.QueryRowContext(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = ?`, normalizeEmail(email))
	u := &models.User{}
	var created string
	if err := row.Scan(&u.Email, &u.FullName, &u.DOB, &u.Bio, &u.Link, &u.ProfileImage, &created, &hash); err != nil {
		return nil, "", err
	}
	u.CreatedAt = parseTime(created)
	return u, hash, nil
}

func UserExists(ctx context.Context, database *sql.DB, email string) (bool, error) {
	var count int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE email = ?`, normalizeEmail(email)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func UpdateProfile(ctx context.Context, database *sql.DB, email string, upd ProfileUpdate) (*models.User, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: fullName cannot be empty", ErrInvalidInput)
		}
		sets = append(sets, "full_name = ?")
		args = append(args, name)
	}
	if upd.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, nullableString(truncate(*upd.Bio, 500)))
	}
	if upd.Link != nil {
		sets = append(sets, "link = ?")
		args = append(args, nullableString(*upd.Link))
	}
	if upd.ProfileImage != nil {
		sets = append(sets, "profile_image = ?")
		args = append(args, nullableString(*upd.ProfileImage))
	}
	if len(sets) > 0 {
		args = append(args, normalizeEmail(email))
		res, err := database.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE email = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, sql.ErrNoRows
		}
	}
	return GetUser(ctx, database, email)
}

// SearchUsers matches name or email prefixes, case-insensitively, excluding one user.
func SearchUsers(ctx context.Context, database *sql.DB, query, exclude string, limit int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.User{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(query))
	rows, err := database.QueryContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE email <> ?
  AND (LOWER(full_name) LIKE ? ESCAPE '\' OR LOWER(full_name) LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')
ORDER BY full_name COLLATE NOCASE
LIMIT ?`,
		normalizeEmail(exclude), escaped+"%", "% "+escaped+"%", escaped+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func GetProfile(ctx context.Context, database *sql.DB, email, viewer string) (*models.Profile, error) {
	u, err := GetUser(ctx, database, email)
	if err != nil {
		return nil, err
	}
	counts, err := GetFollowCounts(ctx, database, u.Email)
	if err != nil {
		return nil, err
	}
	p := &models.Profile{User: *u, Followers: counts.Followers, Following: counts.Following}
	if viewer != "" && normalizeEmail(viewer) != u.Email {
		p.IsFollowing, err = IsFollowing(ctx, database, viewer, u.Email)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var created string
	if err := row.Scan(&u.Email, &u.FullName, &u.DOB, &u.Bio, &u.Link, &u.ProfileImage, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

// SetPasswordHash replaces the stored password hash of email.
func SetPasswordHash(ctx context.Context, database *sql.DB, email, hash string) error {
	if hash == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	res, err := database.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE email = ?`, hash, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AccountDeletion counts what DeleteAccount removed besides the user row.
type AccountDeletion struct {
	Posts         int64 `json:"posts"`
	Comments      int64 `json:"comments"`
	Likes         int64 `json:"likes"`
	Notifications int64 `json:"notifications"`
	Follows       int64 `json:"follows"`
	Threads       int64 `json:"threads"`
}

// DeleteAccount removes a user together with their posts, the comments and
// likes they left on other posts, their notifications, follows and chat threads.
func DeleteAccount(ctx context.Context, database *sql.DB, email string) (AccountDeletion, error) {
	email = normalizeEmail(email)
	var out AccountDeletion
	err := withTx(ctx, database, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, email); err != nil {
			return err
		}
		steps := []struct {
			query string
			count *int64
		}{
			{`DELETE FROM notifications WHERE post_id IN (SELECT id FROM posts WHERE author_email = ?)`, nil},
			{`DELETE FROM post_likes WHERE post_id IN (SELECT id FROM posts WHERE author_email = ?)`, nil},
			{`DELETE FROM post_comments WHERE post_id IN (SELECT id FROM posts WHERE author_email = ?)`, nil},
			{`DELETE FROM posts WHERE author_email = ?`, &out.Posts},
			{`DELETE FROM post_comments WHERE author_email = ?`, &out.Comments},
			{`DELETE FROM post_likes WHERE user_email = ?`, &out.Likes},
			{`DELETE FROM notifications WHERE recipient_email = ? OR sender_email = ?`, &out.Notifications},
			{`DELETE FROM follows WHERE follower_email = ? OR following_email = ?`, &out.Follows},
			{`DELETE FROM chat_messages WHERE thread_id IN (SELECT id FROM chat_threads WHERE user_a = ? OR user_b = ?)`, nil},
			{`DELETE FROM chat_threads WHERE user_a = ? OR user_b = ?`, &out.Threads},
			{`DELETE FROM users WHERE email = ?`, nil},
		}
		for _, step := range steps {
			args := []any{email}
			if strings.Count(step.query, "?") == 2 {
				args = append(args, email)
			}
			res, err := tx.ExecContext(ctx, step.query, args...)
			if err != nil {
				return fmt.Errorf("delete account: %w", err)
			}
			if step.count != nil {
				*step.count, _ = res.RowsAffected()
			}
		}
		return nil
	})
	if err != nil {
		return AccountDeletion{}, err
	}
	return out, nil
}
