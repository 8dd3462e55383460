package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrIdeaNotEmpty is returned when a delete would orphan thoughts.
var ErrIdeaNotEmpty = errors.New("idea still has thoughts")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// users and auth plumbing

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_token <> ''
			AND (verification_expires_at IS NULL OR verification_expires_at > NOW())
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ---------------------------------------------------------------------------
// ideas

func (s *PostgresStore) ListIdeas(ctx context.Context, limit, offset int) ([]Idea, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slug, name, description, icon, ord, created_at
		FROM ideas
		ORDER BY ord
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	defer rows.Close()

	items := make([]Idea, 0)
	for rows.Next() {
		var item Idea
		if err := rows.Scan(&item.Slug, &item.Name, &item.Description, &item.Icon, &item.Order, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ideas: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetIdea(ctx context.Context, slug string) (Idea, error) {
	var item Idea
	err := s.db.QueryRowContext(ctx, `
		SELECT slug, name, description, icon, ord, created_at
		FROM ideas WHERE slug=$1
	`, slug).Scan(&item.Slug, &item.Name, &item.Description, &item.Icon, &item.Order, &item.CreatedAt)
	if err != nil {
		return Idea{}, err
	}
	return item, nil
}

func (s *PostgresStore) IdeaSlugTaken(ctx context.Context, slug string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM ideas WHERE slug=$1)`, slug).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check idea slug: %w", err)
	}
	return taken, nil
}

// InsertIdea assigns the next dense rank (max+1, or 1 when the table is
// empty) unless the caller provided one.
func (s *PostgresStore) InsertIdea(ctx context.Context, item Idea) (Idea, error) {
	var row *sql.Row
	if item.Order > 0 {
		row = s.db.QueryRowContext(ctx, `
			INSERT INTO ideas (slug, name, description, icon, ord)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ord, created_at
		`, item.Slug, item.Name, item.Description, item.Icon, item.Order)
	} else {
		row = s.db.QueryRowContext(ctx, `
			INSERT INTO ideas (slug, name, description, icon, ord)
			VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(ord), 0) + 1 FROM ideas))
			RETURNING ord, created_at
		`, item.Slug, item.Name, item.Description, item.Icon)
	}
	if err := row.Scan(&item.Order, &item.CreatedAt); err != nil {
		return Idea{}, fmt.Errorf("insert idea: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateIdea(ctx context.Context, slug, name, description, icon string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE ideas SET name=$2, description=$3, icon=$4 WHERE slug=$1
	`, slug, name, description, icon)
	if err != nil {
		return fmt.Errorf("update idea: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update idea rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteIdea removes the idea only when no thoughts reference it. The count
// and the delete run in one transaction so a concurrent create cannot slip
// between the check and the act.
func (s *PostgresStore) DeleteIdea(ctx context.Context, slug string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete idea: %w", err)
	}
	defer tx.Rollback()

	var thoughtCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM thoughts WHERE idea_slug=$1`, slug).Scan(&thoughtCount); err != nil {
		return fmt.Errorf("count idea thoughts: %w", err)
	}
	if thoughtCount > 0 {
		return ErrIdeaNotEmpty
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM ideas WHERE slug=$1`, slug)
	if err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete idea rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// SwapIdeaOrder exchanges the display ranks of two ideas. The unique
// constraint on ord must hold at every statement, so one side stages
// through the sentinel rank -1 first.
func (s *PostgresStore) SwapIdeaOrder(ctx context.Context, slugA, slugB string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback()

	var ordA, ordB int
	if err := tx.QueryRowContext(ctx, `SELECT ord FROM ideas WHERE slug=$1 FOR UPDATE`, slugA).Scan(&ordA); err != nil {
		return fmt.Errorf("read order of %s: %w", slugA, err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT ord FROM ideas WHERE slug=$1 FOR UPDATE`, slugB).Scan(&ordB); err != nil {
		return fmt.Errorf("read order of %s: %w", slugB, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE ideas SET ord=-1 WHERE slug=$1`, slugA); err != nil {
		return fmt.Errorf("stage swap: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE ideas SET ord=$2 WHERE slug=$1`, slugB, ordA); err != nil {
		return fmt.Errorf("swap %s: %w", slugB, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE ideas SET ord=$2 WHERE slug=$1`, slugA, ordB); err != nil {
		return fmt.Errorf("swap %s: %w", slugA, err)
	}
	return tx.Commit()
}

func (s *PostgresStore) NextIdea(ctx context.Context, order int) (Idea, error) {
	return s.adjacentIdea(ctx, order, true)
}

func (s *PostgresStore) PrevIdea(ctx context.Context, order int) (Idea, error) {
	return s.adjacentIdea(ctx, order, false)
}

func (s *PostgresStore) adjacentIdea(ctx context.Context, order int, forward bool) (Idea, error) {
	query := `
		SELECT slug, name, description, icon, ord, created_at
		FROM ideas WHERE ord > $1 ORDER BY ord LIMIT 1
	`
	if !forward {
		query = `
			SELECT slug, name, description, icon, ord, created_at
			FROM ideas WHERE ord < $1 ORDER BY ord DESC LIMIT 1
		`
	}
	var item Idea
	err := s.db.QueryRowContext(ctx, query, order).Scan(
		&item.Slug, &item.Name, &item.Description, &item.Icon, &item.Order, &item.CreatedAt)
	if err != nil {
		return Idea{}, err
	}
	return item, nil
}

func (s *PostgresStore) IdeaThoughtCount(ctx context.Context, slug string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thoughts WHERE idea_slug=$1`, slug).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count idea thoughts: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountIdeas(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ideas`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count ideas: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// thoughts

var thoughtSortColumns = map[string]string{
	"date_published": "date_published",
	"date_edited":    "date_edited",
	"title":          "title",
	"slug":           "slug",
}

const thoughtColumns = `slug, title, content, idea_slug, author_id, is_draft, is_trash, date_published, date_edited, preview`

func scanThought(scanner interface{ Scan(...any) error }) (Thought, error) {
	var t Thought
	err := scanner.Scan(&t.Slug, &t.Title, &t.Content, &t.IdeaSlug, &t.AuthorID,
		&t.IsDraft, &t.IsTrash, &t.DatePublished, &t.DateEdited, &t.Preview)
	return t, err
}

func buildThoughtWhere(filter ThoughtFilter) (string, []any) {
	var filterConds []string
	var args []any

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.IdeaSlug != "" {
		filterConds = append(filterConds, "idea_slug = "+arg(filter.IdeaSlug))
	}
	if filter.AuthorID != "" {
		filterConds = append(filterConds, "author_id = "+arg(filter.AuthorID))
	}
	if filter.OlderThan != nil {
		filterConds = append(filterConds, "date_published < "+arg(*filter.OlderThan))
	}
	if filter.NewerThan != nil {
		filterConds = append(filterConds, "date_published > "+arg(*filter.NewerThan))
	}

	var conds []string
	if len(filterConds) > 0 {
		joined := strings.Join(filterConds, " AND ")
		if filter.Exclude {
			joined = "NOT (" + joined + ")"
		}
		conds = append(conds, joined)
	}

	// lifecycle selection sits outside the negatable group
	switch {
	case filter.PublicOnly:
		conds = append(conds, "is_draft = FALSE", "is_trash = FALSE")
	case filter.DraftsOnly:
		conds = append(conds, "is_draft = TRUE", "is_trash = FALSE")
	case filter.TrashOnly:
		conds = append(conds, "is_trash = TRUE")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStore) ListThoughts(ctx context.Context, filter ThoughtFilter) ([]Thought, error) {
	where, args := buildThoughtWhere(filter)

	orderColumn, ok := thoughtSortColumns[filter.OrderBy]
	if !ok {
		orderColumn = "date_published"
		filter.Desc = true
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}

	query := "SELECT " + thoughtColumns + " FROM thoughts" + where +
		" ORDER BY " + orderColumn + " " + direction
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list thoughts: %w", err)
	}
	defer rows.Close()

	items := make([]Thought, 0)
	for rows.Next() {
		item, err := scanThought(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thought: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thoughts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountThoughts(ctx context.Context, filter ThoughtFilter) (int, error) {
	where, args := buildThoughtWhere(filter)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM thoughts"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count thoughts: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GetThought(ctx context.Context, slug string) (Thought, error) {
	item, err := scanThought(s.db.QueryRowContext(ctx,
		"SELECT "+thoughtColumns+" FROM thoughts WHERE slug=$1", slug))
	if err != nil {
		return Thought{}, err
	}
	return item, nil
}

func (s *PostgresStore) ThoughtSlugTaken(ctx context.Context, slug string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM thoughts WHERE slug=$1)`, slug).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check thought slug: %w", err)
	}
	return taken, nil
}

func (s *PostgresStore) InsertThought(ctx context.Context, item Thought) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thoughts (slug, title, content, idea_slug, author_id, is_draft, is_trash, preview)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
	`, item.Slug, item.Title, item.Content, item.IdeaSlug, item.AuthorID, item.IsDraft, item.Preview)
	if err != nil {
		return fmt.Errorf("insert thought: %w", err)
	}
	return nil
}

// UpdateThoughtContent rewrites the editable fields and touches date_edited.
func (s *PostgresStore) UpdateThoughtContent(ctx context.Context, slug, title, content, preview string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thoughts SET title=$2, content=$3, preview=$4, date_edited=NOW()
		WHERE slug=$1
	`, slug, title, content, preview)
	if err != nil {
		return fmt.Errorf("update thought: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update thought rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetThoughtDraft flips the draft flag. stampPublished resets date_published
// to now; the caller decides that by comparing against the persisted row so
// the timestamp moves exactly once, on the draft-to-published edge.
func (s *PostgresStore) SetThoughtDraft(ctx context.Context, slug string, isDraft, stampPublished bool) error {
	var err error
	if stampPublished {
		_, err = s.db.ExecContext(ctx, `
			UPDATE thoughts SET is_draft=$2, date_published=NOW(), date_edited=NOW() WHERE slug=$1
		`, slug, isDraft)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE thoughts SET is_draft=$2, date_edited=NOW() WHERE slug=$1
		`, slug, isDraft)
	}
	if err != nil {
		return fmt.Errorf("set thought draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetThoughtTrash(ctx context.Context, slug string, isTrash bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE thoughts SET is_trash=$2, date_edited=NOW() WHERE slug=$1
	`, slug, isTrash)
	if err != nil {
		return fmt.Errorf("set thought trash: %w", err)
	}
	return nil
}

func (s *PostgresStore) MoveThought(ctx context.Context, slug, newIdeaSlug string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE thoughts SET idea_slug=$2 WHERE slug=$1
	`, slug, newIdeaSlug)
	if err != nil {
		return fmt.Errorf("move thought: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteThought(ctx context.Context, slug string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM thoughts WHERE slug=$1`, slug)
	if err != nil {
		return fmt.Errorf("delete thought: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete thought rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdjacentThoughts returns up to num published thoughts in the same idea on
// one side of pivot, ordered outward by date_published.
func (s *PostgresStore) AdjacentThoughts(ctx context.Context, ideaSlug string, pivot time.Time, forward bool, num int) ([]Thought, error) {
	query := "SELECT " + thoughtColumns + ` FROM thoughts
		WHERE idea_slug=$1 AND is_draft=FALSE AND is_trash=FALSE AND date_published > $2
		ORDER BY date_published LIMIT $3`
	if !forward {
		query = "SELECT " + thoughtColumns + ` FROM thoughts
			WHERE idea_slug=$1 AND is_draft=FALSE AND is_trash=FALSE AND date_published < $2
			ORDER BY date_published DESC LIMIT $3`
	}

	rows, err := s.db.QueryContext(ctx, query, ideaSlug, pivot, num)
	if err != nil {
		return nil, fmt.Errorf("adjacent thoughts: %w", err)
	}
	defer rows.Close()

	items := make([]Thought, 0, num)
	for rows.Next() {
		item, err := scanThought(rows)
		if err != nil {
			return nil, fmt.Errorf("scan adjacent thought: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjacent thoughts: %w", err)
	}
	return items, nil
}

// CountThoughtsWithImage reports how many other thoughts embed src in their
// content, used to keep shared inline images alive on delete.
func (s *PostgresStore) CountThoughtsWithImage(ctx context.Context, src, excludeSlug string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM thoughts
		WHERE slug <> $3 AND (content LIKE '%' || $1 || '%' ESCAPE '\' OR preview = $2)
	`, escapeLike(src), src, excludeSlug).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count image references: %w", err)
	}
	return count, nil
}

// escapeLike backslash-escapes LIKE wildcards so media keys containing
// % or _ match literally instead of as patterns.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// ---------------------------------------------------------------------------
// highlights

func (s *PostgresStore) InsertHighlight(ctx context.Context, item Highlight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO highlights (id, title, description, url, icon)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.Title, item.Description, item.URL, item.Icon)
	if err != nil {
		return fmt.Errorf("insert highlight: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetHighlight(ctx context.Context, id string) (Highlight, error) {
	var item Highlight
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, url, icon, date_published
		FROM highlights WHERE id=$1
	`, id).Scan(&item.ID, &item.Title, &item.Description, &item.URL, &item.Icon, &item.DatePublished)
	if err != nil {
		return Highlight{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateHighlight(ctx context.Context, id, title, description, url, icon string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE highlights SET title=$2, description=$3, url=$4, icon=$5 WHERE id=$1
	`, id, title, description, url, icon)
	if err != nil {
		return fmt.Errorf("update highlight: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update highlight rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteHighlight(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM highlights WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete highlight: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete highlight rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListHighlights(ctx context.Context, limit, offset int) ([]Highlight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, url, icon, date_published
		FROM highlights
		ORDER BY date_published DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list highlights: %w", err)
	}
	defer rows.Close()

	items := make([]Highlight, 0)
	for rows.Next() {
		var item Highlight
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.URL, &item.Icon, &item.DatePublished); err != nil {
			return nil, fmt.Errorf("scan highlight: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate highlights: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountHighlights(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM highlights`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count highlights: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// reading list

func (s *PostgresStore) InsertReadingListItem(ctx context.Context, item ReadingListItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reading_list_items (id, title, author, url, cover, wishlist, favorite)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Title, item.Author, item.URL, item.Cover, item.Wishlist, item.Favorite)
	if err != nil {
		return fmt.Errorf("insert reading list item: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReadingListItem(ctx context.Context, id string) (ReadingListItem, error) {
	var item ReadingListItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, author, url, cover, wishlist, favorite, date_added, date_published
		FROM reading_list_items WHERE id=$1
	`, id).Scan(&item.ID, &item.Title, &item.Author, &item.URL, &item.Cover,
		&item.Wishlist, &item.Favorite, &item.DateAdded, &item.DatePublished)
	if err != nil {
		return ReadingListItem{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateReadingListItem(ctx context.Context, id, title, author, url, cover string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reading_list_items SET title=$2, author=$3, url=$4, cover=$5 WHERE id=$1
	`, id, title, author, url, cover)
	if err != nil {
		return fmt.Errorf("update reading list item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reading list rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) SetReadingListFavorite(ctx context.Context, id string, favorite bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reading_list_items SET favorite=$2 WHERE id=$1`, id, favorite)
	if err != nil {
		return fmt.Errorf("set reading list favorite: %w", err)
	}
	return nil
}

// FinishReadingListItem moves a wishlist entry to the read shelf and stamps
// when that happened.
func (s *PostgresStore) FinishReadingListItem(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reading_list_items SET wishlist=FALSE, date_published=NOW() WHERE id=$1
	`, id)
	if err != nil {
		return fmt.Errorf("finish reading list item: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteReadingListItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reading_list_items WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete reading list item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reading list rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListReadingList(ctx context.Context, wishlist *bool, limit, offset int) ([]ReadingListItem, error) {
	query := `
		SELECT id, title, author, url, cover, wishlist, favorite, date_added, date_published
		FROM reading_list_items
	`
	args := []any{}
	if wishlist != nil {
		query += " WHERE wishlist=$1"
		args = append(args, *wishlist)
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY favorite DESC, date_added DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reading list: %w", err)
	}
	defer rows.Close()

	items := make([]ReadingListItem, 0)
	for rows.Next() {
		var item ReadingListItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Author, &item.URL, &item.Cover,
			&item.Wishlist, &item.Favorite, &item.DateAdded, &item.DatePublished); err != nil {
			return nil, fmt.Errorf("scan reading list item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reading list: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountReadingList(ctx context.Context, wishlist *bool) (int, error) {
	query := `SELECT COUNT(*) FROM reading_list_items`
	args := []any{}
	if wishlist != nil {
		query += " WHERE wishlist=$1"
		args = append(args, *wishlist)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count reading list: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// tasks

func (s *PostgresStore) InsertTask(ctx context.Context, item Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, content, parent_task_id, priority, is_completed)
		VALUES ($1, $2, $3, $4, FALSE)
	`, item.ID, item.Content, item.ParentTaskID, item.Priority)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (Task, error) {
	var item Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content, parent_task_id, priority, is_completed, date_created, date_completed
		FROM tasks WHERE id=$1
	`, id).Scan(&item.ID, &item.Content, &item.ParentTaskID, &item.Priority,
		&item.IsCompleted, &item.DateCreated, &item.DateCompleted)
	if err != nil {
		return Task{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id, content, priority string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET content=$2, priority=$3 WHERE id=$1
	`, id, content, priority)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompleteTask marks the task done, resets its priority to low and stamps
// date_completed.
func (s *PostgresStore) CompleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET is_completed=TRUE, priority=$2, date_completed=NOW() WHERE id=$1
	`, id, PriorityLow)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReopenTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET is_completed=FALSE, date_completed=NULL WHERE id=$1
	`, id)
	if err != nil {
		return fmt.Errorf("reopen task: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1 OR parent_task_id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, includeCompleted bool) ([]Task, error) {
	query := `
		SELECT id, content, parent_task_id, priority, is_completed, date_created, date_completed
		FROM tasks
	`
	if !includeCompleted {
		query += " WHERE is_completed=FALSE"
	}
	query += `
		ORDER BY CASE priority
			WHEN 'next' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3
		END, date_created
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		var item Task
		if err := rows.Scan(&item.ID, &item.Content, &item.ParentTaskID, &item.Priority,
			&item.IsCompleted, &item.DateCreated, &item.DateCompleted); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

// ---------------------------------------------------------------------------
// notes

func (s *PostgresStore) InsertNote(ctx context.Context, item Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, content) VALUES ($1, $2)
	`, item.ID, item.Content)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, id string) (Note, error) {
	var item Note
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content, date_created, date_edited FROM notes WHERE id=$1
	`, id).Scan(&item.ID, &item.Content, &item.DateCreated, &item.DateEdited)
	if err != nil {
		return Note{}, err
	}
	if err := s.loadNoteLinks(ctx, &item); err != nil {
		return Note{}, err
	}
	return item, nil
}

func (s *PostgresStore) loadNoteLinks(ctx context.Context, note *Note) error {
	ideaRows, err := s.db.QueryContext(ctx, `SELECT idea_slug FROM note_ideas WHERE note_id=$1 ORDER BY idea_slug`, note.ID)
	if err != nil {
		return fmt.Errorf("load note ideas: %w", err)
	}
	defer ideaRows.Close()
	for ideaRows.Next() {
		var slug string
		if err := ideaRows.Scan(&slug); err != nil {
			return fmt.Errorf("scan note idea: %w", err)
		}
		note.IdeaSlugs = append(note.IdeaSlugs, slug)
	}
	if err := ideaRows.Err(); err != nil {
		return fmt.Errorf("iterate note ideas: %w", err)
	}

	thoughtRows, err := s.db.QueryContext(ctx, `SELECT thought_slug FROM note_thoughts WHERE note_id=$1 ORDER BY thought_slug`, note.ID)
	if err != nil {
		return fmt.Errorf("load note thoughts: %w", err)
	}
	defer thoughtRows.Close()
	for thoughtRows.Next() {
		var slug string
		if err := thoughtRows.Scan(&slug); err != nil {
			return fmt.Errorf("scan note thought: %w", err)
		}
		note.ThoughtSlugs = append(note.ThoughtSlugs, slug)
	}
	return thoughtRows.Err()
}

func (s *PostgresStore) UpdateNote(ctx context.Context, id, content string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notes SET content=$2, date_edited=NOW() WHERE id=$1
	`, id, content)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetNoteLinks replaces both association sets in one transaction.
func (s *PostgresStore) SetNoteLinks(ctx context.Context, noteID string, ideaSlugs, thoughtSlugs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin note links: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_ideas WHERE note_id=$1`, noteID); err != nil {
		return fmt.Errorf("clear note ideas: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_thoughts WHERE note_id=$1`, noteID); err != nil {
		return fmt.Errorf("clear note thoughts: %w", err)
	}
	for _, slug := range ideaSlugs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO note_ideas (note_id, idea_slug) VALUES ($1, $2)`, noteID, slug); err != nil {
			return fmt.Errorf("link note idea %s: %w", slug, err)
		}
	}
	for _, slug := range thoughtSlugs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO note_thoughts (note_id, thought_slug) VALUES ($1, $2)`, noteID, slug); err != nil {
			return fmt.Errorf("link note thought %s: %w", slug, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ListNotes(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, date_created, date_edited FROM notes ORDER BY date_edited DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var item Note
		if err := rows.Scan(&item.ID, &item.Content, &item.DateCreated, &item.DateEdited); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}

	for i := range items {
		if err := s.loadNoteLinks(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// ---------------------------------------------------------------------------
// activity log (append-only; no update or delete statements exist)

func (s *PostgresStore) InsertActivity(ctx context.Context, item Activity) error {
	tokens, err := json.Marshal(item.Tokens)
	if err != nil {
		return fmt.Errorf("marshal activity tokens: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activities (author_id, type, tokens, url)
		VALUES ($1, $2, $3, $4)
	`, item.AuthorID, item.Type, tokens, item.URL)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActivities(ctx context.Context, limit, offset int) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, type, tokens, url, date
		FROM activities
		ORDER BY date DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	items := make([]Activity, 0)
	for rows.Next() {
		var item Activity
		var tokens []byte
		if err := rows.Scan(&item.ID, &item.AuthorID, &item.Type, &tokens, &item.URL, &item.Date); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if len(tokens) > 0 {
			if err := json.Unmarshal(tokens, &item.Tokens); err != nil {
				return nil, fmt.Errorf("unmarshal activity tokens: %w", err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountActivities(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// dashboard summary

func (s *PostgresStore) Summary(ctx context.Context) (SummaryCounts, error) {
	var counts SummaryCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM ideas),
			(SELECT COUNT(*) FROM thoughts WHERE is_draft=FALSE AND is_trash=FALSE),
			(SELECT COUNT(*) FROM thoughts WHERE is_draft=TRUE AND is_trash=FALSE),
			(SELECT COUNT(*) FROM thoughts WHERE is_trash=TRUE),
			(SELECT COUNT(*) FROM highlights),
			(SELECT COUNT(*) FROM reading_list_items),
			(SELECT COUNT(*) FROM tasks WHERE is_completed=FALSE)
	`).Scan(&counts.Ideas, &counts.Published, &counts.Drafts, &counts.Trash,
		&counts.Highlights, &counts.Reading, &counts.OpenTasks)
	if err != nil {
		return SummaryCounts{}, fmt.Errorf("summary counts: %w", err)
	}
	return counts, nil
}
