package blogservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sushihentaime/emerald/internal/common"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUserForeignKey = errors.New("user_id does not exist")
	ErrEditConflict   = errors.New("edit conflict")
)

const postColumns = `
	p.id, p.title, p.slug, p.content, p.image_url, p.audio_url, p.likes,
	ARRAY(SELECT l.user_id FROM post_likes l WHERE l.post_id = p.id ORDER BY l.created_at, l.user_id),
	p.author_id, p.created_at, p.updated_at, p.version`

func newBlogModel(db *sql.DB) *BlogModel {
	return &BlogModel{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*Post, error) {
	var p Post

	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.ImageURL, &p.AudioURL, &p.Likes, pq.Array(&p.LikedBy), &p.AuthorID, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (m *BlogModel) insert(ctx context.Context, p *Post) error {
	query := `
		INSERT INTO blog_posts (title, slug, content, image_url, audio_url, author_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, likes, created_at, updated_at, version`

	err := m.db.QueryRowContext(ctx, query, p.Title, p.Slug, p.Content, p.ImageURL, p.AudioURL, p.AuthorID).Scan(&p.ID, &p.Likes, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		switch {
		case common.IsForeignKeyViolation(err, "blog_posts_author_id_fkey"):
			return ErrUserForeignKey
		default:
			return err
		}
	}

	p.LikedBy = []int64{}
	return nil
}

func (m *BlogModel) get(ctx context.Context, id int) (*Post, error) {
	query := `SELECT ` + postColumns + ` FROM blog_posts p WHERE p.id = $1`

	p, err := scanPost(m.db.QueryRowContext(ctx, query, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return p, nil
}

func (m *BlogModel) queryPosts(ctx context.Context, query string, args ...any) ([]*Post, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

// list returns posts newest first.
func (m *BlogModel) list(ctx context.Context, limit, offset int) ([]*Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM blog_posts p
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1 OFFSET $2`

	return m.queryPosts(ctx, query, limit, offset)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// search matches titles case-insensitively; wildcards in q are taken literally.
func (m *BlogModel) search(ctx context.Context, q string, limit, offset int) ([]*Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM blog_posts p
		WHERE p.title ILIKE $1
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3`

	return m.queryPosts(ctx, query, "%"+likeEscaper.Replace(q)+"%", limit, offset)
}

func (m *BlogModel) update(ctx context.Context, p *Post) error {
	query := `
		UPDATE blog_posts
		SET title = $1, slug = $2, content = $3, image_url = $4, audio_url = $5, updated_at = clock_timestamp(), version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING updated_at, version`

	err := m.db.QueryRowContext(ctx, query, p.Title, p.Slug, p.Content, p.ImageURL, p.AudioURL, p.ID, p.Version).Scan(&p.UpdatedAt, &p.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrEditConflict
		default:
			return err
		}
	}

	return nil
}

// delete removes the post; comments and likes go with it through ON DELETE CASCADE.
func (m *BlogModel) delete(ctx context.Context, id int) error {
	query := `
		DELETE FROM blog_posts
		WHERE id = $1`

	res, err := m.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows != 1 {
		switch {
		case rows == 0:
			return ErrRecordNotFound
		default:
			return fmt.Errorf("expected 1 row to be affected, got %d", rows)
		}
	}

	return nil
}

// like records the user's like and bumps the counter in one statement. The counter
// only moves when the (post, user) row was actually inserted.
func (m *BlogModel) like(ctx context.Context, postID, userID int) (*LikeResult, error) {
	query := `
		WITH inserted AS (
			INSERT INTO post_likes (post_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (post_id, user_id) DO NOTHING
			RETURNING post_id
		)
		UPDATE blog_posts
		SET likes = likes + 1
		WHERE id = (SELECT post_id FROM inserted)
		RETURNING likes`

	result := &LikeResult{PostID: postID}

	err := m.db.QueryRowContext(ctx, query, postID, userID).Scan(&result.Likes)
	switch {
	case err == nil:
		result.Liked = true
		return result, nil
	case common.IsForeignKeyViolation(err, "post_likes_post_id_fkey"):
		return nil, ErrRecordNotFound
	case common.IsForeignKeyViolation(err, "post_likes_user_id_fkey"):
		return nil, ErrUserForeignKey
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	// already liked
	err = m.db.QueryRowContext(ctx, `SELECT likes FROM blog_posts WHERE id = $1`, postID).Scan(&result.Likes)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return result, nil
}

func (m *BlogModel) exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM blog_posts WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
