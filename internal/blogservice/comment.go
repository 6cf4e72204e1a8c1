package blogservice

import (
	"context"

	"github.com/sushihentaime/emerald/internal/common"
)

func (m *BlogModel) insertComment(ctx context.Context, c *Comment) error {
	query := `
		INSERT INTO comments (post_id, user_id, username, text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := m.db.QueryRowContext(ctx, query, c.PostID, c.UserID, c.Username, c.Text).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		switch {
		case common.IsForeignKeyViolation(err, "comments_post_id_fkey"):
			return ErrRecordNotFound
		case common.IsForeignKeyViolation(err, "comments_user_id_fkey"):
			return ErrUserForeignKey
		default:
			return err
		}
	}

	return nil
}

// listComments returns a post's comments oldest first.
func (m *BlogModel) listComments(ctx context.Context, postID int) ([]*Comment, error) {
	query := `
		SELECT id, post_id, user_id, username, text, created_at
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := m.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []*Comment{}
	for rows.Next() {
		var c Comment
		err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Username, &c.Text, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}
