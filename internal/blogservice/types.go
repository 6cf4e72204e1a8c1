package blogservice

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/sushihentaime/emerald/internal/common"
)

type Post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	// Content is stored in Markdown format.
	Content     string    `json:"content"`
	ContentHTML string    `json:"content_html"`
	ImageURL    string    `json:"image_url"`
	AudioURL    string    `json:"audio_url"`
	Likes       int       `json:"likes"`
	LikedBy     []int64   `json:"liked_by"`
	AuthorID    *int      `json:"author_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

type Comment struct {
	ID        int       `json:"id"`
	PostID    int       `json:"post_id"`
	UserID    *int      `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PostInput carries the editable fields of a post.
type PostInput struct {
	Title    string
	Content  string
	ImageURL string
	AudioURL string
}

type LikeResult struct {
	PostID int  `json:"post_id"`
	Likes  int  `json:"likes"`
	Liked  bool `json:"liked"`
}

type EventType string

const (
	EventPostCreated    EventType = "post.created"
	EventPostUpdated    EventType = "post.updated"
	EventPostDeleted    EventType = "post.deleted"
	EventPostLiked      EventType = "post.liked"
	EventCommentCreated EventType = "comment.created"
)

// Event is published on the blog exchange after every successful mutation.
type Event struct {
	Type    EventType `json:"type"`
	PostID  int       `json:"post_id"`
	Post    *Post     `json:"post,omitempty"`
	Comment *Comment  `json:"comment,omitempty"`
	Likes   *int      `json:"likes,omitempty"`
}

type BlogModel struct {
	db *sql.DB
}

type BlogService struct {
	m      *BlogModel
	c      common.Cache
	mb     common.MessageProducer
	logger *slog.Logger

	// mu guards generations, which counts invalidations per post id.
	mu          sync.Mutex
	generations map[int]uint64
}
