package blogservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sushihentaime/emerald/internal/common"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	postCacheTTL = 5 * time.Minute
)

func NewBlogService(db *sql.DB, c common.Cache, mb common.MessageProducer, logger *slog.Logger) *BlogService {
	return &BlogService{m: newBlogModel(db), c: c, mb: mb, logger: logger, generations: make(map[int]uint64)}
}

// PostUpdate holds the fields an admin may change. Nil fields are left as they are.
// When Version is set it must match the stored version.
type PostUpdate struct {
	Title    *string
	Content  *string
	ImageURL *string
	AudioURL *string
	Version  *int
}

// CreatePost publishes a new post. Only admins reach this through the HTTP layer.
func (s *BlogService) CreatePost(ctx context.Context, in PostInput, authorID int) (*Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.AudioURL = strings.TrimSpace(in.AudioURL)

	v := common.NewValidator()
	validateTitle(v, in.Title)
	validateContent(v, in.Content)
	validateMediaURL(v, in.ImageURL, "image_url")
	validateMediaURL(v, in.AudioURL, "audio_url")
	validateInt(v, authorID, "author_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	p := &Post{
		Title:    in.Title,
		Slug:     Slugify(in.Title),
		Content:  in.Content,
		ImageURL: in.ImageURL,
		AudioURL: in.AudioURL,
		AuthorID: &authorID,
	}

	err := s.m.insert(ctx, p)
	if err != nil {
		return nil, err
	}

	p.ContentHTML = renderContent(p.Content)
	s.publish(ctx, Event{Type: EventPostCreated, PostID: p.ID, Post: p})

	return p, nil
}

// GetPost returns a post by id, reading through the cache.
func (s *BlogService) GetPost(ctx context.Context, id int) (*Post, error) {
	v := common.NewValidator()
	validateInt(v, id, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	var cached Post
	err := common.GetJSON(ctx, s.c, common.CacheKeyPost(id), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, common.ErrCacheMiss) {
		s.logger.Warn("post cache read failed", slog.Int("id", id), slog.String("error", err.Error()))
	}

	gen := s.generation(id)

	p, err := s.m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ContentHTML = renderContent(p.Content)

	s.fill(ctx, p, gen)

	return p, nil
}

// ListPosts returns posts newest first. A limit outside 1..MaxLimit falls back to DefaultLimit.
func (s *BlogService) ListPosts(ctx context.Context, limit, offset int) ([]*Post, error) {
	limit, offset = normalizePage(limit, offset)

	posts, err := s.m.list(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	return withHTML(posts), nil
}

// SearchPosts matches the query against post titles, ignoring case.
func (s *BlogService) SearchPosts(ctx context.Context, q string, limit, offset int) ([]*Post, error) {
	q = strings.TrimSpace(q)

	v := common.NewValidator()
	v.Check(q != "", "q", "must be provided")
	v.Check(v.CheckStringLength(q, 1, 200), "q", "must not be more than 200 characters long")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	limit, offset = normalizePage(limit, offset)

	posts, err := s.m.search(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}

	return withHTML(posts), nil
}

// UpdatePost applies the changes in upd to the post. A stale version returns ErrEditConflict.
func (s *BlogService) UpdatePost(ctx context.Context, id int, upd PostUpdate) (*Post, error) {
	v := common.NewValidator()
	validateInt(v, id, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	p, err := s.m.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Version != nil && *upd.Version != p.Version {
		return nil, ErrEditConflict
	}

	if upd.Title != nil {
		p.Title = strings.TrimSpace(*upd.Title)
		p.Slug = Slugify(p.Title)
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*upd.ImageURL)
	}
	if upd.AudioURL != nil {
		p.AudioURL = strings.TrimSpace(*upd.AudioURL)
	}

	validateTitle(v, p.Title)
	validateContent(v, p.Content)
	validateMediaURL(v, p.ImageURL, "image_url")
	validateMediaURL(v, p.AudioURL, "audio_url")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	err = s.m.update(ctx, p)
	if err != nil {
		return nil, err
	}

	p.ContentHTML = renderContent(p.Content)
	s.invalidate(ctx, id)
	s.publish(ctx, Event{Type: EventPostUpdated, PostID: p.ID, Post: p})

	return p, nil
}

// DeletePost removes the post together with its comments and likes.
func (s *BlogService) DeletePost(ctx context.Context, id int) error {
	v := common.NewValidator()
	validateInt(v, id, "id")
	if !v.Valid() {
		return v.ValidationError()
	}

	err := s.m.delete(ctx, id)
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.publish(ctx, Event{Type: EventPostDeleted, PostID: id})

	return nil
}

// LikePost records a like from the user. Liking the same post again is a no-op that
// reports Liked=false and the unchanged count.
func (s *BlogService) LikePost(ctx context.Context, postID, userID int) (*LikeResult, error) {
	v := common.NewValidator()
	validateInt(v, postID, "id")
	validateInt(v, userID, "user_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	res, err := s.m.like(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	if res.Liked {
		s.invalidate(ctx, postID)
		likes := res.Likes
		s.publish(ctx, Event{Type: EventPostLiked, PostID: postID, Likes: &likes})
	}

	return res, nil
}

// AddComment appends a comment to the post. An empty username is shown as "Anonymous".
func (s *BlogService) AddComment(ctx context.Context, postID, userID int, username, text string) (*Comment, error) {
	text = strings.TrimSpace(text)
	username = strings.TrimSpace(username)

	v := common.NewValidator()
	validateInt(v, postID, "id")
	validateInt(v, userID, "user_id")
	validateCommentText(v, text)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if username == "" {
		username = AnonymousName
	}

	c := &Comment{PostID: postID, UserID: &userID, Username: username, Text: text}

	err := s.m.insertComment(ctx, c)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, postID)
	s.publish(ctx, Event{Type: EventCommentCreated, PostID: postID, Comment: c})

	return c, nil
}

// ListComments returns the post's comments oldest first.
func (s *BlogService) ListComments(ctx context.Context, postID int) ([]*Comment, error) {
	v := common.NewValidator()
	validateInt(v, postID, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	ok, err := s.m.exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordNotFound
	}

	return s.m.listComments(ctx, postID)
}

// HandleEvent drops the cached copy of the post a blog event refers to. Every instance
// receives every event, including those for writes made elsewhere.
func (s *BlogService) HandleEvent(msg []byte) {
	var e Event
	err := json.Unmarshal(msg, &e)
	if err != nil {
		s.logger.Warn("could not decode blog event", slog.String("error", err.Error()))
		return
	}

	if e.Type == EventPostCreated || e.PostID <= 0 {
		return
	}

	s.invalidate(context.Background(), e.PostID)
}

func (s *BlogService) generation(id int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[id]
}

// fill caches p unless the post was invalidated after gen was taken, since p may predate that write.
func (s *BlogService) fill(ctx context.Context, p *Post, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations[p.ID] != gen {
		return
	}

	err := common.SetJSON(ctx, s.c, common.CacheKeyPost(p.ID), p, postCacheTTL)
	if err != nil {
		s.logger.Warn("post cache write failed", slog.Int("id", p.ID), slog.String("error", err.Error()))
	}
}

func (s *BlogService) invalidate(ctx context.Context, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generations[id]++

	err := s.c.Delete(ctx, common.CacheKeyPost(id))
	if err != nil {
		s.logger.Warn("post cache invalidation failed", slog.Int("id", id), slog.String("error", err.Error()))
	}
}

// publish is best effort; the write has already been committed.
func (s *BlogService) publish(ctx context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("could not encode blog event", slog.String("type", string(e.Type)), slog.String("error", err.Error()))
		return
	}

	err = s.mb.Publish(ctx, data, common.BlogEventKey, common.BlogExchange)
	if err != nil {
		s.logger.Error("could not publish blog event", slog.String("type", string(e.Type)), slog.Int("post_id", e.PostID), slog.String("error", err.Error()))
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit < 1 || limit > MaxLimit {
		limit = DefaultLimit
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

func withHTML(posts []*Post) []*Post {
	for _, p := range posts {
		p.ContentHTML = renderContent(p.Content)
	}
	return posts
}
