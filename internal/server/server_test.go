package server

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/commentsync/internal/auth"
	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/events"
	"github.com/UkralStul/commentsync/internal/session"
	"github.com/UkralStul/commentsync/internal/storage"
	"github.com/UkralStul/commentsync/internal/storage/inmemory"
	"github.com/UkralStul/commentsync/internal/transport"
	"github.com/UkralStul/commentsync/internal/tree"
)

type testEnv struct {
	srv      *httptest.Server
	store    *inmemory.Store
	hub      *events.Hub
	post     *domain.Post
	disabled *domain.Post
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := inmemory.New()

	post, err := store.CreatePost(ctx, &domain.Post{Title: "Race report", AuthorID: "1", CommentsEnabled: true})
	require.NoError(t, err)
	disabled, err := store.CreatePost(ctx, &domain.Post{Title: "Closed", AuthorID: "1"})
	require.NoError(t, err)

	hub := events.NewHub()
	srv := httptest.NewServer(New(store, hub, NewTokens("test-secret", time.Hour), nil).Router())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: store, hub: hub, post: post, disabled: disabled}
}

// login возвращает клиента и сессию пользователя userID.
func (e *testEnv) login(t *testing.T, userID, name string) (*transport.Client, *auth.Accessor) {
	t.Helper()
	resp, err := transport.NewClient(e.srv.URL).Login(context.Background(), userID, name)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	accessor := auth.StaticAccessor(&auth.Session{
		ServerURL:   e.srv.URL,
		UserID:      resp.User.ID,
		DisplayName: resp.User.DisplayName,
		Token:       resp.Token,
	})
	return transport.NewClient(e.srv.URL, transport.WithTokenSource(accessor)), accessor
}

func (e *testEnv) seed(t *testing.T, postID, authorID, content string, parentID *string) *domain.Comment {
	t.Helper()
	c, err := e.store.CreateComment(context.Background(), &domain.Comment{
		PostID: postID, ParentID: parentID, AuthorID: authorID, Content: content,
	})
	require.NoError(t, err)
	return c
}

type nopNotifier struct {
	mu     sync.Mutex
	errors []string
}

func (n *nopNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *nopNotifier) Success(string) {}

func TestServer_SessionEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.seed(t, env.post.ID, "8", "first!", nil)
	env.seed(t, env.post.ID, "8", "reply to first", &first.ID)

	client, accessor := env.login(t, "7", "Alice")
	notifier := &nopNotifier{}
	s := session.NewSession(client, accessor, notifier)
	require.NoError(t, s.LoadComments(ctx, env.post.ID))

	roots := s.Comments()
	require.Len(t, roots, 1)
	assert.Equal(t, 1, roots[0].ReplyCount)

	_, err := s.ExpandReplies(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, s.Comments()[0].Replies, 1)

	created, err := s.AddComment(ctx, "  my take  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "my take", created.Content)
	assert.Equal(t, "Alice", created.AuthorDisplayName)
	require.Len(t, s.Comments(), 2)
	assert.Equal(t, created.ID, s.Comments()[0].ID)

	reply, err := s.AddComment(ctx, "answering myself", &created.ID)
	require.NoError(t, err)
	parent, ok := tree.Find(s.Comments(), created.ID)
	require.True(t, ok)
	assert.Equal(t, 1, parent.ReplyCount)
	assert.Equal(t, reply.ID, parent.Replies[0].ID)

	edited, err := s.EditComment(ctx, created.ID, "my better take")
	require.NoError(t, err)
	assert.Equal(t, "my better take", edited.Content)
	stored, err := env.store.GetCommentByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "my better take", stored.Content)

	liked, err := s.ToggleLike(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	c, _ := tree.Find(s.Comments(), first.ID)
	assert.True(t, c.IsLikedBy("7"))

	liked, err = s.ToggleLike(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	require.NoError(t, s.DeleteComment(ctx, created.ID))
	assert.False(t, tree.Contains(s.Comments(), reply.ID))
	_, err = env.store.GetCommentByID(ctx, reply.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// после перезагрузки дерево совпадает с сервером
	require.NoError(t, s.Refresh(ctx))
	require.Len(t, s.Comments(), 1)
	assert.Equal(t, first.ID, s.Comments()[0].ID)
	assert.Empty(t, notifier.errors)
}

func TestServer_Pagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	var last *domain.Comment
	for i := 0; i < 12; i++ {
		last = env.seed(t, env.post.ID, "8", fmt.Sprintf("comment %d", i), nil)
	}
	for i := 0; i < 3; i++ {
		env.seed(t, env.post.ID, "9", fmt.Sprintf("reply %d", i), &last.ID)
	}

	client := transport.NewClient(env.srv.URL)
	page, err := client.ListRoots(ctx, env.post.ID, 1, 5)
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 12, page.TotalItems)
	assert.True(t, page.HasMore())
	assert.Equal(t, last.ID, page.Items[0].ID)
	assert.Equal(t, 3, page.Items[0].ReplyCount)

	page, err = client.ListRoots(ctx, env.post.ID, 3, 5)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasMore())

	replies, err := client.ListReplies(ctx, last.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, replies.Items, 2)
	assert.Equal(t, "reply 0", replies.Items[0].Content)
	assert.Equal(t, 2, replies.TotalPages)
}

func TestServer_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	foreign := env.seed(t, env.post.ID, "8", "not yours", nil)
	client, _ := env.login(t, "7", "Alice")

	tests := []struct {
		name   string
		call   func() error
		status int
		kind   error
	}{
		{
			name: "empty content",
			call: func() error {
				_, err := client.Create(ctx, env.post.ID, "7", "   ", nil)
				return err
			},
			status: http.StatusBadRequest,
			kind:   domain.ErrValidation,
		},
		{
			name: "comments disabled",
			call: func() error {
				_, err := client.Create(ctx, env.disabled.ID, "7", "hello", nil)
				return err
			},
			status: http.StatusUnprocessableEntity,
			kind:   domain.ErrValidation,
		},
		{
			name: "author mismatch",
			call: func() error {
				_, err := client.Create(ctx, env.post.ID, "8", "hello", nil)
				return err
			},
			status: http.StatusForbidden,
			kind:   domain.ErrForbidden,
		},
		{
			name: "edit foreign comment",
			call: func() error {
				_, err := client.Update(ctx, foreign.ID, "7", "mine now")
				return err
			},
			status: http.StatusForbidden,
			kind:   domain.ErrForbidden,
		},
		{
			name:   "delete foreign comment",
			call:   func() error { return client.Remove(ctx, foreign.ID, "7") },
			status: http.StatusForbidden,
			kind:   domain.ErrForbidden,
		},
		{
			name:   "delete missing comment",
			call:   func() error { return client.Remove(ctx, "missing", "7") },
			status: http.StatusNotFound,
			kind:   domain.ErrNotFound,
		},
		{
			name: "replies of missing comment",
			call: func() error {
				_, err := client.ListReplies(ctx, "missing", 1, 5)
				return err
			},
			status: http.StatusNotFound,
			kind:   domain.ErrNotFound,
		},
		{
			name: "comments of missing post",
			call: func() error {
				_, err := client.ListRoots(ctx, "missing", 1, 5)
				return err
			},
			status: http.StatusNotFound,
			kind:   domain.ErrNotFound,
		},
		{
			name: "like without token",
			call: func() error {
				_, err := transport.NewClient(env.srv.URL).ToggleLike(ctx, foreign.ID, "7")
				return err
			},
			status: http.StatusUnauthorized,
			kind:   domain.ErrForbidden,
		},
		{
			name: "bad page",
			call: func() error {
				_, err := client.ListRoots(ctx, env.post.ID, 0, 5)
				return err
			},
			status: http.StatusBadRequest,
			kind:   domain.ErrValidation,
		},
		{
			name: "page beyond limit",
			call: func() error {
				_, err := client.ListRoots(ctx, env.post.ID, math.MaxInt/2, 5)
				return err
			},
			status: http.StatusBadRequest,
			kind:   domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.status, transport.StatusOf(err))
		})
	}
}

func TestServer_LoginRequiresUserID(t *testing.T) {
	env := newTestEnv(t)

	_, err := transport.NewClient(env.srv.URL).Login(context.Background(), "", "nobody")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestServer_Posts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client, accessor := env.login(t, "1", "Owner")

	posts, err := client.ListPosts(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.ElementsMatch(t, []string{env.post.ID, env.disabled.ID}, []string{posts[0].ID, posts[1].ID})

	token, err := accessor.Token(ctx)
	require.NoError(t, err)

	toggle := func(t *testing.T, token string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodPut, env.srv.URL+"/posts/"+env.disabled.ID+"/comments-enabled",
			bytes.NewBufferString(`{"enabled":true}`))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	_, otherAccessor := env.login(t, "7", "Alice")
	otherToken, err := otherAccessor.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, toggle(t, otherToken).StatusCode)

	assert.Equal(t, http.StatusOK, toggle(t, token).StatusCode)
	post, err := env.store.GetPostByID(ctx, env.disabled.ID)
	require.NoError(t, err)
	assert.True(t, post.CommentsEnabled)
}

func TestServer_StreamDeliversEventsToSession(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	first := env.seed(t, env.post.ID, "8", "first!", nil)

	watcher := session.NewSession(transport.NewClient(env.srv.URL), auth.StaticAccessor(nil), &nopNotifier{})
	require.NoError(t, watcher.LoadComments(ctx, env.post.ID))

	stream, err := events.Dial(ctx, env.srv.URL, env.post.ID, "")
	require.NoError(t, err)
	defer stream.Close()
	require.Eventually(t, func() bool { return env.hub.Subscribers(env.post.ID) == 1 },
		time.Second, 5*time.Millisecond)

	client, _ := env.login(t, "7", "Alice")
	created, err := client.Create(ctx, env.post.ID, "7", "live!", nil)
	require.NoError(t, err)
	_, err = client.ToggleLike(ctx, first.ID, "7")
	require.NoError(t, err)

	for _, want := range []events.Kind{events.KindCreated, events.KindLiked} {
		select {
		case ev := <-stream.Events():
			require.Equal(t, want, ev.Kind)
			assert.True(t, watcher.ApplyEvent(ev))
		case <-ctx.Done():
			t.Fatalf("no %s event", want)
		}
	}

	roots := watcher.Comments()
	require.Len(t, roots, 2)
	assert.Equal(t, created.ID, roots[0].ID)
	assert.Equal(t, []string{"7"}, roots[1].LikedBy)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(fmt.Errorf("create: %w", storage.ErrCommentsDisabled)))
	assert.Equal(t, http.StatusUnauthorized, statusFor(errNotAuthorized))
	assert.Equal(t, http.StatusForbidden, statusFor(errAuthorMismatch))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}
