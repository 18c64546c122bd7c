package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/commentsync/internal/cache"
	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/events"
	"github.com/UkralStul/commentsync/internal/server"
	"github.com/UkralStul/commentsync/internal/storage"
	"github.com/UkralStul/commentsync/internal/storage/inmemory"
)

type testBackend struct {
	url   string
	store *inmemory.Store
	post  *domain.Post
}

func setupTestXDG(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)
}

func setupBackend(t *testing.T) *testBackend {
	t.Helper()
	setupTestXDG(t)
	t.Setenv("REDIS_URL", "")
	t.Setenv("COMMENTS_PAGE_SIZE", "")
	t.Setenv("COMMENTS_SERVER_URL", "")

	store := inmemory.New()
	post, err := store.CreatePost(context.Background(), &domain.Post{Title: "Race report", AuthorID: "1", CommentsEnabled: true})
	require.NoError(t, err)

	srv := httptest.NewServer(server.New(store, events.NewHub(), server.NewTokens("test", time.Hour), nil).Router())
	t.Cleanup(srv.Close)
	return &testBackend{url: srv.URL, store: store, post: post}
}

func (b *testBackend) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"commentctl", "--server", b.url}, args...)
	err := newApp(&out, &errOut).Run(context.Background(), full)
	return out.String(), errOut.String(), err
}

func (b *testBackend) roots(t *testing.T) []*domain.Comment {
	t.Helper()
	roots, _, err := b.store.GetCommentsByPostID(context.Background(), b.post.ID, storage.PageArgs{Page: 1, PageSize: 100})
	require.NoError(t, err)
	return roots
}

var idPattern = regexp.MustCompile(`\[([0-9a-f-]{36})\]`)

func TestCommentHelp(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out, &out).Run(context.Background(), []string{"commentctl", "comment"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "get")
	assert.Contains(t, out.String(), "watch")
}

func TestCommentLifecycle(t *testing.T) {
	b := setupBackend(t)

	out, _, err := b.run(t, "account", "login", "--user", "7", "--name", "Alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Alice (7)")

	out, _, err = b.run(t, "account", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "User:   7")
	assert.Contains(t, out, "Server: "+b.url)

	out, _, err = b.run(t, "comment", "add", b.post.ID, "Great", "race!")
	require.NoError(t, err)
	assert.Contains(t, out, "Comment posted")
	match := idPattern.FindStringSubmatch(out)
	require.Len(t, match, 2)
	rootID := match[1]

	out, _, err = b.run(t, "comment", "add", "--reply-to", rootID, b.post.ID, "thanks")
	require.NoError(t, err)
	match = idPattern.FindStringSubmatch(out)
	require.Len(t, match, 2)
	replyID := match[1]

	out, _, err = b.run(t, "comment", "get", b.post.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Great race!")
	assert.Contains(t, out, "... 1 more reply")

	out, _, err = b.run(t, "comment", "replies", b.post.ID, rootID)
	require.NoError(t, err)
	assert.Contains(t, out, "  ["+replyID+"] Alice")

	// ответ находится, даже если ответы родителя еще не загружены
	out, _, err = b.run(t, "comment", "like", b.post.ID, replyID)
	require.NoError(t, err)
	assert.Contains(t, out, "Liked")

	_, _, err = b.run(t, "comment", "edit", b.post.ID, rootID, "Great", "race,", "again")
	require.NoError(t, err)
	root, err := b.store.GetCommentByID(context.Background(), rootID)
	require.NoError(t, err)
	assert.Equal(t, "Great race, again", root.Content)

	out, _, err = b.run(t, "comment", "delete", b.post.ID, rootID)
	require.NoError(t, err)
	assert.Contains(t, out, "Comment deleted")
	assert.Empty(t, b.roots(t))

	out, _, err = b.run(t, "comment", "get", b.post.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "No comments found.")

	out, _, err = b.run(t, "account", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
}

func TestCommentAdd_NotLoggedIn(t *testing.T) {
	b := setupBackend(t)

	_, errOut, err := b.run(t, "comment", "add", b.post.ID, "hello")
	require.ErrorIs(t, err, errReported)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Contains(t, errOut, "error: Please log in first")
	assert.Empty(t, b.roots(t))
}

func TestCommentEdit_ForeignComment(t *testing.T) {
	b := setupBackend(t)
	foreign, err := b.store.CreateComment(context.Background(), &domain.Comment{PostID: b.post.ID, AuthorID: "8", Content: "mine"})
	require.NoError(t, err)

	_, _, err = b.run(t, "account", "login", "--user", "7")
	require.NoError(t, err)

	_, errOut, err := b.run(t, "comment", "edit", b.post.ID, foreign.ID, "yours now")
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Contains(t, errOut, "You can only change your own comments")
}

func TestCommentGet_UnknownComment(t *testing.T) {
	b := setupBackend(t)
	_, _, err := b.run(t, "account", "login", "--user", "7")
	require.NoError(t, err)

	_, _, err = b.run(t, "comment", "delete", b.post.ID, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, errReported)
}

func TestCommentGet_JSON(t *testing.T) {
	b := setupBackend(t)
	_, err := b.store.CreateComment(context.Background(), &domain.Comment{PostID: b.post.ID, AuthorID: "8", AuthorDisplayName: "Bob", Content: "hi"})
	require.NoError(t, err)

	out, _, err := b.run(t, "comment", "get", "--json", b.post.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"authorDisplayName": "Bob"`)
	assert.Contains(t, out, `"content": "hi"`)
}

func TestCommentMore_UsesRedisCache(t *testing.T) {
	b := setupBackend(t)
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("COMMENTS_PAGE_SIZE", "2")

	for _, text := range []string{"one", "two", "three"} {
		_, err := b.store.CreateComment(context.Background(), &domain.Comment{PostID: b.post.ID, AuthorID: "8", Content: text})
		require.NoError(t, err)
	}

	out, _, err := b.run(t, "comment", "get", b.post.ID)
	require.NoError(t, err)
	assert.NotContains(t, out, "one")
	assert.True(t, mr.Exists(cache.PostCommentsKey(b.post.ID)))

	out, _, err = b.run(t, "comment", "more", b.post.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "three")
	assert.Contains(t, out, "one")

	out, _, err = b.run(t, "comment", "more", b.post.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "No more comments.")
}

func TestPostList(t *testing.T) {
	b := setupBackend(t)

	out, _, err := b.run(t, "post", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "["+b.post.ID+"] Race report")
}
