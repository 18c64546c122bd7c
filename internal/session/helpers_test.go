package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/UkralStul/commentsync/internal/domain"
)

// fakeTransport отдает заранее заданное дерево и записывает вызовы.
// Если hold включен, мутации ждут release, предварительно сообщив в entered.
type fakeTransport struct {
	mu      sync.Mutex
	roots   []domain.Comment
	replies map[string][]domain.Comment
	calls   map[string]int
	err     map[string]error
	liked   map[string]bool

	entered chan string
	release chan struct{}
	nextID  string
}

func newFakeTransport() *fakeTransport {
	parent := "1"
	return &fakeTransport{
		roots: []domain.Comment{
			{ID: "1", PostID: "42", AuthorID: "7", Content: "old", ReplyCount: 1},
			{ID: "3", PostID: "42", AuthorID: "8", Content: "other", LikedBy: []string{"8"}, ReplyCount: 2},
		},
		replies: map[string][]domain.Comment{
			"1": {{ID: "2", PostID: "42", ParentID: &parent, AuthorID: "8", Content: "reply"}},
		},
		calls:  map[string]int{},
		err:    map[string]error{},
		liked:  map[string]bool{},
		nextID: "999",
	}
}

// hold заставляет следующие мутации ждать вызова возвращенной функции.
func (f *fakeTransport) hold() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = make(chan string, 4)
	f.release = make(chan struct{})
	release := f.release
	return func() { close(release) }
}

func (f *fakeTransport) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	entered, release, err := f.entered, f.release, f.err[op]
	f.mu.Unlock()

	if entered != nil {
		entered <- op
		<-release
	}
	return err
}

func (f *fakeTransport) failWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err[op] = err
}

func (f *fakeTransport) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeTransport) waitEntered(t *testing.T, op string) {
	t.Helper()
	select {
	case got := <-f.entered:
		require.Equal(t, op, got)
	case <-time.After(time.Second):
		t.Fatalf("%s was not called", op)
	}
}

func (f *fakeTransport) ListRoots(ctx context.Context, postID string, page, pageSize int) (domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["listRoots"]++
	if err := f.err["listRoots"]; err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Items: f.roots, CurrentPage: 1, TotalPages: 1, TotalItems: len(f.roots), ItemsPerPage: pageSize}, nil
}

func (f *fakeTransport) ListReplies(ctx context.Context, parentID string, page, pageSize int) (domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["listReplies"]++
	items := f.replies[parentID]
	return domain.Page{Items: items, CurrentPage: 1, TotalPages: 1, TotalItems: len(items), ItemsPerPage: pageSize}, nil
}

func (f *fakeTransport) Create(ctx context.Context, postID, authorID, content string, parentID *string) (domain.Comment, error) {
	if err := f.enter("create"); err != nil {
		return domain.Comment{}, err
	}
	return domain.Comment{ID: f.nextID, PostID: postID, ParentID: parentID, AuthorID: authorID, Content: content,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeTransport) Update(ctx context.Context, commentID, authorID, content string) (domain.Comment, error) {
	if err := f.enter("update"); err != nil {
		return domain.Comment{}, err
	}
	return domain.Comment{ID: commentID, AuthorID: authorID, Content: content,
		UpdatedAt: time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeTransport) Remove(ctx context.Context, commentID, authorID string) error {
	return f.enter("remove")
}

func (f *fakeTransport) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	if err := f.enter("like"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liked[commentID] = !f.liked[commentID]
	return f.liked[commentID], nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	errors    []string
	successes []string
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors), len(n.successes)
}

type staticUser struct {
	user domain.User
	err  error
}

func (u staticUser) CurrentUser(context.Context) (domain.User, error) {
	return u.user, u.err
}

var alice = staticUser{user: domain.User{ID: "7", DisplayName: "Alice"}}

// openSession открывает пост 42 и раскрывает ответы комментария 1.
func openSession(t *testing.T, opts ...Option) (*Session, *fakeTransport, *recordingNotifier) {
	t.Helper()
	ft := newFakeTransport()
	notifier := &recordingNotifier{}
	s := NewSession(ft, alice, notifier, opts...)

	ctx := context.Background()
	require.NoError(t, s.LoadComments(ctx, "42"))
	_, err := s.ExpandReplies(ctx, "1")
	require.NoError(t, err)
	return s, ft, notifier
}

func ptr(s string) *string {
	return &s
}
