package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/UkralStul/commentsync/internal/domain"
)

func TestCommentRowRoundTrip(t *testing.T) {
	parent := "11111111-1111-1111-1111-111111111111"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := &domain.Comment{
		ID:                "22222222-2222-2222-2222-222222222222",
		PostID:            "33333333-3333-3333-3333-333333333333",
		ParentID:          &parent,
		AuthorID:          "7",
		AuthorDisplayName: "Alice",
		Content:           "hello",
		CreatedAt:         now,
		UpdatedAt:         now.Add(time.Minute),
		LikedBy:           []string{"8"},
		ReplyCount:        3,
	}

	got := commentFromDomain(c).toDomain()

	// лайки и счетчик ответов хранятся отдельно от строки комментария
	want := *c
	want.LikedBy = nil
	want.ReplyCount = 0
	assert.Equal(t, &want, got)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "posts", postRow{}.TableName())
	assert.Equal(t, "comments", commentRow{}.TableName())
	assert.Equal(t, "comment_likes", likeRow{}.TableName())
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound("post", "1", gorm.ErrRecordNotFound), domain.ErrNotFound)
	assert.ErrorIs(t, notFound("post", "1", gorm.ErrInvalidDB), gorm.ErrInvalidDB)
}
