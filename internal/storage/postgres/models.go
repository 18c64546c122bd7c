package postgres

import (
	"time"

	"github.com/UkralStul/commentsync/internal/domain"
)

type postRow struct {
	ID              string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Title           string
	Content         string
	AuthorID        string `gorm:"index"`
	CommentsEnabled bool
	CreatedAt       time.Time `gorm:"index"`
}

func (postRow) TableName() string { return "posts" }

type commentRow struct {
	ID                string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PostID            string  `gorm:"type:uuid;index;not null"`
	ParentID          *string `gorm:"type:uuid;index"`
	AuthorID          string  `gorm:"not null"`
	AuthorDisplayName string
	Content           string    `gorm:"size:2000;not null"`
	CreatedAt         time.Time `gorm:"index"`
	UpdatedAt         time.Time
}

func (commentRow) TableName() string { return "comments" }

type likeRow struct {
	CommentID string `gorm:"primaryKey;type:uuid"`
	UserID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (likeRow) TableName() string { return "comment_likes" }

func postFromDomain(p *domain.Post) postRow {
	return postRow{
		ID:              p.ID,
		Title:           p.Title,
		Content:         p.Content,
		AuthorID:        p.AuthorID,
		CommentsEnabled: p.CommentsEnabled,
		CreatedAt:       p.CreatedAt,
	}
}

func (r postRow) toDomain() *domain.Post {
	return &domain.Post{
		ID:              r.ID,
		Title:           r.Title,
		Content:         r.Content,
		AuthorID:        r.AuthorID,
		CommentsEnabled: r.CommentsEnabled,
		CreatedAt:       r.CreatedAt,
	}
}

func commentFromDomain(c *domain.Comment) commentRow {
	return commentRow{
		ID:                c.ID,
		PostID:            c.PostID,
		ParentID:          c.ParentID,
		AuthorID:          c.AuthorID,
		AuthorDisplayName: c.AuthorDisplayName,
		Content:           c.Content,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func (r commentRow) toDomain() *domain.Comment {
	return &domain.Comment{
		ID:                r.ID,
		PostID:            r.PostID,
		ParentID:          r.ParentID,
		AuthorID:          r.AuthorID,
		AuthorDisplayName: r.AuthorDisplayName,
		Content:           r.Content,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func commentsToDomain(rows []commentRow) []*domain.Comment {
	out := make([]*domain.Comment, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
