package domain

import (
	"slices"
	"time"
)

// Post представляет пост в системе.
type Post struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	AuthorID        string    `json:"authorId"`
	CommentsEnabled bool      `json:"commentsEnabled"`
	CreatedAt       time.Time `json:"createdAt"`
}

// User - автор комментариев и лайков.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Comment представляет комментарий или ответ на комментарий.
// Replies заполняется лениво, ReplyCount - количество ответов по данным сервера.
type Comment struct {
	ID                string    `json:"id"`
	PostID            string    `json:"postId"`
	ParentID          *string   `json:"parentId,omitempty"`
	AuthorID          string    `json:"authorId"`
	AuthorDisplayName string    `json:"authorDisplayName"`
	Content           string    `json:"content"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	LikedBy           []string  `json:"likedBy"`
	Replies           []Comment `json:"replies,omitempty"`
	ReplyCount        int       `json:"replyCount"`
}

// IsRoot сообщает, является ли комментарий корневым.
func (c Comment) IsRoot() bool {
	return c.ParentID == nil
}

func (c Comment) LikeCount() int {
	return len(c.LikedBy)
}

// IsLikedBy - единственный источник истины о лайке пользователя.
func (c Comment) IsLikedBy(userID string) bool {
	return slices.Contains(c.LikedBy, userID)
}

// HasMoreReplies сообщает, что загружены не все ответы.
func (c Comment) HasMoreReplies() bool {
	return len(c.Replies) < c.ReplyCount
}

// Page - страница комментариев в ответе сервера.
type Page struct {
	Items        []Comment `json:"items"`
	CurrentPage  int       `json:"currentPage"`
	TotalPages   int       `json:"totalPages"`
	TotalItems   int       `json:"totalItems"`
	ItemsPerPage int       `json:"itemsPerPage"`
}

func (p Page) HasMore() bool {
	return p.CurrentPage < p.TotalPages
}

// TotalPagesFor считает количество страниц для total элементов.
func TotalPagesFor(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
