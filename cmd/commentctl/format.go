package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/UkralStul/commentsync/internal/domain"
)

// FormatText пишет дерево комментариев с отступом по глубине:
//
//	[id] Alice (2025-01-15T10:00:00Z) [2 likes]
//	  text
//	  ... 3 more replies
func FormatText(w io.Writer, comments []domain.Comment) {
	if len(comments) == 0 {
		fmt.Fprint(w, "No comments found.\n")
		return
	}

	for i, comment := range comments {
		formatComment(w, comment, 0)
		if i < len(comments)-1 {
			fmt.Fprintln(w)
		}
	}
}

func formatComment(w io.Writer, comment domain.Comment, depth int) {
	indent := strings.Repeat(" ", depth*2)

	author := comment.AuthorDisplayName
	if author == "" {
		author = "user " + comment.AuthorID
	}
	header := fmt.Sprintf("%s[%s] %s (%s)", indent, comment.ID, author, comment.CreatedAt.UTC().Format(time.RFC3339))
	if comment.UpdatedAt.After(comment.CreatedAt) {
		header += " (edited)"
	}
	switch n := comment.LikeCount(); n {
	case 0:
	case 1:
		header += " [1 like]"
	default:
		header += fmt.Sprintf(" [%d likes]", n)
	}
	fmt.Fprintln(w, header)

	textIndent := strings.Repeat(" ", depth*2+2)
	fmt.Fprintf(w, "%s%s\n", textIndent, comment.Content)

	for _, reply := range comment.Replies {
		formatComment(w, reply, depth+1)
	}
	if rest := comment.ReplyCount - len(comment.Replies); rest > 0 {
		fmt.Fprintf(w, "%s... %d more %s\n", textIndent, rest, plural(rest, "reply", "replies"))
	}
}

// FormatJSON пишет дерево массивом JSON. Пустое дерево - "[]".
func FormatJSON(w io.Writer, comments []domain.Comment) error {
	if len(comments) == 0 {
		_, err := fmt.Fprint(w, "[]\n")
		return err
	}

	data, err := json.MarshalIndent(comments, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
