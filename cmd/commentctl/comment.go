package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/events"
	"github.com/UkralStul/commentsync/internal/session"
	"github.com/UkralStul/commentsync/internal/tree"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output as JSON"}
}

// commentCommand - группа команд для комментариев поста.
func commentCommand() *cli.Command {
	return &cli.Command{
		Name:  "comment",
		Usage: "View or manage comments on a post",
		Description: `Reading comments does not require login. Writing requires a session
(run: commentctl account login --user <id>).

Examples:
  commentctl comment get 42                   First page of comments
  commentctl comment more 42                  Next page (uses the cache when REDIS_URL is set)
  commentctl comment add 42 "Great race!"     Post a comment
  commentctl comment add --reply-to 17 42 "+1"`,
		Action: fallbackAction,
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show the first page of comments",
				ArgsUsage: "<post-id>",
				Flags: []cli.Flag{
					jsonFlag(),
					&cli.BoolFlag{Name: "expand", Usage: "Load the first page of replies of every comment"},
				},
				Action: runCommentGet,
			},
			{
				Name:      "more",
				Usage:     "Load the next page of root comments",
				ArgsUsage: "<post-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    runCommentMore,
			},
			{
				Name:      "replies",
				Usage:     "Load replies of a comment",
				ArgsUsage: "<post-id> <comment-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    runCommentReplies,
			},
			{
				Name:      "add",
				Usage:     "Add a comment (requires login)",
				ArgsUsage: "<post-id> <text>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reply-to", Usage: "Id of the comment to reply to"},
				},
				Action: runCommentAdd,
			},
			{
				Name:      "edit",
				Usage:     "Edit your comment (requires login)",
				ArgsUsage: "<post-id> <comment-id> <text>",
				Action:    runCommentEdit,
			},
			{
				Name:      "delete",
				Usage:     "Delete your comment and its replies (requires login)",
				ArgsUsage: "<post-id> <comment-id>",
				Action:    runCommentDelete,
			},
			{
				Name:      "like",
				Usage:     "Like or unlike a comment (requires login)",
				ArgsUsage: "<post-id> <comment-id>",
				Action:    runCommentLike,
			},
			{
				Name:      "watch",
				Usage:     "Print comments and follow live changes until interrupted",
				ArgsUsage: "<post-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    runCommentWatch,
			},
		},
	}
}

func runCommentGet(ctx context.Context, cmd *cli.Command) error {
	postID := cmd.Args().First()
	if postID == "" {
		return fmt.Errorf("usage: commentctl comment get <post-id>")
	}

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	s, err := e.openPost(ctx, cmd, postID)
	if err != nil {
		return err
	}
	defer e.closeSession(ctx, s)

	if cmd.Bool("expand") {
		for _, c := range s.Comments() {
			if c.ReplyCount == 0 {
				continue
			}
			if _, err := s.ExpandReplies(ctx, c.ID); err != nil {
				return reported(err)
			}
		}
	}
	return printTree(cmd, s.Comments())
}

func runCommentMore(ctx context.Context, cmd *cli.Command) error {
	postID := cmd.Args().First()
	if postID == "" {
		return fmt.Errorf("usage: commentctl comment more <post-id>")
	}

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	s, err := e.openPost(ctx, cmd, postID)
	if err != nil {
		return err
	}
	defer e.closeSession(ctx, s)

	loaded, err := s.LoadMoreRootComments(ctx)
	if err != nil {
		return reported(err)
	}
	if !loaded && !cmd.Bool("json") {
		fmt.Fprintln(cmd.Root().Writer, "No more comments.")
	}
	return printTree(cmd, s.Comments())
}

func runCommentReplies(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("usage: commentctl comment replies <post-id> <comment-id>")
	}
	postID, id := cmd.Args().Get(0), cmd.Args().Get(1)

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	s, err := e.openPost(ctx, cmd, postID)
	if err != nil {
		return err
	}
	defer e.closeSession(ctx, s)

	if err := locate(ctx, s, id); err != nil {
		return err
	}
	if _, err := s.ExpandReplies(ctx, id); err != nil {
		return reported(err)
	}

	c, _ := tree.Find(s.Comments(), id)
	return printTree(cmd, []domain.Comment{c})
}

func runCommentAdd(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("usage: commentctl comment add [--reply-to <comment-id>] <post-id> <text>")
	}
	postID := cmd.Args().First()
	text := strings.Join(cmd.Args().Slice()[1:], " ")

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	s, err := e.openPost(ctx, cmd, postID)
	if err != nil {
		return err
	}
	defer e.closeSession(ctx, s)

	var parentID *string
	if replyTo := cmd.String("reply-to"); replyTo != "" {
		if err := locate(ctx, s, replyTo); err != nil {
			return err
		}
		parentID = &replyTo
	}

	created, err := s.AddComment(ctx, text, parentID)
	if err != nil {
		return reported(err)
	}
	fmt.Fprintf(cmd.Root().Writer, "[%s]\n", created.ID)
	return nil
}

func runCommentEdit(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 3 {
		return fmt.Errorf("usage: commentctl comment edit <post-id> <comment-id> <text>")
	}
	postID, id := cmd.Args().Get(0), cmd.Args().Get(1)
	text := strings.Join(cmd.Args().Slice()[2:], " ")

	return withComment(ctx, cmd, postID, id, func(s *session.Session) error {
		_, err := s.EditComment(ctx, id, text)
		return err
	})
}

func runCommentDelete(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("usage: commentctl comment delete <post-id> <comment-id>")
	}
	postID, id := cmd.Args().Get(0), cmd.Args().Get(1)

	return withComment(ctx, cmd, postID, id, func(s *session.Session) error {
		return s.DeleteComment(ctx, id)
	})
}

func runCommentLike(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("usage: commentctl comment like <post-id> <comment-id>")
	}
	postID, id := cmd.Args().Get(0), cmd.Args().Get(1)

	return withComment(ctx, cmd, postID, id, func(s *session.Session) error {
		liked, err := s.ToggleLike(ctx, id)
		if err != nil {
			return err
		}
		if liked {
			fmt.Fprintln(cmd.Root().Writer, "Liked")
		} else {
			fmt.Fprintln(cmd.Root().Writer, "Unliked")
		}
		return nil
	})
}

// withComment открывает пост, находит комментарий id и выполняет над ним fn.
func withComment(ctx context.Context, cmd *cli.Command, postID, id string, fn func(*session.Session) error) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	s, err := e.openPost(ctx, cmd, postID)
	if err != nil {
		return err
	}
	defer e.closeSession(ctx, s)

	if err := locate(ctx, s, id); err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return reported(err)
	}
	return nil
}

func runCommentWatch(ctx context.Context, cmd *cli.Command) error {
	postID := cmd.Args().First()
	if postID == "" {
		return fmt.Errorf("usage: commentctl comment watch <post-id>")
	}

	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	s, err := e.openPost(ctx, cmd, postID)
	if err != nil {
		return err
	}
	defer e.closeSession(ctx, s)

	token, err := e.users.Token(ctx)
	if err != nil {
		return err
	}
	stream, err := events.Dial(ctx, e.cfg.ServerURL, postID, token)
	if err != nil {
		return err
	}
	defer stream.Close()

	w := cmd.Root().Writer
	if !cmd.Bool("json") {
		FormatText(w, s.Comments())
		fmt.Fprintln(w, "--- watching for changes (Ctrl+C to stop) ---")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-stream.Events():
			if !ok {
				if err := stream.Err(); err != nil {
					return fmt.Errorf("comment stream closed: %w", err)
				}
				return nil
			}
			if !s.ApplyEvent(ev) {
				continue
			}
			if err := printEvent(w, ev, cmd.Bool("json")); err != nil {
				return err
			}
		}
	}
}

func printEvent(w io.Writer, ev events.Event, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(ev)
	}
	c := ev.Comment
	switch ev.Kind {
	case events.KindDeleted:
		_, err := fmt.Fprintf(w, "deleted [%s]\n", c.ID)
		return err
	case events.KindLiked:
		_, err := fmt.Fprintf(w, "liked [%s] %d %s\n", c.ID, c.LikeCount(), plural(c.LikeCount(), "like", "likes"))
		return err
	default:
		_, err := fmt.Fprintf(w, "%s [%s] %s: %s\n", ev.Kind, c.ID, c.AuthorDisplayName, c.Content)
		return err
	}
}

func printTree(cmd *cli.Command, comments []domain.Comment) error {
	if cmd.Bool("json") {
		return FormatJSON(cmd.Root().Writer, comments)
	}
	FormatText(cmd.Root().Writer, comments)
	return nil
}

// fallbackAction показывает справку, если подкоманда не указана.
func fallbackAction(ctx context.Context, cmd *cli.Command) error {
	return cli.ShowSubcommandHelp(cmd)
}
