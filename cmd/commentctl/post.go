package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"
)

func postCommand() *cli.Command {
	return &cli.Command{
		Name:  "post",
		Usage: "Browse posts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List posts, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Number of posts"},
					&cli.IntFlag{Name: "offset", Usage: "Number of posts to skip"},
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
				},
				Action: runPostList,
			},
		},
	}
}

func runPostList(ctx context.Context, cmd *cli.Command) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	posts, err := e.client.ListPosts(ctx, int(cmd.Int("limit")), int(cmd.Int("offset")))
	if err != nil {
		return fmt.Errorf("failed to list posts: %w", err)
	}

	w := cmd.Root().Writer
	if cmd.Bool("json") {
		data, err := json.MarshalIndent(posts, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}
	for _, p := range posts {
		status := ""
		if !p.CommentsEnabled {
			status = " (comments closed)"
		}
		fmt.Fprintf(w, "[%s] %s%s\n", p.ID, p.Title, status)
	}
	return nil
}
