package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/UkralStul/commentsync/internal/auth"
	"github.com/UkralStul/commentsync/internal/cache"
	"github.com/UkralStul/commentsync/internal/config"
	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/session"
	"github.com/UkralStul/commentsync/internal/transport"
	"github.com/UkralStul/commentsync/internal/tree"
)

// env - зависимости одной команды.
type env struct {
	cfg    *config.ClientConfig
	logger *zap.Logger
	users  *auth.Accessor
	client *transport.Client
	cache  cache.Manager
}

func loadEnv(cmd *cli.Command) (*env, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if server := cmd.String("server"); server != "" {
		cfg.ServerURL = server
	}

	logger := zap.NewNop()
	if cmd.Bool("debug") || cfg.Debug {
		if logger, err = config.NewLogger(true); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	users := auth.NewAccessor()
	e := &env{
		cfg:    cfg,
		logger: logger,
		users:  users,
		client: transport.NewClient(cfg.ServerURL,
			transport.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
			transport.WithTokenSource(users),
			transport.WithLogger(logger)),
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		e.cache = cache.NewRedis(redis.NewClient(opts), cfg.CacheTTL)
	} else {
		e.cache = cache.NewMemory(cfg.CacheSize, cfg.CacheTTL)
	}
	return e, nil
}

func (e *env) newSession(cmd *cli.Command) *session.Session {
	root := cmd.Root()
	return session.NewSession(e.client, e.users, writerNotifier{out: root.Writer, errOut: root.ErrWriter},
		session.WithLogger(e.logger),
		session.WithCache(e.cache),
		session.WithPageSizes(e.cfg.PageSize, e.cfg.ReplyPageSize))
}

// openPost создает сессию и загружает комментарии поста. Вызывающий закрывает сессию.
func (e *env) openPost(ctx context.Context, cmd *cli.Command, postID string) (*session.Session, error) {
	s := e.newSession(cmd)
	if err := s.LoadComments(ctx, postID); err != nil {
		return nil, reported(err)
	}
	return s, nil
}

// closeSession сохраняет дерево в кэш; ошибка кэша не ломает команду.
func (e *env) closeSession(ctx context.Context, s *session.Session) {
	if err := s.Close(ctx); err != nil {
		e.logger.Warn("failed to cache comments", zap.Error(err))
	}
}

// locate подгружает страницы корней и ответов, пока комментарий id не появится в дереве.
func locate(ctx context.Context, s *session.Session, id string) error {
	exhausted := map[string]bool{}
	for !tree.Contains(s.Comments(), id) {
		var next string
		tree.Walk(s.Comments(), func(c domain.Comment, _ int) bool {
			if next == "" && c.HasMoreReplies() && !exhausted[c.ID] {
				next = c.ID
			}
			return next == ""
		})

		if next == "" {
			if !s.HasMoreRoots() {
				return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
			}
			loaded, err := s.LoadMoreRootComments(ctx)
			if err != nil {
				return reported(err)
			}
			if !loaded {
				return fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
			}
			continue
		}

		loaded, err := s.ExpandReplies(ctx, next)
		if err != nil {
			return reported(err)
		}
		if !loaded {
			exhausted[next] = true
		}
	}
	return nil
}
