package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/commentsync/internal/config"
	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/events"
	"github.com/UkralStul/commentsync/internal/server"
	"github.com/UkralStul/commentsync/internal/storage"
	"github.com/UkralStul/commentsync/internal/storage/inmemory"
	"github.com/UkralStul/commentsync/internal/storage/postgres"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		// логгер еще не создан
		panic(err)
	}

	storageType := flag.String("storage", cfg.Storage, "Storage type (in-memory or postgres)")
	flag.Parse()
	cfg.Storage = *storageType

	log, err := config.NewLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Sugar().Panicf("invalid configuration: %s", err.Error())
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		log.Warn("JWT_SECRET is not set, using the development secret")
	}

	var store storage.Storage
	log.Info("starting server", zap.String("storage", cfg.Storage), zap.String("port", cfg.Port))
	if cfg.Storage == config.StoragePostgres {
		level := logger.Warn
		if cfg.Debug {
			level = logger.Info
		}
		store, err = postgres.New(cfg.DatabaseURL, level)
		if err != nil {
			log.Sugar().Panicf("failed to connect to postgres: %s", err.Error())
		}
		log.Info("successfully connected to PostgreSQL")
	} else {
		store = inmemory.New()
		// Заполним данными для тестов
		fillWithMockData(log, store)
	}

	api := server.New(store, events.NewHub(), server.NewTokens(cfg.JWTSecret, cfg.TokenTTL), log)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Sugar().Infof("comment API listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Sugar().Panicf("server failed to start: %s", err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("failed to shut down gracefully", zap.Error(err))
	}
}

func fillWithMockData(log *zap.Logger, s storage.Storage) {
	ctx := context.Background()

	// 1. Создаем пост и явно включаем комментарии.
	post, err := s.CreatePost(ctx, &domain.Post{
		Title:           "Отчет о гонке",
		Content:         "Обсуждаем вчерашнюю гонку: стратегия, пит-стопы, погода.",
		AuthorID:        "user-1",
		CommentsEnabled: true,
	})
	if err != nil {
		log.Sugar().Panicf("fillWithMockData: failed to create post: %s", err.Error())
	}

	// 2. Корневой комментарий.
	c1, err := s.CreateComment(ctx, &domain.Comment{
		PostID:            post.ID,
		AuthorID:          "user-2",
		AuthorDisplayName: "Мария",
		Content:           "Отличная гонка! Стратегия на двух пит-стопах сработала.",
	})
	if err != nil {
		log.Sugar().Panicf("fillWithMockData: failed to create comment 1: %s", err.Error())
	}

	// 3. Ответ на первый комментарий и ответ на ответ.
	reply, err := s.CreateComment(ctx, &domain.Comment{
		PostID:            post.ID,
		ParentID:          &c1.ID,
		AuthorID:          "user-1",
		AuthorDisplayName: "Иван",
		Content:           "Согласен, хотя второй пит-стоп был рискованным.",
	})
	if err != nil {
		log.Sugar().Panicf("fillWithMockData: failed to create reply: %s", err.Error())
	}
	if _, err := s.CreateComment(ctx, &domain.Comment{
		PostID:            post.ID,
		ParentID:          &reply.ID,
		AuthorID:          "user-2",
		AuthorDisplayName: "Мария",
		Content:           "Риск окупился, шины были еще живые.",
	}); err != nil {
		log.Sugar().Panicf("fillWithMockData: failed to create nested reply: %s", err.Error())
	}
	if _, err := s.ToggleLike(ctx, c1.ID, "user-3"); err != nil {
		log.Sugar().Panicf("fillWithMockData: failed to like comment: %s", err.Error())
	}

	// 4. Второй корневой комментарий.
	if _, err := s.CreateComment(ctx, &domain.Comment{
		PostID:            post.ID,
		AuthorID:          "user-3",
		AuthorDisplayName: "Олег",
		Content:           "А что с погодой на следующем этапе?",
	}); err != nil {
		log.Sugar().Panicf("fillWithMockData: failed to create comment 2: %s", err.Error())
	}

	// 5. Пост с выключенными комментариями.
	disabledPost, err := s.CreatePost(ctx, &domain.Post{
		Title:           "Пост с выключенными комментариями",
		Content:         "К этому посту нельзя оставлять комментарии.",
		AuthorID:        "user-admin",
		CommentsEnabled: false,
	})
	if err != nil {
		log.Sugar().Panicf("fillWithMockData: failed to create disabled post: %s", err.Error())
	}

	log.Info("mock data filled",
		zap.String("post_id", post.ID), zap.String("disabled_post_id", disabledPost.ID))
}
