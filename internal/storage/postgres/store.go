package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string, logLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(&postRow{}, &commentRow{}, &likeRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

var _ storage.Storage = (*Store)(nil)

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	row := postFromDomain(post)
	row.ID = ""
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	// GORM заполнит ID и CreatedAt после создания
	return row.toDomain(), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var row postRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound("post", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	var rows []postRow
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	posts := make([]*domain.Post, len(rows))
	for i, r := range rows {
		posts[i] = r.toDomain()
	}
	return posts, nil
}

func (s *Store) ToggleComments(ctx context.Context, postID string, enable bool) (*domain.Post, error) {
	var row postRow
	// Используем транзакцию для атомарности операции чтения-записи
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, "id = ?", postID).Error; err != nil {
			return notFound("post", postID, err)
		}
		row.CommentsEnabled = enable
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	content, err := domain.NormalizeContent(comment.Content)
	if err != nil {
		return nil, err
	}

	row := commentFromDomain(comment)
	row.ID = ""
	row.Content = content

	// Проверяем существование поста и разрешение на комментирование в одной транзакции
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post postRow
		if err := tx.Select("comments_enabled").First(&post, "id = ?", comment.PostID).Error; err != nil {
			return notFound("post", comment.PostID, err)
		}
		if !post.CommentsEnabled {
			return storage.ErrCommentsDisabled
		}

		// Если есть родитель, проверяем его существование в том же посте
		if comment.ParentID != nil {
			var parentCount int64
			if err := tx.Model(&commentRow{}).
				Where("id = ? AND post_id = ?", *comment.ParentID, comment.PostID).
				Count(&parentCount).Error; err != nil {
				return err
			}
			if parentCount == 0 {
				return fmt.Errorf("parent comment %s: %w", *comment.ParentID, domain.ErrNotFound)
			}
		}

		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}

	return row.toDomain(), nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	var row commentRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound("comment", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateComment(ctx context.Context, id, authorID, content string) (*domain.Comment, error) {
	content, err := domain.NormalizeContent(content)
	if err != nil {
		return nil, err
	}

	var row commentRow
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ownComment(tx, &row, id, authorID); err != nil {
			return err
		}
		row.Content = content
		// UpdatedAt выставит GORM
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// subtreeSQL выбирает id комментария и всех его потомков.
const subtreeSQL = `
WITH RECURSIVE subtree AS (
	SELECT id FROM comments WHERE id = ?
	UNION ALL
	SELECT c.id FROM comments c JOIN subtree s ON c.parent_id = s.id
)
SELECT id FROM subtree`

func (s *Store) DeleteComment(ctx context.Context, id, authorID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row commentRow
		if err := ownComment(tx, &row, id, authorID); err != nil {
			return err
		}

		var ids []string
		if err := tx.Raw(subtreeSQL, id).Scan(&ids).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id IN ?", ids).Delete(&likeRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&commentRow{}).Error
	})
}

func (s *Store) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	liked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&commentRow{}).Where("id = ?", commentID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("comment %s: %w", commentID, domain.ErrNotFound)
		}

		res := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&likeRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		liked = true
		return tx.Create(&likeRow{CommentID: commentID, UserID: userID}).Error
	})
	return liked, err
}

func ownComment(tx *gorm.DB, row *commentRow, id, authorID string) error {
	if err := tx.First(row, "id = ?", id).Error; err != nil {
		return notFound("comment", id, err)
	}
	if row.AuthorID != authorID {
		return fmt.Errorf("comment %s: %w", id, domain.ErrForbidden)
	}
	return nil
}

// === Pagination Methods ===

func (s *Store) GetCommentsByPostID(ctx context.Context, postID string, args storage.PageArgs) ([]*domain.Comment, int, error) {
	if _, err := s.GetPostByID(ctx, postID); err != nil {
		return nil, 0, err
	}
	// Выбираем только комментарии верхнего уровня для поста (parent_id IS NULL)
	query := s.db.WithContext(ctx).Model(&commentRow{}).
		Where("post_id = ? AND parent_id IS NULL", postID)
	return paginate(query, args, "created_at DESC, id DESC")
}

func (s *Store) GetCommentsByParentID(ctx context.Context, parentID string, args storage.PageArgs) ([]*domain.Comment, int, error) {
	if _, err := s.GetCommentByID(ctx, parentID); err != nil {
		return nil, 0, err
	}
	// Аналогично, но для дочерних комментариев
	query := s.db.WithContext(ctx).Model(&commentRow{}).
		Where("parent_id = ?", parentID)
	return paginate(query, args, "created_at ASC, id ASC")
}

func paginate(query *gorm.DB, args storage.PageArgs, order string) ([]*domain.Comment, int, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []commentRow
	err := query.Order(order).Limit(args.PageSize).Offset(args.Offset()).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return commentsToDomain(rows), int(total), nil
}

// === Dataloader Methods ===

func (s *Store) CountRepliesByParentIDs(ctx context.Context, parentIDs []string) (map[string]int, error) {
	var counts []struct {
		ParentID string
		Total    int
	}
	// Считаем ответы для всех переданных parentID одним запросом
	err := s.db.WithContext(ctx).Model(&commentRow{}).
		Select("parent_id, COUNT(*) AS total").
		Where("parent_id IN ?", parentIDs).
		Group("parent_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int, len(parentIDs))
	for _, id := range parentIDs {
		result[id] = 0
	}
	for _, c := range counts {
		result[c.ParentID] = c.Total
	}
	return result, nil
}

func (s *Store) GetLikersByCommentIDs(ctx context.Context, commentIDs []string) (map[string][]string, error) {
	var likes []likeRow
	err := s.db.WithContext(ctx).
		Where("comment_id IN ?", commentIDs).
		Order("comment_id, created_at ASC").
		Find(&likes).Error
	if err != nil {
		return nil, err
	}

	// Группируем результаты в карту map[commentID][]userID
	result := make(map[string][]string, len(commentIDs))
	for _, l := range likes {
		result[l.CommentID] = append(result[l.CommentID], l.UserID)
	}
	return result, nil
}

func notFound(entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s with id %s: %w", entity, id, domain.ErrNotFound)
	}
	return err
}
