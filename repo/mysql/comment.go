package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/Xushengqwer/go-common/commonerrors"
	"github.com/Xushengqwer/go-common/core"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Xushengqwer/comment_service/models/entities"
)

// CommentRepository 定义了评论数据在 MySQL 中的持久化操作接口。
// 接口的设计旨在将数据访问逻辑与业务逻辑（服务层）解耦；
// 级联删除的事务由仓库层持有，服务层不感知 *gorm.DB。
type CommentRepository interface {
	// CreateComment 持久化一条新评论（根评论或回复）。
	// - ID 与时间戳由持久化层分配，成功后回填到传入的实体。
	CreateComment(ctx context.Context, comment *entities.Comment) error

	// GetCommentByID 按 ID 检索单条评论。
	// - 未找到时返回 commonerrors.ErrRepoNotFound。
	GetCommentByID(ctx context.Context, id uint64) (*entities.Comment, error)

	// GetCommentsByPostID 返回指定帖子的全部评论（扁平列表）。
	// - 排序固定为 created_at DESC，并以 id DESC 决断同时刻写入的先后，
	//   保证读取顺序确定。
	GetCommentsByPostID(ctx context.Context, postID string) ([]*entities.Comment, error)

	// GetRootCommentsPaginated 返回指定帖子根评论（parent_id IS NULL）的一页。
	// - offset/limit 由调用方根据页码换算。排序同 GetCommentsByPostID。
	GetRootCommentsPaginated(ctx context.Context, postID string, offset, limit int) ([]*entities.Comment, error)

	// CountRootComments 统计指定帖子的根评论总数。
	CountRootComments(ctx context.Context, postID string) (int64, error)

	// GetCommentsByParentID 返回指定父评论的直接子评论。
	GetCommentsByParentID(ctx context.Context, parentID uint64) ([]*entities.Comment, error)

	// UpdateAttachment 覆盖写入指定评论的附件字段。
	// - 用于附件后处理完成后的回填；整组字段一次性覆盖，天然幂等。
	// - 评论不存在时返回 commonerrors.ErrRepoNotFound。
	UpdateAttachment(ctx context.Context, commentID uint64, attachment *entities.CommentAttachment) error

	// DeleteCommentTree 删除指定评论及其全部传递可达的后代（级联删除）。
	// - 以 parent_id 索引逐层收集待删集合（显式队列迭代，不做递归），
	//   然后在单个事务中一次性硬删除，要么全部删除要么全部保留。
	// - 返回被删除的全部评论行（含根），供调用方做统计归因与事件发布。
	// - 根评论不存在时返回 commonerrors.ErrRepoNotFound。
	DeleteCommentTree(ctx context.Context, rootID uint64) ([]*entities.Comment, error)
}

// commentRepository 是 CommentRepository 接口针对 MySQL 的具体实现。
type commentRepository struct {
	db     *gorm.DB
	logger *core.ZapLogger
}

// NewCommentRepository 是 commentRepository 的构造函数。
func NewCommentRepository(db *gorm.DB, logger *core.ZapLogger) CommentRepository {
	return &commentRepository{
		db:     db,
		logger: logger,
	}
}

// CreateComment 实现评论的数据库插入操作。
func (r *commentRepository) CreateComment(ctx context.Context, comment *entities.Comment) error {
	// GORM 自动填充 BaseModel 中的 ID / CreatedAt / UpdatedAt。
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}
	return nil
}

// GetCommentByID 实现按 ID 的单条检索。
func (r *commentRepository) GetCommentByID(ctx context.Context, id uint64) (*entities.Comment, error) {
	var comment entities.Comment
	err := r.db.WithContext(ctx).First(&comment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commonerrors.ErrRepoNotFound
		}
		r.logger.Error("按 ID 查询评论失败", zap.Uint64("commentID", id), zap.Error(err))
		return nil, fmt.Errorf("查询评论(ID: %d)失败: %w", id, err)
	}
	return &comment, nil
}

// GetCommentsByPostID 实现帖子全部评论的扁平读取。
func (r *commentRepository) GetCommentsByPostID(ctx context.Context, postID string) ([]*entities.Comment, error) {
	var comments []*entities.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC, id DESC").
		Find(&comments).Error
	if err != nil {
		r.logger.Error("按帖子查询评论列表失败", zap.String("postID", postID), zap.Error(err))
		return nil, fmt.Errorf("查询帖子(%s)评论列表失败: %w", postID, err)
	}
	return comments, nil
}

// GetRootCommentsPaginated 实现根评论的分页读取。
func (r *commentRepository) GetRootCommentsPaginated(ctx context.Context, postID string, offset, limit int) ([]*entities.Comment, error) {
	var comments []*entities.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND parent_id IS NULL", postID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		r.logger.Error("分页查询根评论失败",
			zap.String("postID", postID),
			zap.Int("offset", offset),
			zap.Int("limit", limit),
			zap.Error(err))
		return nil, fmt.Errorf("分页查询帖子(%s)根评论失败: %w", postID, err)
	}
	return comments, nil
}

// CountRootComments 实现根评论计数。
func (r *commentRepository) CountRootComments(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.Comment{}).
		Where("post_id = ? AND parent_id IS NULL", postID).
		Count(&count).Error
	if err != nil {
		r.logger.Error("统计根评论数量失败", zap.String("postID", postID), zap.Error(err))
		return 0, fmt.Errorf("统计帖子(%s)根评论数量失败: %w", postID, err)
	}
	return count, nil
}

// GetCommentsByParentID 实现直接子评论的读取。
func (r *commentRepository) GetCommentsByParentID(ctx context.Context, parentID uint64) ([]*entities.Comment, error) {
	var comments []*entities.Comment
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at DESC, id DESC").
		Find(&comments).Error
	if err != nil {
		r.logger.Error("按父评论查询子评论失败", zap.Uint64("parentID", parentID), zap.Error(err))
		return nil, fmt.Errorf("查询父评论(ID: %d)的子评论失败: %w", parentID, err)
	}
	return comments, nil
}

// UpdateAttachment 实现附件字段的整组覆盖更新。
func (r *commentRepository) UpdateAttachment(ctx context.Context, commentID uint64, attachment *entities.CommentAttachment) error {
	// 用 map 显式列出全部附件列，确保零值（如 Processed=false -> true 的反向回滚）
	// 也能被覆盖写入。
	updates := map[string]interface{}{
		"attachment_data":          attachment.Data,
		"attachment_filename":      attachment.FileName,
		"attachment_mime_type":     attachment.MimeType,
		"attachment_original_name": attachment.OriginalName,
		"attachment_size":          attachment.Size,
		"attachment_url":           attachment.URL,
		"attachment_processed":     attachment.Processed,
	}

	result := r.db.WithContext(ctx).
		Model(&entities.Comment{}).
		Where("id = ?", commentID).
		Updates(updates)
	if result.Error != nil {
		r.logger.Error("更新评论附件失败", zap.Uint64("commentID", commentID), zap.Error(result.Error))
		return fmt.Errorf("更新评论(ID: %d)附件失败: %w", commentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return commonerrors.ErrRepoNotFound
	}
	return nil
}

// DeleteCommentTree 实现评论树的级联硬删除。
//
// 两阶段执行：
//  1. 收集阶段：从根出发，按 parent_id IN (上一层ID集合) 逐层查询后代，
//     显式队列迭代避免递归深度问题；评论树按构造无环，循环必然终止。
//  2. 删除阶段：单个事务内按 ID 集合一次性 Unscoped 硬删除。
//     事务失败时整棵树原样保留，重跑会得到相同的终态（幂等）。
func (r *commentRepository) DeleteCommentTree(ctx context.Context, rootID uint64) ([]*entities.Comment, error) {
	var toDelete []*entities.Comment

	// 收集与删除放在同一个事务里，避免收集完成后、删除提交前
	// 新写入的回复漏删成为孤儿。
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 根评论必须存在
		var root entities.Comment
		if err := tx.First(&root, rootID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return commonerrors.ErrRepoNotFound
			}
			return fmt.Errorf("查询评论(ID: %d)失败: %w", rootID, err)
		}

		// 2. 逐层收集后代
		toDelete = []*entities.Comment{&root}
		frontier := []uint64{rootID}
		for len(frontier) > 0 {
			var children []*entities.Comment
			if err := tx.Where("parent_id IN ?", frontier).Find(&children).Error; err != nil {
				return fmt.Errorf("收集评论(ID: %d)的后代失败: %w", rootID, err)
			}

			frontier = frontier[:0]
			for _, child := range children {
				toDelete = append(toDelete, child)
				frontier = append(frontier, child.ID)
			}
		}

		// 3. 按 ID 集合一次性硬删除整棵子树
		ids := make([]uint64, 0, len(toDelete))
		for _, c := range toDelete {
			ids = append(ids, c.ID)
		}
		return tx.Unscoped().Where("id IN ?", ids).Delete(&entities.Comment{}).Error
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrRepoNotFound) {
			return nil, err
		}
		r.logger.Error("级联删除评论树事务失败",
			zap.Uint64("rootID", rootID),
			zap.Error(err))
		return nil, fmt.Errorf("级联删除评论(ID: %d)失败: %w", rootID, err)
	}

	r.logger.Info("级联删除评论树完成",
		zap.Uint64("rootID", rootID),
		zap.String("postID", toDelete[0].PostID),
		zap.Int("deletedCount", len(toDelete)))
	return toDelete, nil
}
