package file

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	filemodel "terminal-terrace/upload-service/internal/model/file"
)

var ErrFileNotFound = errors.New("文件不存在")

// Repository 文件元数据存取
type Repository interface {
	Create(ctx context.Context, f *filemodel.File) error
	FindByID(ctx context.Context, id uint) (*filemodel.File, error)
	IncrementDownloads(ctx context.Context, id uint) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Create 同一路径重复登记时（同名文件重新上传）覆盖旧记录的元数据
func (r *gormRepository) Create(ctx context.Context, f *filemodel.File) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing filemodel.File
		err := tx.Where("file_path = ?", f.FilePath).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(f).Error
		}
		if err != nil {
			return fmt.Errorf("查询文件失败: %w", err)
		}

		f.ID = existing.ID
		f.CreatedAt = existing.CreatedAt
		f.DownloadCount = existing.DownloadCount
		return tx.Save(f).Error
	})
}

func (r *gormRepository) FindByID(ctx context.Context, id uint) (*filemodel.File, error) {
	var f filemodel.File
	err := r.db.WithContext(ctx).First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询文件失败: %w", err)
	}
	return &f, nil
}

func (r *gormRepository) IncrementDownloads(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&filemodel.File{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
}
