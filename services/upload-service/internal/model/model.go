package model

import (
	"gorm.io/gorm"

	"terminal-terrace/upload-service/internal/model/file"
)

func InitTable(db *gorm.DB) error {
	// 自动迁移数据库表结构
	return db.AutoMigrate(
		&file.File{},
	)
}
