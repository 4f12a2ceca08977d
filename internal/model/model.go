// Package model 定义数据模型
package model

import (
	"gorm.io/gorm"
)

// AutoMigrate 根据模型名迁移表结构，key 为空时迁移全部
func AutoMigrate(db *gorm.DB, key string) error {
	switch key {
	case "HarvesterConfig":
		return db.AutoMigrate(&HarvesterConfig{})
	case "HarvestRun":
		return db.AutoMigrate(&HarvestRun{})
	case "":
		return db.AutoMigrate(&HarvesterConfig{}, &HarvestRun{})
	}
	return nil
}
