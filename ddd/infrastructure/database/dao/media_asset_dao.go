package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"media-transcode-service/ddd/infrastructure/database/po"
	"media-transcode-service/internal/resource"
)

// MediaAssetDAO 资产数据访问对象
type MediaAssetDAO struct {
	db *gorm.DB
}

// DefaultMediaAssetDAO 使用全局 MySQL 资源
func DefaultMediaAssetDAO() *MediaAssetDAO {
	return NewMediaAssetDAO(resource.DefaultMysqlResource().MainDB())
}

// NewMediaAssetDAO 创建资产DAO
func NewMediaAssetDAO(db *gorm.DB) *MediaAssetDAO {
	return &MediaAssetDAO{db: db}
}

func (d *MediaAssetDAO) Create(ctx context.Context, asset *po.MediaAsset) error {
	return d.db.WithContext(ctx).Model(&po.MediaAsset{}).Create(asset).Error
}

func (d *MediaAssetDAO) FindByUUID(ctx context.Context, mediaUUID string) (*po.MediaAsset, error) {
	var asset po.MediaAsset
	if err := d.db.WithContext(ctx).Where("media_uuid = ?", mediaUUID).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (d *MediaAssetDAO) FindBySourcePath(ctx context.Context, sourcePath string) (*po.MediaAsset, error) {
	var asset po.MediaAsset
	err := d.db.WithContext(ctx).Where("source_object_path = ?", sourcePath).Order("created_at DESC").First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (d *MediaAssetDAO) FindByStorageFolder(ctx context.Context, folder string) (*po.MediaAsset, error) {
	var asset po.MediaAsset
	err := d.db.WithContext(ctx).Where("storage_folder = ?", folder).Order("created_at DESC").First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (d *MediaAssetDAO) ListRecent(ctx context.Context, limit int) ([]*po.MediaAsset, error) {
	var list []*po.MediaAsset
	q := d.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (d *MediaAssetDAO) QueryByStatus(ctx context.Context, status string, updatedBefore time.Time, limit int) ([]*po.MediaAsset, error) {
	var list []*po.MediaAsset
	q := d.db.WithContext(ctx).Where("transcode_status = ? AND updated_at < ?", status, updatedBefore).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (d *MediaAssetDAO) QueryStalledBackground(ctx context.Context, updatedBefore time.Time, limit int) ([]*po.MediaAsset, error) {
	var list []*po.MediaAsset
	q := d.db.WithContext(ctx).
		Where("transcode_status = ? AND background_status = ? AND updated_at < ?", "ready", "processing", updatedBefore).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateColumns 按字段更新，返回受影响行数
func (d *MediaAssetDAO) UpdateColumns(ctx context.Context, mediaUUID string, columns map[string]interface{}) (int64, error) {
	columns["updated_at"] = time.Now()
	res := d.db.WithContext(ctx).Model(&po.MediaAsset{}).Where("media_uuid = ?", mediaUUID).Updates(columns)
	return res.RowsAffected, res.Error
}

// UpdateColumnsWhere 带附加条件的更新，用于状态的条件迁移
func (d *MediaAssetDAO) UpdateColumnsWhere(ctx context.Context, mediaUUID, cond string, args []interface{}, columns map[string]interface{}) (int64, error) {
	columns["updated_at"] = time.Now()
	res := d.db.WithContext(ctx).Model(&po.MediaAsset{}).
		Where("media_uuid = ?", mediaUUID).
		Where(cond, args...).
		Updates(columns)
	return res.RowsAffected, res.Error
}

// LockedUpdate 在事务内以 SELECT ... FOR UPDATE 读取记录，fn 修改后写回指定字段
func (d *MediaAssetDAO) LockedUpdate(ctx context.Context, mediaUUID string, fn func(asset *po.MediaAsset) (map[string]interface{}, error)) (*po.MediaAsset, error) {
	var out po.MediaAsset
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("media_uuid = ?", mediaUUID).
			First(&out).Error; err != nil {
			return err
		}
		columns, err := fn(&out)
		if err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		columns["updated_at"] = time.Now()
		return tx.Model(&po.MediaAsset{}).Where("media_uuid = ?", mediaUUID).Updates(columns).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
