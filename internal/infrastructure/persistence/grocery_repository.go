package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-share/internal/core/grocery"
	"recipe-share/internal/pkg/common"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroceryRepository 以 GORM 實作 grocery.Store
type GroceryRepository struct {
	db *gorm.DB
}

// NewGroceryRepository 創建購物清單儲存庫
func NewGroceryRepository(db *gorm.DB) *GroceryRepository {
	return &GroceryRepository{db: db}
}

var _ grocery.Store = (*GroceryRepository)(nil)

// FindListIDByUser 查詢使用者的清單 ID
func (r *GroceryRepository) FindListIDByUser(ctx context.Context, userID string) (string, error) {
	var model GroceryListModel

	result := r.db.WithContext(ctx).Select("id").First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", grocery.ErrListNotFound
		}
		return "", result.Error
	}

	return model.ID, nil
}

// CreateList 建立使用者清單；已存在時回傳既有清單
func (r *GroceryRepository) CreateList(ctx context.Context, userID string) (string, error) {
	model := GroceryListModel{
		ID:        common.GenerateUUID(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return "", fmt.Errorf("failed to create grocery list: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return r.FindListIDByUser(ctx, userID)
	}
	return model.ID, nil
}

// ListItems 依加入順序列出清單項目
func (r *GroceryRepository) ListItems(ctx context.Context, listID string) ([]grocery.Item, error) {
	var models []GroceryListItemModel

	result := r.db.WithContext(ctx).
		Where("list_id = ?", listID).
		Order("id ASC").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list grocery items: %w", result.Error)
	}

	items := make([]grocery.Item, 0, len(models))
	for _, m := range models {
		items = append(items, grocery.Item{Ingredient: m.Ingredient, Cost: m.Cost})
	}
	return items, nil
}

// UpsertItem 新增食材，已存在時更新價格
func (r *GroceryRepository) UpsertItem(ctx context.Context, listID, ingredient string, cost float64) error {
	now := time.Now().UTC()
	model := GroceryListItemModel{
		ListID:     listID,
		Ingredient: ingredient,
		Cost:       cost,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "list_id"}, {Name: "ingredient"}},
			DoUpdates: clause.AssignmentColumns([]string{"cost", "updated_at"}),
		}).
		Create(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert grocery item: %w", result.Error)
	}
	return nil
}

// DeleteItem 從清單移除食材；不存在時不視為錯誤
func (r *GroceryRepository) DeleteItem(ctx context.Context, listID, ingredient string) error {
	result := r.db.WithContext(ctx).
		Where("list_id = ? AND ingredient = ?", listID, ingredient).
		Delete(&GroceryListItemModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete grocery item: %w", result.Error)
	}
	return nil
}
