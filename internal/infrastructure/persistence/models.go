// Package persistence 提供以 GORM 實作的購物清單儲存
package persistence

import "time"

// GroceryListModel 對應 grocery_lists 表，每位使用者一筆
type GroceryListModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`

	Items []GroceryListItemModel `gorm:"foreignKey:ListID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (GroceryListModel) TableName() string {
	return "grocery_lists"
}

// GroceryListItemModel 對應 grocery_list_items 表
// (list_id, ingredient) 唯一，重複加入同一食材時更新價格
type GroceryListItemModel struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	ListID     string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_list_ingredient"`
	Ingredient string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_list_ingredient"`
	Cost       float64   `gorm:"type:numeric(10,2);not null;default:0"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (GroceryListItemModel) TableName() string {
	return "grocery_list_items"
}
