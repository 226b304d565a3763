package grocery

import (
	"context"
	"errors"
	"fmt"

	"recipe-share/internal/core/pricing"
)

// ErrListNotFound 使用者沒有購物清單
var ErrListNotFound = errors.New("grocery list not found")

// PersistenceError 儲存操作失敗
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("grocery %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Item 購物清單項目
type Item struct {
	Ingredient string
	Cost       float64
}

// List 購物清單與總金額
type List struct {
	ListID string
	Items  []Item
	Total  float64
}

// AddResult 新增項目的逐項報價
type AddResult struct {
	ListID string
	Quotes []pricing.Quote
}

// Store 購物清單儲存
type Store interface {
	FindListIDByUser(ctx context.Context, userID string) (string, error)
	CreateList(ctx context.Context, userID string) (string, error)
	ListItems(ctx context.Context, listID string) ([]Item, error)
	UpsertItem(ctx context.Context, listID, ingredient string, cost float64) error
	DeleteItem(ctx context.Context, listID, ingredient string) error
}

// Pricer 食材價格查詢
type Pricer interface {
	PriceFor(ctx context.Context, term string) (pricing.Quote, error)
}
