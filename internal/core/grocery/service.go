package grocery

import (
	"context"
	"errors"

	"recipe-share/internal/core/pricing"
	"recipe-share/internal/infrastructure/config"
	"recipe-share/internal/infrastructure/monitoring"
	"recipe-share/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoIngredients 正規化後沒有任何食材
var ErrNoIngredients = errors.New("no ingredients given")

// Service 購物清單服務
type Service struct {
	store          Store
	pricer         Pricer
	metrics        *monitoring.PricingMetrics
	maxConcurrency int
}

// NewService 創建購物清單服務
func NewService(store Store, pricer Pricer, cfg config.GroceryConfig, metrics *monitoring.PricingMetrics) *Service {
	limit := cfg.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	return &Service{
		store:          store,
		pricer:         pricer,
		metrics:        metrics,
		maxConcurrency: limit,
	}
}

// CreateList 為新註冊的使用者建立購物清單，已存在時回傳原清單
func (s *Service) CreateList(ctx context.Context, userID string) (string, error) {
	listID, err := s.store.FindListIDByUser(ctx, userID)
	if err == nil {
		return listID, nil
	}
	if !errors.Is(err, ErrListNotFound) {
		return "", &PersistenceError{Op: "find list", Err: err}
	}

	listID, err = s.store.CreateList(ctx, userID)
	if err != nil {
		return "", &PersistenceError{Op: "create list", Err: err}
	}

	common.LogInfo("Grocery list created",
		zap.String("user_id", userID),
		zap.String("list_id", listID),
	)
	return listID, nil
}

// GetList 讀取已儲存的項目與總金額，不會重新查價
func (s *Service) GetList(ctx context.Context, userID string) (*List, error) {
	listID, err := s.listID(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return nil, &PersistenceError{Op: "list items", Err: err}
	}

	var total float64
	for _, item := range items {
		total += item.Cost
	}

	return &List{
		ListID: listID,
		Items:  items,
		Total:  common.RoundCents(total),
	}, nil
}

// AddItems 逐項查價並寫入清單。單一食材查價失敗以 0 計價，不影響其他項目；
// 所有項目完成後，回傳第一個寫入錯誤。
func (s *Service) AddItems(ctx context.Context, userID, raw string) (*AddResult, error) {
	terms := Normalize(raw)
	if len(terms) == 0 {
		return nil, ErrNoIngredients
	}

	listID, err := s.listID(ctx, userID)
	if err != nil {
		return nil, err
	}

	quotes := make([]pricing.Quote, len(terms))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i, term := range terms {
		g.Go(func() error {
			quote := s.quote(ctx, term)
			quotes[i] = quote

			if err := s.store.UpsertItem(ctx, listID, term, quote.Amount); err != nil {
				common.LogError("Failed to save grocery item",
					zap.String("list_id", listID),
					zap.String("ingredient", term),
					zap.Error(err),
				)
				return &PersistenceError{Op: "upsert item", Err: err}
			}
			s.metrics.ObserveUpsert()
			return nil
		})
	}
	err = g.Wait()

	result := &AddResult{ListID: listID, Quotes: quotes}
	if err != nil {
		return result, err
	}

	common.LogInfo("Grocery items added",
		zap.String("list_id", listID),
		zap.Int("items", len(terms)),
	)
	return result, nil
}

// RemoveItem 依完全相同的文字刪除項目，不存在時不視為錯誤
func (s *Service) RemoveItem(ctx context.Context, userID, ingredient string) error {
	listID, err := s.listID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteItem(ctx, listID, ingredient); err != nil {
		return &PersistenceError{Op: "delete item", Err: err}
	}
	return nil
}

// quote 查價並轉為兩位小數；任何錯誤都回退為 0
func (s *Service) quote(ctx context.Context, term string) pricing.Quote {
	quote, err := s.pricer.PriceFor(ctx, term)
	if err != nil {
		common.LogWarn("Pricing failed, saving ingredient at 0",
			zap.String("ingredient", term),
			zap.Error(err),
		)
		if quote.Reason == pricing.ReasonNone {
			quote.Reason = pricing.ReasonProviderError
		}
		return pricing.Miss(term, quote.Reason)
	}

	if !quote.Resolved {
		return pricing.Miss(term, quote.Reason)
	}
	amount := common.RoundCents(quote.Amount)
	if amount < 0 {
		return pricing.Miss(term, pricing.ReasonNoPrice)
	}
	return pricing.Hit(term, amount)
}

func (s *Service) listID(ctx context.Context, userID string) (string, error) {
	listID, err := s.store.FindListIDByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrListNotFound) {
			return "", ErrListNotFound
		}
		return "", &PersistenceError{Op: "find list", Err: err}
	}
	return listID, nil
}
