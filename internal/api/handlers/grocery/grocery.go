package grocery

import (
	"context"
	"errors"
	"net/http"

	"recipe-share/internal/api/middleware"
	groceryService "recipe-share/internal/core/grocery"
	"recipe-share/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service 購物清單服務介面
type Service interface {
	CreateList(ctx context.Context, userID string) (string, error)
	GetList(ctx context.Context, userID string) (*groceryService.List, error)
	AddItems(ctx context.Context, userID, raw string) (*groceryService.AddResult, error)
	RemoveItem(ctx context.Context, userID, ingredient string) error
}

// Handler 購物清單處理程序
type Handler struct {
	service Service
	debug   bool
}

// NewHandler 創建新的購物清單處理程序
func NewHandler(service Service, debug bool) *Handler {
	return &Handler{service: service, debug: debug}
}

// HandleCreateList 為目前使用者建立購物清單
func (h *Handler) HandleCreateList(c *gin.Context) {
	userID := middleware.UserID(c)

	listID, err := h.service.CreateList(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"list_id": listID})
}

// HandleGetList 回傳已儲存的項目與總金額
func (h *Handler) HandleGetList(c *gin.Context) {
	list, err := h.service.GetList(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toListResponse(list))
}

// HandleAddItems 查價並加入以逗號分隔的食材
func (h *Handler) HandleAddItems(c *gin.Context) {
	userID := middleware.UserID(c)

	var req common.AddItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("Invalid add items request",
			zap.Error(err),
			zap.String("request_id", requestid.Get(c)),
		)
		c.JSON(http.StatusBadRequest, common.ErrInvalidRequest.Response(h.debug))
		return
	}

	result, err := h.service.AddItems(c.Request.Context(), userID, req.Ingredients)
	if err != nil {
		h.respondError(c, err)
		return
	}

	list, err := h.service.GetList(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	quotes := make([]common.PriceQuoteResponse, 0, len(result.Quotes))
	for _, q := range result.Quotes {
		quotes = append(quotes, common.PriceQuoteResponse{
			Ingredient: q.Term,
			Cost:       q.Amount,
			Resolved:   q.Resolved,
		})
	}

	common.LogInfo("Grocery items priced",
		zap.String("user_id", userID),
		zap.Int("items", len(quotes)),
		zap.String("request_id", requestid.Get(c)),
	)

	c.JSON(http.StatusOK, common.AddItemsResponse{
		Quotes: quotes,
		List:   toListResponse(list),
	})
}

// HandleRemoveItem 依完全相同的名稱移除項目
func (h *Handler) HandleRemoveItem(c *gin.Context) {
	userID := middleware.UserID(c)

	var req common.RemoveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("Invalid remove item request",
			zap.Error(err),
			zap.String("request_id", requestid.Get(c)),
		)
		c.JSON(http.StatusBadRequest, common.ErrInvalidRequest.Response(h.debug))
		return
	}

	if err := h.service.RemoveItem(c.Request.Context(), userID, req.Ingredient); err != nil {
		h.respondError(c, err)
		return
	}

	list, err := h.service.GetList(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toListResponse(list))
}

// respondError 將服務錯誤轉為 API 錯誤響應
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		perr *groceryService.PersistenceError
		ce   *common.CustomError
	)
	switch {
	case errors.Is(err, groceryService.ErrListNotFound):
		ce = common.ErrGroceryListNotFound
	case errors.Is(err, groceryService.ErrNoIngredients):
		ce = common.ErrEmptyIngredients
	case errors.Is(err, context.DeadlineExceeded):
		ce = common.ErrGatewayTimeout.Wrap(err)
	case errors.As(err, &perr):
		ce = common.ErrGroceryListUnavailable.Wrap(err)
	default:
		ce = common.ErrInternalError.Wrap(err)
	}

	if ce.Status >= http.StatusInternalServerError {
		common.LogError("Grocery request failed",
			zap.String("user_id", middleware.UserID(c)),
			zap.String("code", ce.Code),
			zap.String("request_id", requestid.Get(c)),
			zap.Error(err),
		)
	}

	_ = c.Error(err)
	c.JSON(ce.Status, ce.Response(h.debug))
}

func toListResponse(list *groceryService.List) common.GroceryListResponse {
	items := make([]common.GroceryItemResponse, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, common.GroceryItemResponse{
			Ingredient: item.Ingredient,
			Cost:       item.Cost,
			Display:    common.FormatCurrency(item.Cost),
		})
	}
	return common.GroceryListResponse{
		ListID:       list.ListID,
		Items:        items,
		Total:        list.Total,
		TotalDisplay: common.FormatCurrency(list.Total),
	}
}
