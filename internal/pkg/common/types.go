package common

// AddItemsRequest 新增購物清單項目的請求，空白內容由服務層回傳 ErrNoIngredients
type AddItemsRequest struct {
	Ingredients string `json:"ingredients"`
}

// RemoveItemRequest 移除購物清單項目的請求
type RemoveItemRequest struct {
	Ingredient string `json:"ingredient" binding:"required"`
}

// GroceryItemResponse 購物清單項目
type GroceryItemResponse struct {
	Ingredient string  `json:"ingredient"`
	Cost       float64 `json:"cost"`
	Display    string  `json:"display"`
}

// GroceryListResponse 購物清單
type GroceryListResponse struct {
	ListID       string                `json:"list_id"`
	Items        []GroceryItemResponse `json:"items"`
	Total        float64               `json:"total"`
	TotalDisplay string                `json:"total_display"`
}

// PriceQuoteResponse 單一食材的報價結果
type PriceQuoteResponse struct {
	Ingredient string  `json:"ingredient"`
	Cost       float64 `json:"cost"`
	Resolved   bool    `json:"resolved"`
}

// AddItemsResponse 新增項目後的結果
type AddItemsResponse struct {
	Quotes []PriceQuoteResponse `json:"quotes"`
	List   GroceryListResponse  `json:"list"`
}
