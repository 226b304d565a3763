package common

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// RoundCents 四捨五入到小數點後兩位
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// FormatCurrency 格式化金額，例如 3.5 -> "$3.50"
func FormatCurrency(amount float64) string {
	return fmt.Sprintf("$%.2f", RoundCents(amount))
}
