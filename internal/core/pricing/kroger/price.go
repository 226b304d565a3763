package kroger

import "encoding/json"

// SelectPrice 依序取 price、nationalPrice、items[0].price
func (d *ProductDetail) SelectPrice() *Price {
	if d == nil {
		return nil
	}
	if d.Price != nil {
		return d.Price
	}
	if d.NationalPrice != nil {
		return d.NationalPrice
	}
	if len(d.Items) > 0 {
		return d.Items[0].Price
	}
	return nil
}

// Amount 優先使用 regular，其次 current；兩者皆非數值時回傳 false
func (p *Price) Amount() (float64, bool) {
	if p == nil {
		return 0, false
	}
	if v, ok := number(p.Regular); ok {
		return v, true
	}
	return number(p.Current)
}

func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
