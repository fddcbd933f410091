package orders

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// UpstreamOrder is an open order as returned by the carrier API.
type UpstreamOrder struct {
	ID              FlexString      `json:"id"`
	Name            string          `json:"name,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Tags            Tags            `json:"tags,omitempty"`
	Customer        *Person         `json:"customer,omitempty"`
	ShippingAddress *Person         `json:"shipping_address,omitempty"`
	BillingAddress  *Person         `json:"billing_address,omitempty"`
	LineItems       []LineItem      `json:"line_items"`
}

// UnmarshalJSON decodes the order with a lenient total: an empty or
// unparseable total_price reads as zero instead of failing the whole list.
func (o *UpstreamOrder) UnmarshalJSON(data []byte) error {
	type plain UpstreamOrder
	aux := struct {
		*plain
		TotalPrice FlexDecimal `json:"total_price"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.TotalPrice = aux.TotalPrice.Decimal()
	return nil
}

// Person is the subset of an upstream customer or address we read.
type Person struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName returns "first last" trimmed.
func (p *Person) FullName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// LineItem is one product entry of an upstream order.
type LineItem struct {
	SKU       string          `json:"sku,omitempty"`
	ProductID FlexString      `json:"product_id,omitempty"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  FlexInt         `json:"quantity"`
}

// UnmarshalJSON decodes the item with a lenient unit price.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	type plain LineItem
	aux := struct {
		*plain
		Price FlexDecimal `json:"price"`
	}{plain: (*plain)(li)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	li.Price = aux.Price.Decimal()
	return nil
}

// Code returns the product code, preferring the SKU.
func (li LineItem) Code() string {
	if sku := strings.TrimSpace(li.SKU); sku != "" {
		return sku
	}
	return strings.TrimSpace(string(li.ProductID))
}

// LinePrice is the unit price times the quantity. Missing or non-positive
// quantities count as one unit.
func (li LineItem) LinePrice() decimal.Decimal {
	qty := int64(li.Quantity)
	if qty < 1 {
		qty = 1
	}
	return li.Price.Mul(decimal.NewFromInt(qty))
}

// Line is a line item after duplicate product codes within one order have
// been folded together.
type Line struct {
	ProductCode string
	ProductName string
	Price       decimal.Decimal
	Quantity    int64
}

// Key returns the reconciliation key of the line within its order.
func (o UpstreamOrder) Key(l Line) Key {
	return Key{OrderID: o.OrderID(), ProductCode: l.ProductCode}
}

// OrderID returns the trimmed upstream order identifier.
func (o UpstreamOrder) OrderID() string {
	return strings.TrimSpace(string(o.ID))
}

// Lines returns one entry per distinct product code in first-seen order.
// Items without any product code are skipped since they cannot be keyed.
func (o UpstreamOrder) Lines() []Line {
	lines := make([]Line, 0, len(o.LineItems))
	index := make(map[string]int, len(o.LineItems))
	for _, li := range o.LineItems {
		code := li.Code()
		if code == "" {
			continue
		}
		qty := int64(li.Quantity)
		if qty < 1 {
			qty = 1
		}
		if i, ok := index[code]; ok {
			lines[i].Price = lines[i].Price.Add(li.LinePrice())
			lines[i].Quantity += qty
			continue
		}
		index[code] = len(lines)
		lines = append(lines, Line{
			ProductCode: code,
			ProductName: strings.TrimSpace(li.Title),
			Price:       li.LinePrice(),
			Quantity:    qty,
		})
	}
	return lines
}

// CustomerName returns the first non-empty name among the customer, the
// shipping address and the billing address.
func (o UpstreamOrder) CustomerName() string {
	for _, p := range []*Person{o.Customer, o.ShippingAddress, o.BillingAddress} {
		if name := p.FullName(); name != "" {
			return name
		}
	}
	return ""
}

// HasTag reports whether the order carries tag, ignoring case and padding.
func (o UpstreamOrder) HasTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, t := range o.Tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// FlexString decodes from either a JSON string or a JSON number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// FlexDecimal decodes an amount from a JSON number or a numeric string.
// Empty, null and unparseable values read as zero.
type FlexDecimal decimal.Decimal

// Decimal returns the decoded amount.
func (d FlexDecimal) Decimal() decimal.Decimal {
	return decimal.Decimal(d)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *FlexDecimal) UnmarshalJSON(data []byte) error {
	*d = FlexDecimal(decimal.Zero)
	str := strings.TrimSpace(strings.Trim(string(bytes.TrimSpace(data)), `"`))
	if str == "" || str == "null" {
		return nil
	}
	if v, err := decimal.NewFromString(str); err == nil {
		*d = FlexDecimal(v)
	}
	return nil
}

// FlexInt decodes from either a JSON number or a numeric string. Empty,
// non-numeric and out of range values read as zero.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	str := strings.Trim(string(data), `"`)
	if str == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil || math.IsNaN(v) || v >= math.MaxInt64 || v <= math.MinInt64 {
		*n = 0
		return nil
	}
	*n = FlexInt(v)
	return nil
}

// Tags decodes from a comma separated string or an array of strings.
type Tags []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = nil
		return nil
	case len(data) > 0 && data[0] == '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*t = cleanTags(list)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*t = cleanTags(strings.Split(str, ","))
	return nil
}

func cleanTags(in []string) Tags {
	out := make(Tags, 0, len(in))
	for _, tag := range in {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
