package ledger

import (
	"github.com/kirinyoku/bistro/internal/domain"
	"github.com/shopspring/decimal"
)

// Multipliers applied in order: service charge, then GST, then the member
// discount.
const (
	ServiceChargeRate  = 1.10
	GSTRate            = 1.07
	MemberDiscountRate = 0.90
)

// Nett prices an order subtotal.
func Nett(original float64, member bool) float64 {
	nett := original * ServiceChargeRate * GSTRate
	if member {
		nett *= MemberDiscountRate
	}
	return nett
}

// Invoice is the printable payment breakdown. Amounts are rounded to cents
// for display only; NettTotal on the order stays unrounded.
type Invoice struct {
	OrderID        string          `json:"order_id"`
	TableNumber    int             `json:"table_number"`
	Items          []InvoiceLine   `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ServiceCharge  decimal.Decimal `json:"service_charge"`
	GST            decimal.Decimal `json:"gst"`
	MemberDiscount decimal.Decimal `json:"member_discount"`
	Total          decimal.Decimal `json:"total"`
}

type InvoiceLine struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

func NewInvoice(o domain.Order) Invoice {
	withService := o.OriginalTotal * ServiceChargeRate
	withGST := withService * GSTRate

	inv := Invoice{
		OrderID:        o.ID,
		TableNumber:    o.TableNumber,
		Items:          make([]InvoiceLine, 0, len(o.Items)),
		Subtotal:       cents(o.OriginalTotal),
		ServiceCharge:  cents(withService - o.OriginalTotal),
		GST:            cents(withGST - withService),
		MemberDiscount: decimal.Zero,
		Total:          cents(o.NettTotal),
	}

	if o.Member {
		inv.MemberDiscount = cents(withGST - o.NettTotal)
	}

	for _, it := range o.Items {
		inv.Items = append(inv.Items, InvoiceLine{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: cents(it.UnitPrice),
			Amount:    cents(it.UnitPrice * float64(it.Quantity)),
		})
	}

	return inv
}

func cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
