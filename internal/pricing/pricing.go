// Package pricing computes sale totals. Discounts cascade: the customer-group
// discount is applied to the sub-total first, then the sale-level discount is
// applied to that result. Both are percentages and are not range checked.
package pricing

import (
	"github.com/shopspring/decimal"

	"kasirinaja/backoffice/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Line is one priced row of a sale. Packages carry a zero discount.
type Line struct {
	Price    decimal.Decimal
	Quantity int64
	Discount decimal.Decimal
}

func (l Line) SubTotal() decimal.Decimal {
	gross := l.Price.Mul(decimal.NewFromInt(l.Quantity))
	if l.Discount.IsZero() {
		return gross
	}
	return applyPercent(gross, l.Discount)
}

// Snapshot is an immutable view of everything a total depends on.
type Snapshot struct {
	Items         []Line
	Packages      []Line
	GroupDiscount *decimal.Decimal
	SalesDiscount decimal.Decimal
}

func SnapshotOf(sale domain.Sale) Snapshot {
	snap := Snapshot{
		Items:         make([]Line, 0, len(sale.Items)),
		Packages:      make([]Line, 0, len(sale.Packages)),
		SalesDiscount: sale.SalesDiscount,
	}
	for _, item := range sale.Items {
		snap.Items = append(snap.Items, Line{Price: item.Price, Quantity: int64(item.Quantity), Discount: item.Discount})
	}
	for _, pkg := range sale.Packages {
		snap.Packages = append(snap.Packages, Line{Price: pkg.Price, Quantity: int64(pkg.Quantity)})
	}
	if sale.Customer != nil && sale.Customer.Group != nil {
		discount := sale.Customer.Group.Discount
		snap.GroupDiscount = &discount
	}
	return snap
}

// Breakdown is every stage of the calculation, for display and APIs.
type Breakdown struct {
	SubTotal              decimal.Decimal `json:"sub_total"`
	AfterCustomerDiscount decimal.Decimal `json:"after_customer_discount"`
	AfterSalesDiscount    decimal.Decimal `json:"after_sales_discount"`
	Total                 decimal.Decimal `json:"total"`
}

func CalculateSubTotal(s Snapshot) decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Items {
		total = total.Add(line.SubTotal())
	}
	for _, line := range s.Packages {
		total = total.Add(line.SubTotal())
	}
	return total
}

func CalculateAfterCustomerDiscount(s Snapshot) decimal.Decimal {
	subTotal := CalculateSubTotal(s)
	if s.GroupDiscount == nil {
		return subTotal
	}
	return applyPercent(subTotal, *s.GroupDiscount)
}

func CalculateAfterSalesDiscount(s Snapshot) decimal.Decimal {
	return applyPercent(CalculateAfterCustomerDiscount(s), s.SalesDiscount)
}

func CalculateTotal(s Snapshot) decimal.Decimal {
	return CalculateAfterSalesDiscount(s)
}

func Calculate(s Snapshot) Breakdown {
	subTotal := CalculateSubTotal(s)
	afterCustomer := subTotal
	if s.GroupDiscount != nil {
		afterCustomer = applyPercent(subTotal, *s.GroupDiscount)
	}
	afterSales := applyPercent(afterCustomer, s.SalesDiscount)
	return Breakdown{
		SubTotal:              subTotal,
		AfterCustomerDiscount: afterCustomer,
		AfterSalesDiscount:    afterSales,
		Total:                 afterSales,
	}
}

// SaleTotal is CalculateTotal over a loaded sale.
func SaleTotal(sale domain.Sale) decimal.Decimal {
	return CalculateTotal(SnapshotOf(sale))
}

func applyPercent(amount decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(hundred.Sub(percent)).Div(hundred)
}
