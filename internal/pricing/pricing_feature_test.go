package pricing

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
)

type saleTotalContext struct {
	snapshot  Snapshot
	breakdown Breakdown
}

func (c *saleTotalContext) reset() {
	c.snapshot = Snapshot{}
	c.breakdown = Breakdown{}
}

func (c *saleTotalContext) aSaleItem(price string, quantity int, discount string) error {
	c.snapshot.Items = append(c.snapshot.Items, Line{
		Price:    decimal.RequireFromString(price),
		Quantity: int64(quantity),
		Discount: decimal.RequireFromString(discount),
	})
	return nil
}

func (c *saleTotalContext) aSalePackage(price string, quantity int) error {
	c.snapshot.Packages = append(c.snapshot.Packages, Line{
		Price:    decimal.RequireFromString(price),
		Quantity: int64(quantity),
	})
	return nil
}

func (c *saleTotalContext) theCustomerBelongsToAGroup(discount string) error {
	d := decimal.RequireFromString(discount)
	c.snapshot.GroupDiscount = &d
	return nil
}

func (c *saleTotalContext) theCustomerHasNoGroup() error {
	c.snapshot.GroupDiscount = nil
	return nil
}

func (c *saleTotalContext) theSaleHasASalesDiscount(discount string) error {
	c.snapshot.SalesDiscount = decimal.RequireFromString(discount)
	return nil
}

func (c *saleTotalContext) theSaleTotalIsCalculated() error {
	c.breakdown = Calculate(c.snapshot)
	if !c.breakdown.Total.Equal(CalculateTotal(c.snapshot)) {
		return fmt.Errorf("breakdown total %s differs from CalculateTotal", c.breakdown.Total)
	}
	return nil
}

func expectAmount(label string, got decimal.Decimal, want string) error {
	if !got.Equal(decimal.RequireFromString(want)) {
		return fmt.Errorf("expected %s %s, got %s", label, want, got)
	}
	return nil
}

func (c *saleTotalContext) theSubTotalIs(want string) error {
	return expectAmount("sub total", c.breakdown.SubTotal, want)
}

func (c *saleTotalContext) theTotalAfterCustomerDiscountIs(want string) error {
	return expectAmount("after customer discount", c.breakdown.AfterCustomerDiscount, want)
}

func (c *saleTotalContext) theTotalIs(want string) error {
	return expectAmount("total", c.breakdown.Total, want)
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &saleTotalContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^a sale item priced (\d+(?:\.\d+)?) with quantity (\d+) and discount (\d+(?:\.\d+)?)$`, tc.aSaleItem)
	ctx.Step(`^a sale package priced (\d+(?:\.\d+)?) with quantity (\d+)$`, tc.aSalePackage)
	ctx.Step(`^the customer belongs to a group with discount (\d+(?:\.\d+)?)$`, tc.theCustomerBelongsToAGroup)
	ctx.Step(`^the customer has no group$`, tc.theCustomerHasNoGroup)
	ctx.Step(`^the sale has a sales discount of (\d+(?:\.\d+)?)$`, tc.theSaleHasASalesDiscount)

	ctx.Step(`^the sale total is calculated$`, tc.theSaleTotalIsCalculated)

	ctx.Step(`^the sub total is (\d+(?:\.\d+)?)$`, tc.theSubTotalIs)
	ctx.Step(`^the total after customer discount is (\d+(?:\.\d+)?)$`, tc.theTotalAfterCustomerDiscountIs)
	ctx.Step(`^the total is (\d+(?:\.\d+)?)$`, tc.theTotalIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/sale_total.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
