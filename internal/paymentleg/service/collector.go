package service

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tenantdesk/internal/paymentleg/domain"
)

// Collector is the mutable list of legs for one open renewal. It is not safe for concurrent
// use; the owning renewal serializes access.
type Collector struct {
	genID *snowflake.Node
	legs  []domain.Leg
}

func NewCollector(genID *snowflake.Node) *Collector {
	return &Collector{genID: genID}
}

// Add appends a leg rounded to cents. An amount that rounds to zero is rejected.
// Overpayment is not checked here.
func (c *Collector) Add(method domain.Method, amount decimal.Decimal, reference string) (snowflake.ID, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return 0, domain.ErrInvalidAmount
	}
	if _, err := domain.ParseMethod(string(method)); err != nil {
		return 0, err
	}

	leg := domain.Leg{
		ID:        c.genID.Generate(),
		Method:    method,
		Amount:    amount,
		Reference: strings.TrimSpace(reference),
	}
	c.legs = append(c.legs, leg)
	return leg.ID, nil
}

// Remove drops the leg with id; unknown ids are ignored.
func (c *Collector) Remove(id snowflake.ID) {
	for i, leg := range c.legs {
		if leg.ID == id {
			c.legs = append(c.legs[:i], c.legs[i+1:]...)
			return
		}
	}
}

func (c *Collector) Total() decimal.Decimal {
	total := decimal.Zero
	for _, leg := range c.legs {
		total = total.Add(leg.Amount)
	}
	return total
}

// Legs returns a copy in insertion order.
func (c *Collector) Legs() []domain.Leg {
	out := make([]domain.Leg, len(c.legs))
	copy(out, c.legs)
	return out
}

func (c *Collector) Len() int {
	return len(c.legs)
}

// Reset discards every leg.
func (c *Collector) Reset() {
	c.legs = nil
}
