// Package domain describes the payment instruments an operator collects for a renewal.
package domain

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodMobileWallet Method = "mobile_wallet"
	MethodCard         Method = "card"
)

// Leg is one instrument contributing to a renewal payment.
type Leg struct {
	ID        snowflake.ID    `json:"id"`
	Method    Method          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidMethod = errors.New("invalid_method")
)

// ParseMethod accepts the canonical names plus a few operator spellings.
func ParseMethod(raw string) (Method, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.NewReplacer("-", "_", " ", "_").Replace(value)
	switch value {
	case "cash":
		return MethodCash, nil
	case "bank_transfer", "transfer", "bank":
		return MethodBankTransfer, nil
	case "mobile_wallet", "wallet":
		return MethodMobileWallet, nil
	case "card":
		return MethodCard, nil
	default:
		return "", ErrInvalidMethod
	}
}

// Label renders the method for ledger descriptions.
func (m Method) Label() string {
	switch m {
	case MethodCash:
		return "Cash"
	case MethodBankTransfer:
		return "Bank transfer"
	case MethodMobileWallet:
		return "Mobile wallet"
	case MethodCard:
		return "Card"
	default:
		return string(m)
	}
}
