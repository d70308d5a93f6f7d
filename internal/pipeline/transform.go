package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-kfi/internal/domain"
)

// ToTransactions converts candidate records into typed transactions. A record
// without a valid YYYY-MM-DD date is rejected; every other field degrades to a
// zero value. The returned slice holds all accepted records even when the
// error (a *multierror.Error listing the rejections) is non-nil.
func ToTransactions(records []Record) ([]domain.Transaction, error) {
	txs := make([]domain.Transaction, 0, len(records))
	var result *multierror.Error

	for i, rec := range records {
		tx, err := toTransaction(rec)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("record %d: %w", i+1, err))
			continue
		}
		txs = append(txs, tx)
	}

	return txs, result.ErrorOrNil()
}

func toTransaction(rec Record) (domain.Transaction, error) {
	dateStr := strings.TrimSpace(rec[FieldDate])
	date, err := civil.ParseDate(dateStr)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	return domain.Transaction{
		Date:            date,
		Description:     strings.TrimSpace(rec[FieldDescription]),
		TransactionType: domain.TransactionType(strings.ToLower(strings.TrimSpace(rec[FieldTransactionType]))),
		Amount:          parseAmount(rec[FieldAmount]).Abs().InexactFloat64(),
		Balance:         parseAmount(rec[FieldBalance]).InexactFloat64(),
		Currency:        strings.ToUpper(strings.TrimSpace(rec[FieldCurrency])),
	}, nil
}

// parseAmount reads a monetary value, ignoring thousands separators, currency
// symbols and codes, and whitespace. An amount in parentheses is negative.
// Anything unreadable is zero.
func parseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	negative := false
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		d = parseLooseAmount(s)
	}
	if negative {
		d = d.Abs().Neg()
	}
	return d
}

func parseLooseAmount(s string) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsDigit(r), r == '.', r == '-', r == '+':
			return r
		default:
			return -1
		}
	}, s)

	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}
