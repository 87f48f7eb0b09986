package coding

import (
	"fmt"
	"strings"

	"github.com/Jerry-OC/mission-control/pkg/models"
)

// Kind identifies how a pattern value is compared against a transaction.
type Kind string

const (
	// KindMerchantExact matches on case-insensitive merchant equality.
	KindMerchantExact Kind = "merchant"
	// KindDescriptionContains matches on a case-insensitive description substring.
	KindDescriptionContains Kind = "description_contains"
	// KindAccountExact matches on case-insensitive account name equality.
	KindAccountExact Kind = "account"
)

// Pattern is a tagged (kind, value) descriptor over transaction fields. An
// unknown kind yields no predicate: Matches is always false and Condition
// reports ok=false, so callers see zero affected rows rather than an error.
type Pattern struct {
	Kind  Kind
	Value string
}

// RulePattern builds a Pattern from the stored rule columns.
func RulePattern(patternType, patternValue string) Pattern {
	return Pattern{Kind: Kind(patternType), Value: patternValue}
}

// Known reports whether the pattern kind is one the matcher understands.
func (p Pattern) Known() bool {
	switch p.Kind {
	case KindMerchantExact, KindDescriptionContains, KindAccountExact:
		return true
	}
	return false
}

// Matches is the pure predicate form of the pattern. Absent fields are
// treated as the empty string.
func (p Pattern) Matches(txn models.Transaction) bool {
	switch p.Kind {
	case KindMerchantExact:
		return strings.EqualFold(deref(txn.Merchant), p.Value)
	case KindDescriptionContains:
		return strings.Contains(strings.ToLower(deref(txn.Description)), strings.ToLower(p.Value))
	case KindAccountExact:
		return strings.EqualFold(deref(txn.AccountName), p.Value)
	}
	return false
}

// argWriter is the piece of a sqlbuilder builder Condition needs: it turns a
// value into a placeholder and collects it as a query argument.
type argWriter interface {
	Var(value any) string
}

// Condition renders the pattern as a parameterized SQL predicate over the
// transactions table. The value is always passed as a bound argument, never
// interpolated. description_contains goes through LIKE, so % and _ inside
// the value act as wildcards there while Matches treats them literally.
func (p Pattern) Condition(b argWriter) (string, bool) {
	switch p.Kind {
	case KindMerchantExact:
		return fmt.Sprintf("lower(coalesce(merchant, '')) = lower(%s)", b.Var(p.Value)), true
	case KindDescriptionContains:
		return fmt.Sprintf("lower(coalesce(description, '')) LIKE lower(%s)", b.Var("%"+p.Value+"%")), true
	case KindAccountExact:
		return fmt.Sprintf("lower(coalesce(account_name, '')) = lower(%s)", b.Var(p.Value)), true
	}
	return "", false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
