package strategy

import (
	"strconv"
	"strings"
	"time"
)

// clauseKind tags the recognized condition shapes. The vocabulary is
// closed: anything else parses as clauseUnknown and evaluates false.
type clauseKind int

const (
	clauseUnknown clauseKind = iota
	clauseOrderStatus
	clauseOrderAgeUnder
	clauseOrderAgeOver
	clauseCustomerTier
	clauseRequestedChange
)

// clause is one parsed condition. raw keeps the document text for logs.
type clause struct {
	kind   clauseKind
	raw    string
	value  string
	dur    time.Duration
	negate bool
}

// orderStatuses are the states the "order <status>" shorthand recognizes.
// The long form "order status == x" takes any value.
var orderStatuses = map[string]bool{
	"pending":    true,
	"processing": true,
	"shipped":    true,
	"delivered":  true,
	"cancelled":  true,
	"returned":   true,
}

// parseClause maps a condition's text onto the closed vocabulary:
//
//	order status == shipped     order status != cancelled
//	order shipped               (shorthand for status equality)
//	order age < 24h             order age > 30d
//	customer tier == gold       customer tier != standard
//	requested change == address requested change != cancel
//
// An unrecognized shape comes back as clauseUnknown rather than an error;
// the loader warns about it once and Evaluate treats it as false, so a
// typo in one strategy disables that strategy instead of the whole
// document.
func parseClause(raw string) clause {
	c := clause{kind: clauseUnknown, raw: raw}
	f := strings.Fields(strings.ToLower(raw))

	switch {
	case len(f) == 2 && f[0] == "order" && orderStatuses[f[1]]:
		c.kind, c.value = clauseOrderStatus, f[1]
	case len(f) == 4 && f[0] == "order" && f[1] == "status" && isComparator(f[2]):
		c.kind, c.value, c.negate = clauseOrderStatus, f[3], f[2] == "!="
	case len(f) == 4 && f[0] == "order" && f[1] == "age" && (f[2] == "<" || f[2] == ">"):
		d, ok := parseAge(f[3])
		if !ok {
			break
		}
		c.dur = d
		if f[2] == "<" {
			c.kind = clauseOrderAgeUnder
		} else {
			c.kind = clauseOrderAgeOver
		}
	case len(f) == 4 && f[0] == "customer" && f[1] == "tier" && isComparator(f[2]):
		c.kind, c.value, c.negate = clauseCustomerTier, f[3], f[2] == "!="
	case len(f) == 4 && f[0] == "requested" && f[1] == "change" && isComparator(f[2]):
		c.kind, c.value, c.negate = clauseRequestedChange, f[3], f[2] == "!="
	}
	return c
}

func isComparator(s string) bool { return s == "==" || s == "!=" }

// parseAge reads durations like "24h" or "90m" via time.ParseDuration,
// plus a "d" suffix for whole days, which rule authors reach for far more
// often than hours.
func parseAge(s string) (time.Duration, bool) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

// eval runs the clause against the context. Unknown facts fail closed: a
// clause about order status is false while no order is in view, including
// its negated form.
func (c clause) eval(rctx RuleContext) bool {
	switch c.kind {
	case clauseOrderStatus:
		s := strings.ToLower(strings.TrimSpace(rctx.OrderStatus))
		if s == "" {
			return false
		}
		return (s == c.value) != c.negate
	case clauseOrderAgeUnder:
		return rctx.OrderAge > 0 && rctx.OrderAge < c.dur
	case clauseOrderAgeOver:
		return rctx.OrderAge > c.dur
	case clauseCustomerTier:
		s := strings.ToLower(strings.TrimSpace(rctx.CustomerTier))
		if s == "" {
			return false
		}
		return (s == c.value) != c.negate
	case clauseRequestedChange:
		s := strings.ToLower(strings.TrimSpace(rctx.RequestedChange))
		if s == "" {
			return false
		}
		return (s == c.value) != c.negate
	default:
		return false
	}
}

// satisfied reports whether every condition of the strategy holds. An
// empty condition list is vacuously satisfied; such a strategy ranks last
// during selection since longer condition lists win.
func (s *Strategy) satisfied(rctx RuleContext) bool {
	for _, c := range s.conds {
		if !c.eval(rctx) {
			return false
		}
	}
	return true
}
