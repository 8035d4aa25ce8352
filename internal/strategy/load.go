package strategy

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// knownPlaceholders is the closed set a parameter template may reference.
// Everything resolves from RuleContext; there is no access to step output
// here, dependencies between steps are expressed with "needs".
var knownPlaceholders = map[string]bool{
	"{order_id}":         true,
	"{order_status}":     true,
	"{order_total}":      true,
	"{order_items}":      true,
	"{customer_id}":      true,
	"{customer_tier}":    true,
	"{requested_change}": true,
	"{pending_address}":  true,
}

var placeholderPattern = regexp.MustCompile(`\{[^{}]*\}`)

// document mirrors the YAML layout:
//
//	strategies:
//	  - id: cancel-reorder-gift-card
//	    name: Cancel and Reorder with Gift Card
//	    conditions:
//	      - order shipped
//	    actions:
//	      - do: cancel the shipped order
//	        tool: cancelOrder
//	        params:
//	          orderId: "{order_id}"
type document struct {
	Strategies []strategyDoc `mapstructure:"strategies"`
}

type strategyDoc struct {
	ID         string      `mapstructure:"id"`
	Name       string      `mapstructure:"name"`
	Conditions []string    `mapstructure:"conditions"`
	Actions    []actionDoc `mapstructure:"actions"`
}

type actionDoc struct {
	Do     string            `mapstructure:"do"`
	Tool   string            `mapstructure:"tool"`
	Params map[string]string `mapstructure:"params"`
	Needs  string            `mapstructure:"needs"`
}

// loadDocument reads and validates the strategy document with a dedicated
// Viper instance, so application configuration and business rules never
// share state. All structural defects are ErrConfiguration; an
// unrecognized condition clause only logs a warning and leaves that
// strategy unselectable through the false-evaluating clause.
func loadDocument(path string, knownTools map[string]bool, logger *slog.Logger) ([]Strategy, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading strategy document %s: %w", path, err)
	}

	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrConfiguration, path, err)
	}
	if len(doc.Strategies) == 0 {
		return nil, fmt.Errorf("%w: %s declares no strategies", ErrConfiguration, path)
	}

	seen := make(map[string]bool, len(doc.Strategies))
	strategies := make([]Strategy, 0, len(doc.Strategies))
	for _, sd := range doc.Strategies {
		if strings.TrimSpace(sd.ID) == "" {
			return nil, fmt.Errorf("%w: strategy with empty id", ErrConfiguration)
		}
		if seen[sd.ID] {
			return nil, fmt.Errorf("%w: duplicate strategy id %q", ErrConfiguration, sd.ID)
		}
		seen[sd.ID] = true
		if strings.TrimSpace(sd.Name) == "" {
			return nil, fmt.Errorf("%w: strategy %q has no name", ErrConfiguration, sd.ID)
		}
		if len(sd.Actions) == 0 {
			return nil, fmt.Errorf("%w: strategy %q has no actions", ErrConfiguration, sd.ID)
		}

		s := Strategy{
			ID:         sd.ID,
			Name:       sd.Name,
			Conditions: append([]string(nil), sd.Conditions...),
			Actions:    make([]Action, 0, len(sd.Actions)),
			conds:      make([]clause, 0, len(sd.Conditions)),
		}

		for _, raw := range sd.Conditions {
			c := parseClause(raw)
			if c.kind == clauseUnknown {
				logger.Warn("unrecognized condition clause evaluates false",
					"strategy", sd.ID,
					"clause", raw)
			}
			s.conds = append(s.conds, c)
		}

		for i, ad := range sd.Actions {
			if strings.TrimSpace(ad.Tool) == "" {
				return nil, fmt.Errorf("%w: strategy %q action %d names no tool", ErrConfiguration, sd.ID, i)
			}
			if !knownTools[ad.Tool] {
				return nil, fmt.Errorf("%w: strategy %q action %d references unknown tool %q",
					ErrConfiguration, sd.ID, i, ad.Tool)
			}
			switch ad.Needs {
			case "":
			case "previous":
				if i == 0 {
					return nil, fmt.Errorf("%w: strategy %q first action cannot need a previous step",
						ErrConfiguration, sd.ID)
				}
			default:
				return nil, fmt.Errorf("%w: strategy %q action %d: needs must be \"previous\", got %q",
					ErrConfiguration, sd.ID, i, ad.Needs)
			}

			params := make(map[string]string, len(ad.Params))
			for key, tpl := range ad.Params {
				for _, ph := range placeholderPattern.FindAllString(tpl, -1) {
					if !knownPlaceholders[ph] {
						return nil, fmt.Errorf("%w: strategy %q action %d: unknown placeholder %s",
							ErrConfiguration, sd.ID, i, ph)
					}
				}
				if strings.Contains(tpl, "{order_items}") && tpl != "{order_items}" {
					return nil, fmt.Errorf("%w: strategy %q action %d: {order_items} must stand alone",
						ErrConfiguration, sd.ID, i)
				}
				params[key] = tpl
			}

			s.Actions = append(s.Actions, Action{
				Note:   ad.Do,
				Tool:   ad.Tool,
				Params: params,
				Needs:  ad.Needs,
			})
		}

		strategies = append(strategies, s)
	}
	return strategies, nil
}
