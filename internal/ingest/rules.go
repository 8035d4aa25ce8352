package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/koopa0/kiosk/internal/knowledge"
)

// ruleDocument mirrors the YAML layout of one rule file:
//
//	rules:
//	  - category: shipping
//	    content: Orders over $500 require a signature on delivery.
//	    applies_to: orders with total >= 500
//	    exceptions: digital goods and gift cards
type ruleDocument struct {
	Rules []ruleDoc `mapstructure:"rules"`
}

type ruleDoc struct {
	Category   string `mapstructure:"category"`
	Content    string `mapstructure:"content"`
	AppliesTo  string `mapstructure:"applies_to"`
	Exceptions string `mapstructure:"exceptions"`
}

// SeedRules loads every .yaml/.yml file under dir into the business-rule
// collection and returns the number of rules upserted. Files are
// processed in name order; a defective file fails the run before any of
// its rules are written, but rules from earlier files stay.
func (ing *Ingestor) SeedRules(ctx context.Context, dir string) (int, error) {
	release, err := ing.lock()
	if err != nil {
		return 0, err
	}
	defer release()

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		found, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return 0, fmt.Errorf("listing rule files in %s: %w", dir, err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no rule files found in %s", dir)
	}
	sort.Strings(paths)

	total := 0
	for _, path := range paths {
		n, err := ing.seedFile(ctx, path)
		if err != nil {
			return total, err
		}
		total += n
		ing.logger.Info("seeded rule file", "path", path, "rules", n)
	}
	return total, nil
}

func (ing *Ingestor) seedFile(ctx context.Context, path string) (int, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return 0, fmt.Errorf("reading rule file %s: %w", path, err)
	}

	var doc ruleDocument
	if err := v.Unmarshal(&doc); err != nil {
		return 0, fmt.Errorf("parsing rule file %s: %w", path, err)
	}
	if len(doc.Rules) == 0 {
		return 0, fmt.Errorf("rule file %s declares no rules", path)
	}
	for i, r := range doc.Rules {
		if strings.TrimSpace(r.Content) == "" {
			return 0, fmt.Errorf("rule file %s: rule %d has no content", path, i)
		}
	}

	sourceURL := "file://" + filepath.ToSlash(path)
	for _, r := range doc.Rules {
		err := ing.store.Upsert(ctx, knowledge.Entry{
			Collection: knowledge.CollectionBusinessRule,
			Category:   strings.TrimSpace(r.Category),
			Content:    strings.TrimSpace(r.Content),
			AppliesTo:  strings.TrimSpace(r.AppliesTo),
			Exceptions: strings.TrimSpace(r.Exceptions),
			SourceURL:  sourceURL,
		})
		if err != nil {
			return 0, fmt.Errorf("upserting rule from %s: %w", path, err)
		}
	}
	return len(doc.Rules), nil
}
