package catalog

import (
	"fmt"
	"sort"
	"strings"

	"forecastd/pkg/types"
)

// Builtin lists the published Kronos variants.
func Builtin() []types.Variant {
	return []types.Variant{
		{
			ID:                "kronos-mini",
			DisplayName:       "Kronos-mini",
			ParamCount:        "4.1M",
			ContextLength:     2048,
			ModelLocator:      "NeoQuasar/Kronos-mini",
			TokenizerLocator:  "NeoQuasar/Kronos-Tokenizer-2k",
			EstimatedAccuracy: 0.8,
			Description:       "Lightweight model, suitable for fast prediction",
		},
		{
			ID:                "kronos-small",
			DisplayName:       "Kronos-small",
			ParamCount:        "24.7M",
			ContextLength:     512,
			ModelLocator:      "NeoQuasar/Kronos-small",
			TokenizerLocator:  "NeoQuasar/Kronos-Tokenizer-base",
			EstimatedAccuracy: 0.85,
			Description:       "Small model, balanced performance and speed",
		},
		{
			ID:                "kronos-base",
			DisplayName:       "Kronos-base",
			ParamCount:        "85.6M",
			ContextLength:     1024,
			ModelLocator:      "NeoQuasar/Kronos-base",
			TokenizerLocator:  "NeoQuasar/Kronos-Tokenizer-large",
			EstimatedAccuracy: 0.88,
			Description:       "Base model, high accuracy",
		},
	}
}

// Catalog is an immutable mapping from variant id to its configuration.
type Catalog struct {
	byID  map[string]types.Variant
	order []string
}

// New builds a catalog from variants. Later entries with the same id replace
// earlier ones, which lets configured variants override the builtins.
func New(variants ...types.Variant) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]types.Variant, len(variants))}
	for _, v := range variants {
		v.ID = strings.TrimSpace(v.ID)
		if v.ID == "" {
			return nil, fmt.Errorf("variant with empty id")
		}
		if v.ContextLength <= 0 {
			return nil, fmt.Errorf("variant %s: context length must be positive, got %d", v.ID, v.ContextLength)
		}
		if v.EstimatedAccuracy < 0 || v.EstimatedAccuracy > 1 {
			return nil, fmt.Errorf("variant %s: estimated accuracy out of range: %v", v.ID, v.EstimatedAccuracy)
		}
		if strings.TrimSpace(v.ModelLocator) == "" || strings.TrimSpace(v.TokenizerLocator) == "" {
			return nil, fmt.Errorf("variant %s: model and tokenizer locators are required", v.ID)
		}
		if v.DisplayName == "" {
			v.DisplayName = v.ID
		}
		if _, seen := c.byID[v.ID]; !seen {
			c.order = append(c.order, v.ID)
		}
		c.byID[v.ID] = v
	}
	return c, nil
}

// WithBuiltins returns the builtin variants followed by extra ones.
func WithBuiltins(extra []types.Variant) (*Catalog, error) {
	all := append(Builtin(), extra...)
	return New(all...)
}

// Lookup returns the variant with the given id.
func (c *Catalog) Lookup(id string) (types.Variant, bool) {
	v, ok := c.byID[id]
	return v, ok
}

// List returns all variants in definition order. The slice is a copy.
func (c *Catalog) List() []types.Variant {
	out := make([]types.Variant, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns the sorted variant ids.
func (c *Catalog) IDs() []string {
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}
