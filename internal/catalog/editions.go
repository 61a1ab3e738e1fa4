package catalog

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/normalize"
)

// Editions returns the default editions plus the custom editions of the profile, sorted.
func (c *Catalog) Editions() []string {
	c.mu.RLock()
	custom := slices.Clone(c.data.CustomEditions)
	c.mu.RUnlock()

	all := make([]string, 0, len(domain.DefaultEditions)+len(custom))
	seen := make(map[string]bool, cap(all))
	for _, e := range slices.Concat(domain.DefaultEditions, custom) {
		key := normalize.Fold(e)
		if seen[key] {
			continue
		}
		seen[key] = true
		all = append(all, e)
	}

	slices.SortFunc(all, func(a, b string) int {
		if r := normalize.Compare(a, b); r != 0 {
			return r
		}
		return strings.Compare(a, b)
	})
	return all
}

// CustomEditions returns the user-defined editions in the order they were added.
func (c *Catalog) CustomEditions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.data.CustomEditions)
}

// AddCustomEdition adds name to the custom editions.
// Names are trimmed and must be unique case-insensitively among all editions.
func (c *Catalog) AddCustomEdition(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		return "", domainerrors.Validation("edition name is required")
	case n > domain.MaxEditionLength:
		return "", domainerrors.Validationf("edition name must not exceed %d characters", domain.MaxEditionLength)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	isSame := func(e string) bool { return normalize.EqualFold(e, name) }
	if slices.ContainsFunc(domain.DefaultEditions, isSame) || slices.ContainsFunc(c.data.CustomEditions, isSame) {
		return "", domainerrors.ValidationWithDetails("edition already exists", map[string]string{"edition": name})
	}

	next := c.data.Clone()
	next.CustomEditions = append(next.CustomEditions, name)
	if err := c.commit(ctx, next); err != nil {
		return "", err
	}

	c.logger.Info("custom edition added", "edition", name)
	return name, nil
}

// RemoveCustomEdition removes a custom edition, matched case-insensitively.
// Default editions cannot be removed.
func (c *Catalog) RemoveCustomEdition(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	isSame := func(e string) bool { return normalize.EqualFold(e, name) }
	idx := slices.IndexFunc(c.data.CustomEditions, isSame)
	if idx < 0 {
		if slices.ContainsFunc(domain.DefaultEditions, isSame) {
			return domainerrors.Protectedf("%q is a built-in edition", name)
		}
		return domainerrors.NotFoundf("edition %q not found", name)
	}

	next := c.data.Clone()
	removed := next.CustomEditions[idx]
	next.CustomEditions = slices.Delete(next.CustomEditions, idx, idx+1)
	if err := c.commit(ctx, next); err != nil {
		return err
	}

	c.logger.Info("custom edition removed", "edition", removed)
	return nil
}
