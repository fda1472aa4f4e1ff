// Package augment fills missing book metadata from external providers.
//
// Providers are tried in configured order per book; the first provider to
// supply a field wins and later providers never overwrite it. Every provider
// invocation leaves one append-only row in the augmentation log.
package augment

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Request identifies the book a provider should look up. Title and authors
// are hints; BookID is the stable document key.
type Request struct {
	BookID  string
	Title   string
	Authors []string
}

// PartialMetadata is the subset of fields one provider supplied. A nil
// pointer or nil map means "this provider did not supply it", distinct from
// an explicit empty value.
type PartialMetadata struct {
	PageCount   *int64
	Description *string
	Genres      map[string]float64
}

// Empty reports whether the provider supplied nothing at all.
func (m PartialMetadata) Empty() bool {
	return m.PageCount == nil && m.Description == nil && m.Genres == nil
}

// Provider is the metadata-source capability. Fetch returns a partial result
// or an error wrapped with one of the classification markers in this package.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req Request) (PartialMetadata, error)
}

var genreCaser = cases.Lower(language.English)

// NormalizeGenres canonicalizes genre names to trimmed lower case, summing
// weights when two raw names collapse onto one. Empty names are dropped.
func NormalizeGenres(raw map[string]float64) map[string]float64 {
	if raw == nil {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for name, weight := range raw {
		canonical := genreCaser.String(strings.TrimSpace(name))
		if canonical == "" {
			continue
		}
		out[canonical] += weight
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
