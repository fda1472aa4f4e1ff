package clitool

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"bindery/internal/augment"
)

// parseJSON reads a flat JSON object: page_count number, description string,
// genres as either a name->weight object or a plain list of names.
func parseJSON(output []byte) (augment.PartialMetadata, error) {
	var payload struct {
		PageCount   *int64          `json:"page_count"`
		Description *string         `json:"description"`
		Genres      json.RawMessage `json:"genres"`
	}
	if err := json.Unmarshal(output, &payload); err != nil {
		return augment.PartialMetadata{}, fmt.Errorf("decode json output: %w", err)
	}

	result := augment.PartialMetadata{
		PageCount:   payload.PageCount,
		Description: payload.Description,
	}
	if len(payload.Genres) > 0 && string(payload.Genres) != "null" {
		weighted := map[string]float64{}
		if err := json.Unmarshal(payload.Genres, &weighted); err == nil {
			result.Genres = weighted
			return result, nil
		}
		var names []string
		if err := json.Unmarshal(payload.Genres, &names); err != nil {
			return augment.PartialMetadata{}, fmt.Errorf("decode genres: %w", err)
		}
		weighted = make(map[string]float64, len(names))
		for _, name := range names {
			weighted[name] = 1
		}
		result.Genres = weighted
	}
	return result, nil
}

// opfPackage models the slice of an OPF document we care about. Element
// matching is by local name, so dc: prefixes need no namespace handling.
type opfPackage struct {
	Metadata struct {
		Description string   `xml:"description"`
		Subjects    []string `xml:"subject"`
		Meta        []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
}

// parseCalibreOPF reads the OPF document calibre's fetch-ebook-metadata
// prints: dc:description, dc:subject entries as genres, and an optional
// pages meta element.
func parseCalibreOPF(output []byte) (augment.PartialMetadata, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(output, &pkg); err != nil {
		return augment.PartialMetadata{}, fmt.Errorf("decode opf output: %w", err)
	}

	var result augment.PartialMetadata
	if desc := strings.TrimSpace(pkg.Metadata.Description); desc != "" {
		result.Description = &desc
	}
	if len(pkg.Metadata.Subjects) > 0 {
		genres := make(map[string]float64, len(pkg.Metadata.Subjects))
		for _, subject := range pkg.Metadata.Subjects {
			if name := strings.TrimSpace(subject); name != "" {
				genres[name] = 1
			}
		}
		if len(genres) > 0 {
			result.Genres = genres
		}
	}
	for _, meta := range pkg.Metadata.Meta {
		name := strings.TrimPrefix(strings.ToLower(meta.Name), "calibre:")
		if name != "pages" && name != "page_count" {
			continue
		}
		pages, err := strconv.ParseInt(strings.TrimSpace(meta.Content), 10, 64)
		if err == nil && pages > 0 {
			result.PageCount = &pages
			break
		}
	}
	return result, nil
}
