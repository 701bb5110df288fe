package domain

// CatalogItem is one selectable model or background. The core only reads
// the id and reference; the catalog itself is owned by a collaborator.
type CatalogItem struct {
	ID     string
	Ref    string
	Gender string
}

// Catalog is a read-only source of selectable items.
type Catalog interface {
	// Models returns model items matching the gender tag. An empty gender
	// matches everything.
	Models(gender string) []CatalogItem
	// Backgrounds returns background items matching the gender tag.
	Backgrounds(gender string) []CatalogItem
}

// FilterByGender keeps items whose gender tag matches, treating an empty
// tag on either side as a wildcard.
func FilterByGender(items []CatalogItem, gender string) []CatalogItem {
	if gender == "" {
		return items
	}
	out := make([]CatalogItem, 0, len(items))
	for _, it := range items {
		if it.Gender == "" || it.Gender == gender {
			out = append(out, it)
		}
	}
	return out
}
