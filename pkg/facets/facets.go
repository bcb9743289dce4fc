// Package facets converts the faceting section of a CKAN package_search
// result into an ordered list of (name, count) items.
//
// CKAN has returned facets in several incompatible shapes over its
// versions. Each shape has its own decoder; decoders are tried in a fixed
// precedence order and the first one that recognises the input wins. An
// input no decoder recognises yields an empty list, never an error.
package facets

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Item is one facet value.
type Item struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	DisplayName string `json:"display_name,omitempty"`
}

// Label returns the display name, falling back to the name.
func (i Item) Label() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Name
}

// Common facet fields.
const (
	FieldTags         = "tags"
	FieldGroups       = "groups"
	FieldOrganization = "organization"
	FieldResFormat    = "res_format"
)

const (
	searchFacetsKey = "search_facets"
	facetsKey       = "facets"
	itemsKey        = "items"
)

// decoder recognises one facet shape. ok is false when the shape does not
// match, letting the next decoder try.
type decoder func(result gjson.Result, field string) (items []Item, ok bool)

// decoders in precedence order.
var decoders = []decoder{
	decodeSearchFacetItems,
	decodeFacetArray,
	decodeFacetMap,
}

// Normalize extracts the facet items for field from a raw package_search
// result. Items keep source order.
func Normalize(raw []byte, field string) []Item {
	if !gjson.ValidBytes(raw) {
		return []Item{}
	}
	return NormalizeResult(gjson.ParseBytes(raw), field)
}

// NormalizeResult is Normalize for an already parsed result.
func NormalizeResult(result gjson.Result, field string) []Item {
	if !result.IsObject() {
		return []Item{}
	}
	for _, decode := range decoders {
		if items, ok := decode(result, field); ok {
			return items
		}
	}
	return []Item{}
}

// decodeSearchFacetItems handles search_facets.<field>.items, an array of
// {name, display_name, count} objects.
func decodeSearchFacetItems(result gjson.Result, field string) ([]Item, bool) {
	items := child(child(child(result, searchFacetsKey), field), itemsKey)
	if !items.IsArray() {
		return nil, false
	}
	out := make([]Item, 0, len(items.Array()))
	for _, el := range items.Array() {
		out = appendItem(out, objectItem(el))
	}
	return out, true
}

// decodeFacetArray handles facets.<field> as an array, either of objects
// shaped like search_facets items or of plain names without counts.
func decodeFacetArray(result gjson.Result, field string) ([]Item, bool) {
	arr := child(child(result, facetsKey), field)
	if !arr.IsArray() {
		return nil, false
	}
	elems := arr.Array()
	out := make([]Item, 0, len(elems))
	if len(elems) > 0 && elems[0].IsObject() {
		for _, el := range elems {
			out = appendItem(out, objectItem(el))
		}
		return out, true
	}
	for _, el := range elems {
		out = appendItem(out, Item{Name: stringForm(el)})
	}
	return out, true
}

// decodeFacetMap handles facets.<field> as an object of name -> count.
// Counts that are not numbers are parsed, and become 0 when unparseable.
func decodeFacetMap(result gjson.Result, field string) ([]Item, bool) {
	obj := child(child(result, facetsKey), field)
	if !obj.IsObject() {
		return nil, false
	}
	out := []Item{}
	obj.ForEach(func(key, value gjson.Result) bool {
		out = appendItem(out, Item{Name: key.String(), Count: coerceCount(value)})
		return true
	})
	return out, true
}

// objectItem maps a facet entry. A missing name falls back to display_name,
// then to the entry's string form; a missing or non-numeric count is 0.
func objectItem(el gjson.Result) Item {
	item := Item{}

	if dn := el.Get("display_name"); dn.Type == gjson.String {
		item.DisplayName = dn.Str
	}

	switch name := el.Get("name"); {
	case truthy(name):
		item.Name = stringForm(name)
	case item.DisplayName != "":
		item.Name = item.DisplayName
	default:
		item.Name = stringForm(el)
	}

	if c := el.Get("count"); c.Type == gjson.Number {
		item.Count = clampCount(c.Num)
	}
	return item
}

// appendItem drops entries that ended up without a usable name.
func appendItem(items []Item, item Item) []Item {
	if item.Name == "" {
		return items
	}
	return append(items, item)
}

// child returns the value stored under key in an object. It compares keys
// literally, so field names containing path syntax are safe.
func child(obj gjson.Result, key string) gjson.Result {
	var found gjson.Result
	if !obj.IsObject() {
		return found
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
			return false
		}
		return true
	})
	return found
}

// truthy mirrors loose truthiness for a facet name: present, not null,
// not false, not 0 and not empty.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}

// stringForm converts a scalar to its string form, or returns raw JSON for
// compound values.
func stringForm(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Null:
		return "null"
	case gjson.JSON:
		return r.Raw
	default:
		return r.String()
	}
}

func coerceCount(v gjson.Result) int {
	switch v.Type {
	case gjson.Number:
		return clampCount(v.Num)
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0
		}
		return clampCount(f)
	default:
		return 0
	}
}

func clampCount(f float64) int {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case math.IsInf(f, 1) || f >= float64(math.MaxInt):
		return math.MaxInt
	}
	return int(f)
}

// SortByCount orders items by count descending, then name ascending
// (case-sensitive). The sort is stable, so sorting a sorted list is a no-op.
func SortByCount(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Name < items[j].Name
	})
}

// Filter keeps items whose name contains query, case-insensitively. An
// empty query keeps everything.
func Filter(items []Item, query string) []Item {
	if query == "" {
		return items
	}
	needle := strings.ToLower(query)
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), needle) {
			out = append(out, it)
		}
	}
	return out
}

// Limit truncates items to at most n entries. n <= 0 keeps everything.
func Limit(items []Item, n int) []Item {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}

// TagListing applies the tag listing post-processing: filter by query,
// sort by count, truncate to limit. Group listings keep source order and
// do not use it.
func TagListing(items []Item, query string, limit int) []Item {
	filtered := Filter(items, query)
	out := make([]Item, 0, len(filtered))
	out = append(out, filtered...)
	SortByCount(out)
	return Limit(out, limit)
}

// Total sums the counts of items.
func Total(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Count
	}
	return total
}
