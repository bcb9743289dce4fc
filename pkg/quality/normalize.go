package quality

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Section names as they appear in MQA payloads.
const (
	sectionAccessibility    = "accessibility"
	sectionReusability      = "reusability"
	sectionInteroperability = "interoperability"
	sectionFindability      = "findability"
)

// metricSpec maps one sub-metric of the report to its payload keys.
type metricSpec struct {
	section string
	// field is the sub-metric name in the report and in legacy payloads.
	field string
	// key is the metric key inside the MQA section array.
	key string
	// fallback is consulted when key yields no signal.
	fallback string
	set      func(r *Report, a *Availability)
}

var metricSpecs = []metricSpec{
	{sectionAccessibility, "accessUrl", "accessUrlAvailability", "accessUrlStatusCode",
		func(r *Report, a *Availability) { r.accessibility().AccessURL = a }},
	{sectionAccessibility, "downloadUrl", "downloadUrlAvailability", "downloadUrlStatusCode",
		func(r *Report, a *Availability) { r.accessibility().DownloadURL = a }},
	{sectionReusability, "licence", "licenceAvailability", "",
		func(r *Report, a *Availability) { r.reusability().Licence = a }},
	{sectionReusability, "contactPoint", "contactPointAvailability", "",
		func(r *Report, a *Availability) { r.reusability().ContactPoint = a }},
	{sectionReusability, "publisher", "publisherAvailability", "",
		func(r *Report, a *Availability) { r.reusability().Publisher = a }},
	{sectionInteroperability, "format", "formatAvailability", "",
		func(r *Report, a *Availability) { r.interoperability().Format = a }},
	{sectionInteroperability, "mediaType", "mediaTypeAvailability", "",
		func(r *Report, a *Availability) { r.interoperability().MediaType = a }},
	{sectionFindability, "keyword", "keywordAvailability", "",
		func(r *Report, a *Availability) { r.findability().Keyword = a }},
	{sectionFindability, "category", "categoryAvailability", "",
		func(r *Report, a *Availability) { r.findability().Category = a }},
	{sectionFindability, "spatial", "spatialAvailability", "",
		func(r *Report, a *Availability) { r.findability().Spatial = a }},
	{sectionFindability, "temporal", "temporalAvailability", "",
		func(r *Report, a *Availability) { r.findability().Temporal = a }},
}

// Normalize converts an MQA payload into a Report. It never fails: shapes
// it does not recognise produce a report without the affected fields.
//
// The current service nests the report under result.results[0]. When that
// entry is missing the payload is read as the older flat shape, where each
// sub-metric is already {"available": bool}.
func Normalize(raw []byte) Report {
	if !gjson.ValidBytes(raw) {
		return Report{Legacy: true, Raw: raw}
	}
	root := gjson.ParseBytes(raw)

	entry := root.Get("result.results.0")
	if !entry.IsObject() {
		return normalizeLegacy(root, raw)
	}

	r := Report{
		Raw:              raw,
		Accessibility:    &Accessibility{},
		Reusability:      &Reusability{},
		Interoperability: &Interoperability{},
		Findability:      &Findability{},
	}
	if id := entry.Get("info.dataset-id"); id.Type == gjson.String {
		r.ID = id.Str
	}
	r.Score = number(entry.Get("info.score"))

	for _, spec := range metricSpecs {
		section := entry.Get(spec.section)
		a := metricAvailability(sectionMetric(section, spec.key))
		if a == nil && spec.fallback != "" {
			a = metricAvailability(sectionMetric(section, spec.fallback))
		}
		if a != nil {
			spec.set(&r, a)
		}
	}
	return r
}

// normalizeLegacy reads the flat shape. Sections appear only when the
// payload has at least one recognised sub-metric for them.
func normalizeLegacy(root gjson.Result, raw []byte) Report {
	r := Report{Legacy: true, Raw: raw}
	if !root.IsObject() {
		return r
	}
	if id := root.Get("id"); id.Type == gjson.String {
		r.ID = id.Str
	}
	r.Score = number(root.Get("info.score"))

	for _, spec := range metricSpecs {
		v := root.Get(spec.section + "." + spec.field + ".available")
		if v.IsBool() {
			spec.set(&r, availabilityOf(v.Bool()))
		}
	}
	return r
}

// sectionMetric scans a section, an array of single-key objects, for the
// entry holding key.
func sectionMetric(section gjson.Result, key string) gjson.Result {
	if !section.IsArray() {
		return gjson.Result{}
	}
	for _, item := range section.Array() {
		if !item.IsObject() {
			continue
		}
		var found gjson.Result
		present := false
		item.ForEach(func(k, v gjson.Result) bool {
			if k.String() == key {
				found, present = v, true
				return false
			}
			return true
		})
		if present {
			return found
		}
	}
	return gjson.Result{}
}

// metricAvailability evaluates a metric value. Booleans are used directly;
// arrays of {name, percentage} are evaluated by arrayAvailability; anything
// else carries no signal.
func metricAvailability(v gjson.Result) *Availability {
	switch {
	case v.IsBool():
		return availabilityOf(v.Bool())
	case v.IsArray():
		return arrayAvailability(v)
	default:
		return nil
	}
}

// arrayAvailability evaluates an array of {name, percentage} buckets.
//
// A "yes" bucket decides alone: available when its percentage is positive.
// Otherwise a bucket whose name starts with "2" and has a positive
// percentage means available; this assumes the service labels HTTP
// status classes by code (200, 2xx) and is not a documented contract.
// Buckets without either yield false. No usable buckets yield no signal.
func arrayAvailability(v gjson.Result) *Availability {
	byName := make(map[string]float64)
	for _, entry := range v.Array() {
		if !entry.IsObject() {
			continue
		}
		name, pct := entry.Get("name"), entry.Get("percentage")
		if name.Type != gjson.String || pct.Type != gjson.Number {
			continue
		}
		byName[strings.ToLower(name.Str)] = pct.Num
	}

	if yes, ok := byName["yes"]; ok {
		return availabilityOf(yes > 0)
	}
	if len(byName) == 0 {
		return nil
	}
	for name, pct := range byName {
		if strings.HasPrefix(name, "2") && pct > 0 {
			return availabilityOf(true)
		}
	}
	return availabilityOf(false)
}

func number(v gjson.Result) *float64 {
	if v.Type != gjson.Number {
		return nil
	}
	n := v.Num
	return &n
}

func (r *Report) accessibility() *Accessibility {
	if r.Accessibility == nil {
		r.Accessibility = &Accessibility{}
	}
	return r.Accessibility
}

func (r *Report) reusability() *Reusability {
	if r.Reusability == nil {
		r.Reusability = &Reusability{}
	}
	return r.Reusability
}

func (r *Report) interoperability() *Interoperability {
	if r.Interoperability == nil {
		r.Interoperability = &Interoperability{}
	}
	return r.Interoperability
}

func (r *Report) findability() *Findability {
	if r.Findability == nil {
		r.Findability = &Findability{}
	}
	return r.Findability
}
