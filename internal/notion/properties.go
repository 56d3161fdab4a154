package notion

import (
	"github.com/lildude/strautonotion/internal/mapper"
)

type query struct {
	Filter   *filter    `json:"filter,omitempty"`
	Sorts    []sortSpec `json:"sorts,omitempty"`
	PageSize int        `json:"page_size,omitempty"`
}

type filter struct {
	Property string        `json:"property,omitempty"`
	Number   *numberFilter `json:"number,omitempty"`
	Date     *dateFilter   `json:"date,omitempty"`
	Select   *selectFilter `json:"select,omitempty"`
	And      []filter      `json:"and,omitempty"`
}

type numberFilter struct {
	Equals *float64 `json:"equals"`
}

type dateFilter struct {
	Equals string `json:"equals"`
}

type selectFilter struct {
	Equals string `json:"equals"`
}

type sortSpec struct {
	Timestamp string `json:"timestamp,omitempty"`
	Property  string `json:"property,omitempty"`
	Direction string `json:"direction"`
}

type queryResponse struct {
	Results []Page `json:"results"`
	HasMore bool   `json:"has_more"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type createPage struct {
	Parent     parent              `json:"parent"`
	Properties map[string]property `json:"properties"`
}

type updatePage struct {
	Properties map[string]property `json:"properties"`
}

// property is a page property value. Exactly one field is set.
type property struct {
	Title    []richText `json:"title,omitempty"`
	Number   *float64   `json:"number,omitempty"`
	Select   *option    `json:"select,omitempty"`
	Status   *option    `json:"status,omitempty"`
	Date     *date      `json:"date,omitempty"`
	Relation []relation `json:"relation,omitempty"`
}

type richText struct {
	Text text `json:"text"`
}

type text struct {
	Content string `json:"content"`
}

type option struct {
	Name string `json:"name"`
}

type date struct {
	Start string `json:"start"`
}

type relation struct {
	ID string `json:"id"`
}

func number(v float64) property {
	return property{Number: &v}
}

// activityProperties lays a record out as activities database properties.
func activityProperties(r *mapper.Record) map[string]property {
	props := map[string]property{
		PropName:      {Title: []richText{{Text: text{Content: r.Title}}}},
		PropStravaID:  number(float64(r.StravaID)),
		PropType:      {Select: &option{Name: r.Category.String()}},
		PropDate:      {Date: &date{Start: r.Date}},
		PropDistance:  number(r.DistanceKm),
		PropDuration:  number(r.DurationMin),
		PropElevation: number(r.Elevation),
	}
	for name, v := range r.Metrics {
		props[name] = number(v)
	}
	return props
}
