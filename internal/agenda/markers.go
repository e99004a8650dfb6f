package agenda

import "github.com/dukerupert/huddle/internal/model"

// DeriveMarkers lists one mood per item for every date in groups.
func DeriveMarkers(groups []model.AgendaGroup) model.MarkerMap {
	markers := make(model.MarkerMap, len(groups))
	for _, g := range groups {
		for _, item := range g.Items {
			markers[g.Date] = append(markers[g.Date], model.ParseMood(string(item.Mood)))
		}
	}
	return markers
}
