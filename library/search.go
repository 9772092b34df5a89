package library

import (
	"sort"
	"strings"
)

// SearchMedia matches keyword against titles and, where the variant has one,
// the author. Matching is case-insensitive; an empty keyword matches all.
// Results are ordered by title, ignoring case.
func (l *Library) SearchMedia(keyword string) []MediaItem {
	q := strings.ToLower(keyword)
	var results []MediaItem
	for _, item := range l.ListItems() {
		author, _ := item.Author()
		if strings.Contains(strings.ToLower(item.Title), q) || strings.Contains(strings.ToLower(author), q) {
			results = append(results, item)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return strings.ToLower(results[i].Title) < strings.ToLower(results[j].Title)
	})
	return results
}

// SearchMembers matches keyword against member names, case-insensitively,
// and orders the results by name.
func (l *Library) SearchMembers(keyword string) []Member {
	q := strings.ToLower(keyword)
	var results []Member
	for _, m := range l.ListMembers() {
		if strings.Contains(strings.ToLower(m.Name), q) {
			results = append(results, m)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return strings.ToLower(results[i].Name) < strings.ToLower(results[j].Name)
	})
	return results
}
