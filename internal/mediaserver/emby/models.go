package emby

import "strings"

// TagItem is the structured tag representation some server versions
// return alongside the flat Tags list.
type TagItem struct {
	Name string `json:"Name"`
}

// UserData carries per-user item state.
type UserData struct {
	IsFavorite bool `json:"IsFavorite"`
}

// Item is the subset of a media item the tagging pipeline reads.
// Writes never round-trip this struct; the writer works on the raw
// representation so unrelated fields survive the update.
type Item struct {
	ID           string            `json:"Id"`
	Name         string            `json:"Name"`
	Type         string            `json:"Type"`
	ProviderIDs  map[string]string `json:"ProviderIds"`
	Tags         []string          `json:"Tags"`
	TagItems     []TagItem         `json:"TagItems"`
	LockedFields []string          `json:"LockedFields"`
	UserData     *UserData         `json:"UserData,omitempty"`
}

// TMDBID returns the item's TMDB provider id, or empty when absent.
func (i *Item) TMDBID() string {
	for k, v := range i.ProviderIDs {
		if strings.EqualFold(k, "tmdb") {
			return v
		}
	}
	return ""
}

// CurrentTags returns the item's tag set. The flat Tags list wins when
// both representations are non-empty; the structured TagItems list is
// the fallback.
func (i *Item) CurrentTags() []string {
	if len(i.Tags) > 0 {
		return i.Tags
	}
	out := make([]string, 0, len(i.TagItems))
	for _, ti := range i.TagItems {
		if ti.Name != "" {
			out = append(out, ti.Name)
		}
	}
	return out
}

// ItemsResult is a page of an item enumeration.
type ItemsResult struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// SystemInfo is the server identity returned by the info endpoint.
type SystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}
