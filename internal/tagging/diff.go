package tagging

import "sort"

// Diff captures one tag write decision: the item's original tags, the
// tags the rules requested, and the final set under the write mode.
type Diff struct {
	Original  []string `json:"original"`
	Requested []string `json:"requested"`
	Mode      Mode     `json:"mode"`
	Final     []string `json:"final"`
}

// Compute builds the final tag set: sorted deduplication of the union
// for merge, of the requested set alone for overwrite. Tag strings are
// case-preserving; comparison is exact.
func Compute(original, requested []string, mode Mode) Diff {
	var final []string
	if mode == ModeOverwrite {
		final = dedupSorted(requested)
	} else {
		merged := make([]string, 0, len(original)+len(requested))
		merged = append(merged, original...)
		merged = append(merged, requested...)
		final = dedupSorted(merged)
	}

	return Diff{
		Original:  original,
		Requested: requested,
		Mode:      mode,
		Final:     final,
	}
}

// Changed reports whether applying the diff would alter the item's tag
// set. An unchanged set must not be written upstream.
func (d Diff) Changed() bool {
	return !equalSets(d.Original, d.Final)
}

// Added returns the tags present in the final set but not the original.
func (d Diff) Added() []string {
	return subtract(d.Final, d.Original)
}

// Removed returns the tags present in the original set but not the final.
func (d Diff) Removed() []string {
	return subtract(d.Original, d.Final)
}

func dedupSorted(tags []string) []string {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func equalSets(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, t := range a {
		as[t] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, t := range b {
		bs[t] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for t := range as {
		if _, ok := bs[t]; !ok {
			return false
		}
	}
	return true
}

func subtract(a, b []string) []string {
	bs := make(map[string]struct{}, len(b))
	for _, t := range b {
		bs[t] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, t := range a {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := bs[t]; !ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
