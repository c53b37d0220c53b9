package tagging

import (
	"reflect"
	"testing"
)

func TestComputeMerge(t *testing.T) {
	d := Compute([]string{"Drama", "Oldie"}, []string{"US-Action", "Drama"}, ModeMerge)

	want := []string{"Drama", "Oldie", "US-Action"}
	if !reflect.DeepEqual(d.Final, want) {
		t.Errorf("Final = %v, want %v", d.Final, want)
	}

	// Merge keeps every original and every requested tag.
	for _, tag := range d.Original {
		if !contains(d.Final, tag) {
			t.Errorf("merge dropped original tag %q", tag)
		}
	}
	for _, tag := range d.Requested {
		if !contains(d.Final, tag) {
			t.Errorf("merge dropped requested tag %q", tag)
		}
	}
}

func TestComputeOverwrite(t *testing.T) {
	d := Compute([]string{"Drama", "Oldie"}, []string{"US-Action", "US-Action", "Anime"}, ModeOverwrite)

	want := []string{"Anime", "US-Action"}
	if !reflect.DeepEqual(d.Final, want) {
		t.Errorf("Final = %v, want %v", d.Final, want)
	}
}

func TestComputeChanged(t *testing.T) {
	tests := []struct {
		name      string
		original  []string
		requested []string
		mode      Mode
		want      bool
	}{
		{"merge no-op when subset", []string{"a", "b"}, []string{"a"}, ModeMerge, false},
		{"merge changed by new tag", []string{"a"}, []string{"b"}, ModeMerge, true},
		{"overwrite no-op when identical", []string{"a", "b"}, []string{"b", "a"}, ModeOverwrite, false},
		{"overwrite removes", []string{"a", "b"}, []string{"a"}, ModeOverwrite, true},
		{"both empty", nil, nil, ModeMerge, false},
		{"duplicate originals equal deduped final", []string{"a", "a"}, []string{"a"}, ModeOverwrite, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Compute(tt.original, tt.requested, tt.mode)
			if d.Changed() != tt.want {
				t.Errorf("Changed() = %v, want %v (final %v)", d.Changed(), tt.want, d.Final)
			}
		})
	}
}

func TestDiffAddedRemoved(t *testing.T) {
	d := Compute([]string{"Drama", "Oldie"}, []string{"Anime"}, ModeOverwrite)

	if got := d.Added(); !reflect.DeepEqual(got, []string{"Anime"}) {
		t.Errorf("Added() = %v, want [Anime]", got)
	}
	if got := d.Removed(); !reflect.DeepEqual(got, []string{"Drama", "Oldie"}) {
		t.Errorf("Removed() = %v, want [Drama Oldie]", got)
	}
}

func TestComputeCasePreserving(t *testing.T) {
	d := Compute([]string{"action"}, []string{"Action"}, ModeMerge)

	want := []string{"Action", "action"}
	if !reflect.DeepEqual(d.Final, want) {
		t.Errorf("tags must stay case-distinct: Final = %v, want %v", d.Final, want)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"merge", ModeMerge, false},
		{"Overwrite", ModeOverwrite, false},
		{" MERGE ", ModeMerge, false},
		{"append", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
