// ABOUTME: Immutable now-playing state published by a monitor
// ABOUTME: Constructors enforce that a not-found state never carries stale track fields
package track

import "strings"

// State is the latest known answer for one stream. Values are never mutated after
// construction; monitors publish a new State instead.
type State struct {
	Found        bool    `json:"found"`
	Title        *string `json:"title"`
	Artist       *string `json:"artist"`
	Cover        *string `json:"cover"`
	StationLabel *string `json:"station_label"`
}

// Empty is the canonical "nothing playing" value returned for unmonitored streams.
func Empty() State {
	return State{}
}

// NotFound is the cleared state of a monitored station.
func NotFound(label string) State {
	return State{StationLabel: &label}
}

// Playing builds a found state. An empty cover is stored as absent.
func Playing(label, title, artist, cover string) State {
	s := State{
		Found:        true,
		Title:        &title,
		Artist:       &artist,
		StationLabel: &label,
	}
	if cover != "" {
		s.Cover = &cover
	}
	return s
}

// IdentityKey is the dedup key for a track.
func IdentityKey(artist, title string) string {
	return artist + " - " + title
}

// Valid reports whether s satisfies the publishing invariants.
func (s State) Valid() bool {
	if !s.Found {
		return s.Title == nil && s.Artist == nil && s.Cover == nil
	}
	return strings.TrimSpace(deref(s.Title)) != "" || strings.TrimSpace(deref(s.Artist)) != ""
}

func (s State) TitleOrEmpty() string  { return deref(s.Title) }
func (s State) ArtistOrEmpty() string { return deref(s.Artist) }
func (s State) CoverOrEmpty() string  { return deref(s.Cover) }
func (s State) LabelOrEmpty() string  { return deref(s.StationLabel) }

// Equal compares by value, not pointer identity.
func (s State) Equal(o State) bool {
	return s.Found == o.Found &&
		eqPtr(s.Title, o.Title) &&
		eqPtr(s.Artist, o.Artist) &&
		eqPtr(s.Cover, o.Cover) &&
		eqPtr(s.StationLabel, o.StationLabel)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func eqPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
