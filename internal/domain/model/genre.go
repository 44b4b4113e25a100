package model

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// GenreWeight is one entry of a GenreDistribution.
type GenreWeight struct {
	Genre  string
	Weight float64
}

// GenreDistribution maps a genre name to its share of a profile's genre tags.
// Entries keep insertion order so that equal weights rank in the order they were
// first seen. The zero value is an empty distribution ready to use.
type GenreDistribution struct {
	order   []string
	weights map[string]float64
}

// NewGenreDistribution builds a distribution from entries in the given order.
func NewGenreDistribution(entries ...GenreWeight) GenreDistribution {
	var d GenreDistribution
	for _, e := range entries {
		d.Set(e.Genre, e.Weight)
	}
	return d
}

// Set assigns weight to genre. A new genre is appended; an existing one keeps its position.
func (d *GenreDistribution) Set(genre string, weight float64) {
	if d.weights == nil {
		d.weights = make(map[string]float64)
	}
	if _, ok := d.weights[genre]; !ok {
		d.order = append(d.order, genre)
	}
	d.weights[genre] = weight
}

// Weight returns the weight for genre and whether it is present.
func (d GenreDistribution) Weight(genre string) (float64, bool) {
	w, ok := d.weights[genre]
	return w, ok
}

// Len returns the number of genres.
func (d GenreDistribution) Len() int { return len(d.order) }

// Genres returns genre names in insertion order.
func (d GenreDistribution) Genres() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Entries returns all entries in insertion order.
func (d GenreDistribution) Entries() []GenreWeight {
	out := make([]GenreWeight, len(d.order))
	for i, g := range d.order {
		out[i] = GenreWeight{Genre: g, Weight: d.weights[g]}
	}
	return out
}

// Clone returns a deep copy.
func (d GenreDistribution) Clone() GenreDistribution {
	return NewGenreDistribution(d.Entries()...)
}

// MarshalJSON encodes the distribution as a JSON object in insertion order.
func (d GenreDistribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range d.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(g)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.weights[g])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of genre weights, keeping key order.
// A JSON null yields an empty distribution.
func (d *GenreDistribution) UnmarshalJSON(data []byte) error {
	*d = GenreDistribution{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("genre distribution: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("genre distribution: expected key, got %v", tok)
		}
		var weight float64
		if err := dec.Decode(&weight); err != nil {
			return fmt.Errorf("genre distribution: weight for %q: %w", key, err)
		}
		d.Set(key, weight)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
