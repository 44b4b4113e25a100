package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/types"
	"github.com/okian/gigmatch/pkg/logger"
)

// Demo catalog. Events for unsignedArtists are never enriched and must not be scored.
var (
	catalog = []Artist{
		{Name: "The Rockers", SpotifyID: "demo-rockers", Genres: []string{"rock", "indie rock"},
			AvgFeatures: model.AudioFeatures{Energy: 0.82, Tempo: 132, Valence: 0.55, Danceability: 0.48, Acousticness: 0.05, Instrumentalness: 0.02}},
		{Name: "Velvet Static", SpotifyID: "demo-velvet", Genres: []string{"indie", "shoegaze"},
			AvgFeatures: model.AudioFeatures{Energy: 0.64, Tempo: 118, Valence: 0.32, Danceability: 0.41, Acousticness: 0.12, Instrumentalness: 0.35}},
		{Name: "Night Drive", SpotifyID: "demo-night", Genres: []string{"synthwave", "electronic"},
			AvgFeatures: model.AudioFeatures{Energy: 0.71, Tempo: 110, Valence: 0.46, Danceability: 0.66, Acousticness: 0.03, Instrumentalness: 0.61}},
		{Name: "Smooth Trio", SpotifyID: "demo-trio", Genres: []string{"jazz"},
			AvgFeatures: model.AudioFeatures{Energy: 0.28, Tempo: 92, Valence: 0.51, Danceability: 0.45, Acousticness: 0.81, Instrumentalness: 0.72}},
		{Name: "Bass Foundry", SpotifyID: "demo-bass", Genres: []string{"drum and bass", "electronic"},
			AvgFeatures: model.AudioFeatures{Energy: 0.93, Tempo: 174, Valence: 0.38, Danceability: 0.58, Acousticness: 0.01, Instrumentalness: 0.44}},
		{Name: "Folk Hollow", SpotifyID: "demo-folk", Genres: []string{"folk", "acoustic"},
			AvgFeatures: model.AudioFeatures{Energy: 0.31, Tempo: 98, Valence: 0.47, Danceability: 0.39, Acousticness: 0.88, Instrumentalness: 0.09}},
		{Name: "Brass Parade", SpotifyID: "demo-brass", Genres: []string{"funk", "soul"},
			AvgFeatures: model.AudioFeatures{Energy: 0.76, Tempo: 104, Valence: 0.83, Danceability: 0.79, Acousticness: 0.16, Instrumentalness: 0.12}},
		{Name: "Chamber Nine", SpotifyID: "demo-chamber", Genres: []string{"classical"},
			AvgFeatures: model.AudioFeatures{Energy: 0.14, Tempo: 76, Valence: 0.22, Danceability: 0.18, Acousticness: 0.95, Instrumentalness: 0.91}},
	}

	unsignedArtists = []string{"Unsigned Act One", "Unsigned Act Two"}

	venues = []string{"Le Trabendo", "La Cigale", "Le Petit Bain", "New Morning", "La Maroquinerie"}

	listenerTopArtists = []model.ArtistGenres{
		{Name: "Radiohead", Genres: []string{"alternative rock", "art rock", "rock"}},
		{Name: "The Rockers", Genres: []string{"rock", "indie rock"}},
		{Name: "Velvet Static", Genres: []string{"indie", "shoegaze"}},
		{Name: "Slowdive", Genres: []string{"shoegaze", "dream pop"}},
		{Name: "Night Drive", Genres: []string{"synthwave", "electronic"}},
	}
)

const (
	maxDaysAhead   = 60
	readingsPerArt = 3
)

// generateDataset builds the demo artists, numEvents upcoming events starting from
// now and a rock-leaning listener. The same seed yields the same dataset.
func generateDataset(ctx context.Context, config *Config, now time.Time) Dataset {
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))

	names := make([]string, 0, len(catalog)+len(unsignedArtists))
	for _, a := range catalog {
		names = append(names, a.Name)
	}
	names = append(names, unsignedArtists...)

	similarPool := []string{"Radiohead", "Slowdive", "Portishead", "Massive Attack", "Nils Frahm"}
	for _, a := range listenerTopArtists {
		similarPool = append(similarPool, a.Name)
	}

	events := make([]Event, config.NumEvents)
	for i := range events {
		date := now.AddDate(0, 0, 1+rng.IntN(maxDaysAhead))
		similar := make([]string, 0, 2)
		for range rng.IntN(3) {
			similar = append(similar, similarPool[rng.IntN(len(similarPool))])
		}
		events[i] = Event{
			ExternalID:     fmt.Sprintf("seed-%d-%d", config.Seed, i),
			ArtistName:     names[i%len(names)],
			EventDate:      date.UTC().Format(types.DateLayout),
			EventTime:      fmt.Sprintf("%02d:%02d", 19+rng.IntN(3), 30*rng.IntN(2)),
			Venue:          venues[rng.IntN(len(venues))],
			SimilarArtists: similar,
		}
	}

	features := make([]model.AudioFeatures, 0, len(catalog)*readingsPerArt)
	for _, a := range catalog[:3] {
		for range readingsPerArt {
			features = append(features, jitter(rng, a.AvgFeatures))
		}
	}

	ds := Dataset{
		Artists: catalog,
		Events:  events,
		History: model.ListeningHistory{TopArtists: listenerTopArtists, Features: features},
	}
	logger.GetOrDiscard().Info(ctx, "dataset generated",
		logger.Int("artists", len(ds.Artists)),
		logger.Int("events", len(ds.Events)),
		logger.Int("feature_readings", len(features)))
	return ds
}

// jitter perturbs a reading by up to ±5% per unit-interval field and ±5 BPM.
func jitter(rng *rand.Rand, f model.AudioFeatures) model.AudioFeatures {
	unit := func(v float64) float64 {
		return min(1, max(0, v+(rng.Float64()-0.5)*0.1))
	}
	return model.AudioFeatures{
		Energy:           unit(f.Energy),
		Tempo:            f.Tempo + (rng.Float64()-0.5)*10,
		Valence:          unit(f.Valence),
		Danceability:     unit(f.Danceability),
		Acousticness:     unit(f.Acousticness),
		Instrumentalness: unit(f.Instrumentalness),
	}
}

// isCatalogArtist reports whether name is one of the enriched demo artists.
func isCatalogArtist(name string) bool {
	for _, a := range catalog {
		if a.Name == name {
			return true
		}
	}
	return false
}
