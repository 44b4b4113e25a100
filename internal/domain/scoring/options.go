package scoring

// Option applies a configuration option to the Composer.
type Option func(*Composer)

// WithWeights sets the genre and feature weights. A zero weight drops that term;
// negative values are ignored.
func WithWeights(genre, feature float64) Option {
	return func(c *Composer) {
		if genre >= 0 {
			c.genreWeight = genre
		}
		if feature >= 0 {
			c.featureWeight = feature
		}
	}
}

// WithBonus sets the points per similar-artist match and the bonus cap.
func WithBonus(perMatch, limit float64) Option {
	return func(c *Composer) {
		if perMatch >= 0 {
			c.bonusPerMatch = perMatch
		}
		if limit >= 0 {
			c.bonusCap = limit
		}
	}
}
