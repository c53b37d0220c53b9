package tmdb

// MediaType selects the TMDB resource family for a lookup.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// MovieDetails is the detailed movie info from TMDB.
type MovieDetails struct {
	ID                  int                 `json:"id"`
	Title               string              `json:"title"`
	OriginalTitle       string              `json:"original_title"`
	ReleaseDate         string              `json:"release_date"`
	OriginalLanguage    string              `json:"original_language"`
	Genres              []Genre             `json:"genres"`
	ProductionCountries []ProductionCountry `json:"production_countries"`
	Status              string              `json:"status"`
	Adult               bool                `json:"adult"`
}

// TVDetails is the detailed TV series info from TMDB.
type TVDetails struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name"`
	FirstAirDate     string   `json:"first_air_date"`
	OriginalLanguage string   `json:"original_language"`
	Genres           []Genre  `json:"genres"`
	OriginCountry    []string `json:"origin_country"`
	Status           string   `json:"status"`
}

// Genre represents a genre from TMDB.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ProductionCountry represents a production country from TMDB.
type ProductionCountry struct {
	ISO31661 string `json:"iso_3166_1"`
	Name     string `json:"name"`
}

// ErrorResponse is an error from the TMDB API.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}

// Details is the normalized catalog result the tagging pipeline consumes:
// genre ids as returned, countries resolved through the production-country
// or original-language fallback chain, and the release year when the
// catalog date parses.
type Details struct {
	ProviderID string   `json:"provider_id"`
	Title      string   `json:"title"`
	GenreIDs   []int    `json:"genre_ids"`
	Countries  []string `json:"countries"`
	Year       *int     `json:"year"`
}
