package tmdb

import (
	"strconv"
	"strings"
)

// normalizeMovie extracts the metadata rule evaluation needs from a
// movie record. Countries prefer the explicit production-country list
// and fall back to the original-language mapping.
func normalizeMovie(m *MovieDetails) *Details {
	d := &Details{
		ProviderID: strconv.Itoa(m.ID),
		Title:      m.Title,
		GenreIDs:   genreIDs(m.Genres),
		Year:       yearFromDate(m.ReleaseDate),
	}

	for _, pc := range m.ProductionCountries {
		if pc.ISO31661 != "" {
			d.Countries = append(d.Countries, strings.ToUpper(pc.ISO31661))
		}
	}
	if len(d.Countries) == 0 {
		d.Countries = countryFromLanguage(m.OriginalLanguage)
	}

	return d
}

// normalizeSeries extracts the metadata rule evaluation needs from a
// series record. Countries prefer the origin-country list and fall back
// to the original-language mapping.
func normalizeSeries(s *TVDetails) *Details {
	d := &Details{
		ProviderID: strconv.Itoa(s.ID),
		Title:      s.Name,
		GenreIDs:   genreIDs(s.Genres),
		Year:       yearFromDate(s.FirstAirDate),
	}

	for _, cc := range s.OriginCountry {
		if cc != "" {
			d.Countries = append(d.Countries, strings.ToUpper(cc))
		}
	}
	if len(d.Countries) == 0 {
		d.Countries = countryFromLanguage(s.OriginalLanguage)
	}

	return d
}

func genreIDs(genres []Genre) []int {
	ids := make([]int, 0, len(genres))
	for _, g := range genres {
		ids = append(ids, g.ID)
	}
	return ids
}

func countryFromLanguage(language string) []string {
	if cc, ok := LanguageCountries[strings.ToLower(language)]; ok {
		return []string{cc}
	}
	return nil
}

// yearFromDate takes the leading 4-digit year of a catalog date string.
// Absent or malformed dates yield a nil year.
func yearFromDate(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return nil
	}
	return &year
}
