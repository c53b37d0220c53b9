package tmdb

// LanguageCountries maps an ISO 639-1 original-language code to the
// country most commonly producing in that language. Used as the country
// fallback when a title carries no explicit production or origin
// country, and exposed for rule authoring.
var LanguageCountries = map[string]string{
	"en": "US",
	"zh": "CN",
	"ja": "JP",
	"ko": "KR",
	"fr": "FR",
	"de": "DE",
	"es": "ES",
	"it": "IT",
	"hi": "IN",
	"ar": "SA",
	"pt": "BR",
	"ru": "RU",
	"th": "TH",
	"sv": "SE",
	"da": "DK",
	"no": "NO",
	"nl": "NL",
	"pl": "PL",
}

// CountryNames maps ISO 3166-1 alpha-2 codes to display names for the
// countries commonly seen in catalog data. Exposed for rule authoring.
var CountryNames = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"FR": "France",
	"DE": "Germany",
	"IT": "Italy",
	"ES": "Spain",
	"CA": "Canada",
	"AU": "Australia",
	"JP": "Japan",
	"KR": "South Korea",
	"CN": "China",
	"HK": "Hong Kong",
	"TW": "Taiwan",
	"RU": "Russia",
	"IN": "India",
	"BR": "Brazil",
	"MX": "Mexico",
	"SE": "Sweden",
	"DK": "Denmark",
	"NO": "Norway",
	"NL": "Netherlands",
	"BE": "Belgium",
	"IE": "Ireland",
	"PL": "Poland",
	"TH": "Thailand",
}

// GenreNames maps TMDB genre ids to display names, covering both the
// movie and TV vocabularies. Exposed for rule authoring.
var GenreNames = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Science Fiction",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
	10759: "Action & Adventure",
	10762: "Kids",
	10763: "News",
	10764: "Reality",
	10765: "Sci-Fi & Fantasy",
	10766: "Soap",
	10767: "Talk",
	10768: "War & Politics",
}
