package opensubtitles

import (
	"strings"

	"subseek/internal/language"
)

// apiCodes are the codes where the API departs from ISO 639-1.
var apiCodes = map[string]language.Language{
	"pt-br": {Code: "por", Region: "BR"},
	"pt-pt": {Code: "por", Region: "PT"},
	"zh-cn": {Code: "zho", Region: "CN"},
	"zh-tw": {Code: "zho", Region: "TW"},
	"ze":    {Code: "zho", Region: "US"},
	"me":    {Code: "srp", Region: "ME"},
	"sy":    {Code: "syr"},
	"ma":    {Code: "mni"},
	"at":    {Code: "ast"},
}

var supportedCodes = []string{
	"afr", "ara", "arg", "ast", "bel", "ben", "bos", "bre", "bul", "cat",
	"ces", "dan", "deu", "ell", "eng", "epo", "est", "eus", "fas", "fin",
	"fra", "gla", "gle", "glg", "heb", "hin", "hrv", "hun", "hye", "ind",
	"isl", "ita", "jpn", "kat", "kaz", "khm", "kor", "lav", "lit", "ltz",
	"mal", "mkd", "mni", "mon", "msa", "mya", "nld", "nor", "oci", "pol",
	"por", "ron", "rus", "sin", "slk", "slv", "spa", "sqi", "srp", "swa",
	"swe", "syr", "tam", "tel", "tgl", "tha", "tur", "ukr", "urd", "uzb",
	"vie", "zho",
}

// Languages is the set of languages the API serves.
func Languages() language.Set {
	set := language.NewSet()
	for _, code := range supportedCodes {
		set.Add(language.Language{Code: code})
	}
	for _, lang := range apiCodes {
		set.Add(lang)
	}
	return set
}

// apiCode converts lang to the code used in search parameters.
func apiCode(lang language.Language) string {
	var fallback string
	for code, known := range apiCodes {
		if known == lang {
			return code
		}
		if known.Code == lang.Code && known.Region == "" {
			fallback = code
		}
	}
	if fallback != "" {
		return fallback
	}
	if code := lang.Alpha2(); code != "" {
		return code
	}
	return lang.Alpha3()
}

// parseAPICode converts a language code found in a response.
func parseAPICode(code string) (language.Language, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if lang, ok := apiCodes[code]; ok {
		return lang, nil
	}
	return language.Parse(code)
}
