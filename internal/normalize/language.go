package normalize

import "strings"

// iso639_2to1 maps ISO 639-2 (3-letter) codes to ISO 639-1 codes.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var iso639_2to1 = map[string]string{
	"eng": "en", "spa": "es", "fra": "fr", "deu": "de", "ita": "it",
	"por": "pt", "nld": "nl", "rus": "ru", "jpn": "ja", "zho": "zh",
	"kor": "ko", "ara": "ar", "hin": "hi", "pol": "pl", "swe": "sv",
	"nor": "no", "dan": "da", "fin": "fi", "tur": "tr", "ell": "el",
	"heb": "he", "ces": "cs", "hun": "hu", "tha": "th", "ukr": "uk",
	"ger": "de", "fre": "fr", "dut": "nl", "chi": "zh", "cze": "cs",
	"gre": "el",
}

// languageNames maps display names (lowercase) to ISO 639-1 codes.
//
//nolint:gochecknoglobals // Static lookup table for language normalization
var languageNames = map[string]string{
	"english": "en", "spanish": "es", "french": "fr", "german": "de",
	"italian": "it", "portuguese": "pt", "dutch": "nl", "russian": "ru",
	"japanese": "ja", "chinese": "zh", "mandarin": "zh", "cantonese": "zh",
	"korean": "ko", "arabic": "ar", "hindi": "hi", "polish": "pl",
	"swedish": "sv", "norwegian": "no", "danish": "da", "finnish": "fi",
	"turkish": "tr", "greek": "el", "hebrew": "he", "czech": "cs",
	"hungarian": "hu", "thai": "th", "ukrainian": "uk",
}

// codeNames maps ISO 639-1 codes to display names.
//
//nolint:gochecknoglobals // Static lookup table
var codeNames = map[string]string{
	"en": "English", "es": "Spanish", "fr": "French", "de": "German",
	"it": "Italian", "pt": "Portuguese", "nl": "Dutch", "ru": "Russian",
	"ja": "Japanese", "zh": "Chinese", "ko": "Korean", "ar": "Arabic",
	"hi": "Hindi", "pl": "Polish", "sv": "Swedish", "no": "Norwegian",
	"da": "Danish", "fi": "Finnish", "tr": "Turkish", "el": "Greek",
	"he": "Hebrew", "cs": "Czech", "hu": "Hungarian", "th": "Thai",
	"uk": "Ukrainian",
}

// LanguageCode converts a language representation to an ISO 639-1 code.
// It accepts 2-letter codes, 3-letter codes, locales ("en-US", "en_GB"), and names.
// Returns "" for unrecognized values.
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(StripNull(raw)))
	if s == "" {
		return ""
	}

	if idx := strings.IndexAny(s, "-_"); idx > 0 {
		s = s[:idx]
	}

	if len(s) == 2 {
		if _, ok := codeNames[s]; ok {
			return s
		}
	}
	if len(s) == 3 {
		if code, ok := iso639_2to1[s]; ok {
			return code
		}
	}
	if code, ok := languageNames[s]; ok {
		return code
	}
	return ""
}

// Language converts a language representation to its display name, or "".
func Language(raw string) string {
	return codeNames[LanguageCode(raw)]
}

// Languages splits a free-text language list ("English, fra / de") into display names.
// Unrecognized entries are kept as written so nothing the user typed is dropped.
func Languages(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '/' || r == ';' || r == '|'
	})

	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name := Language(p)
		if name == "" {
			name = p
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
