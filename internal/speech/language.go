package speech

import "strings"

// DefaultLanguageCode is used for unknown or empty language keys.
const DefaultLanguageCode = "en-US"

var languageCodes = map[string]string{
	"EN": "en-US",
	"ZH": "cmn-Hans-CN",
	"JA": "ja-JP",
	"KO": "ko-KR",
	"ES": "es-ES",
	"FR": "fr-FR",
	"DE": "de-DE",
	"IT": "it-IT",
	"PT": "pt-BR",
	"RU": "ru-RU",
}

// LanguageCode maps a host language key onto a BCP-47 recognizer code.
// Values that already look like a locale pass through unchanged.
func LanguageCode(language string) string {
	language = strings.TrimSpace(language)
	if code, ok := languageCodes[strings.ToUpper(language)]; ok {
		return code
	}
	if strings.Contains(language, "-") {
		return language
	}
	return DefaultLanguageCode
}
