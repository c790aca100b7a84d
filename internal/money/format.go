package money

import (
	"strings"

	"golang.org/x/text/language"
)

const (
	labelEnglish = "BHD"
	labelArabic  = "د.ب"

	arabicDecimalSeparator = '٫'
)

var arabicBase, _ = language.Arabic.Base()

// FormatCurrency renders an amount for display in the given locale.
//
// Arabic locales ("ar", "ar-BH", ...) use Eastern Arabic-Indic digits and the
// "د.ب" label; everything else, including unparsable locales, renders Western
// digits with "BHD". Presentation only: stored values are never affected.
func FormatCurrency(f Fils, locale string) string {
	s := f.String()
	if !IsArabic(locale) {
		return s + " " + labelEnglish
	}
	return toArabicIndic(s) + " " + labelArabic
}

// IsArabic reports whether locale is an Arabic language tag.
func IsArabic(locale string) bool {
	tag, err := language.Parse(locale)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return base == arabicBase
}

func toArabicIndic(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune('٠' + (r - '0'))
		case r == '.':
			b.WriteRune(arabicDecimalSeparator)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
