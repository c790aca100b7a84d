// Package identifier holds shape checks for Bahraini business and contact
// identifiers. Every check is a total predicate: malformed input yields false,
// never an error. None of them consults a registry.
package identifier

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	vatNumberRe = regexp.MustCompile(`^BH[0-9]{9}$`)
	ibanRe      = regexp.MustCompile(`^BH[0-9]{2}[A-Z]{4}[0-9]{14}$`)
	crBaseRe    = regexp.MustCompile(`^[0-9]{6,8}$`)
	crBranchRe  = regexp.MustCompile(`^[0-9]{2}$`)
)

const (
	countryCode      = "973"
	localPhoneDigits = 8
	intlPhoneDigits  = len(countryCode) + localPhoneDigits
)

// ValidateCRNumber reports whether input looks like a Commercial Registration
// number: 6 to 8 digits, optionally followed by a 2-digit branch suffix
// ("123456-01", "123456.01"). Whitespace is ignored and any other
// non-alphanumeric character acts as a separator. The last separator splits
// off the branch suffix; earlier ones are stripped. Letters fail the check.
func ValidateCRNumber(input string) bool {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)
	if strings.IndexFunc(s, unicode.IsLetter) >= 0 {
		return false
	}
	base := s
	if i := strings.LastIndexFunc(s, isSeparator); i >= 0 {
		_, size := utf8.DecodeRuneInString(s[i:])
		if !crBranchRe.MatchString(s[i+size:]) {
			return false
		}
		base = s[:i]
	}
	return crBaseRe.MatchString(onlyDigits(base))
}

func isSeparator(r rune) bool {
	return (r < '0' || r > '9') && !unicode.IsLetter(r)
}

// ValidateVATNumber reports whether input is "BH" followed by exactly nine
// digits. The prefix is case-sensitive; surrounding whitespace is trimmed.
func ValidateVATNumber(input string) bool {
	return vatNumberRe.MatchString(strings.TrimSpace(input))
}

// ValidateBahrainPhone reports whether input, with every non-digit removed,
// is either an 8-digit local number or 973 followed by 8 digits.
func ValidateBahrainPhone(input string) bool {
	digits := onlyDigits(input)
	switch len(digits) {
	case localPhoneDigits:
		return true
	case intlPhoneDigits:
		return strings.HasPrefix(digits, countryCode)
	default:
		return false
	}
}

// ValidateIBAN reports whether input is a 22-character Bahraini IBAN:
// BH, 2 check digits, a 4-letter bank code and 14 digits. Spaces used to
// group the IBAN into blocks of four are ignored. Check digits are not
// verified.
func ValidateIBAN(input string) bool {
	return ibanRe.MatchString(strings.ReplaceAll(strings.TrimSpace(input), " ", ""))
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
