package terms

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	footnoteRe   = regexp.MustCompile(`\s*\((\d{1,2}|[a-z]|note \d+)\)\s*$`)
)

// Normalize standardizes an account label for matching by:
//  1. Applying NFKC so ligatures and full-width forms compare equal
//  2. Lowercasing and dropping trailing footnote markers like "(1)"
//  3. Removing apostrophes and spelling out "&"
//  4. Turning remaining punctuation into spaces
//  5. Collapsing multiple spaces into single spaces
func Normalize(name string) string {
	name = strings.TrimSpace(norm.NFKC.String(name))
	if name == "" {
		return ""
	}

	name = strings.ToLower(name)
	name = footnoteRe.ReplaceAllString(name, "")

	name = strings.NewReplacer(
		"'", "",
		"’", "",
		"&", " and ",
	).Replace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
