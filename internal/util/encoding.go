package util

import "golang.org/x/text/unicode/norm"

// Normalize returns the NFKD form of s so composed and decomposed spellings
// of the same password compare equal.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
