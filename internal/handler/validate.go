package handler

import (
	"net/mail"
	"regexp"
	"unicode/utf8"
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const (
	minPasswordLen = 8
	maxNameLen     = 50
	maxTitleLen    = 100
)

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

func validName(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= 1 && n <= maxNameLen
}

func validTitle(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= 1 && n <= maxTitleLen
}

func validColor(s string) bool { return hexColor.MatchString(s) }
