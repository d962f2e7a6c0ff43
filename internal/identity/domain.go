package identity

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// webmailDomains are public mailbox providers that never identify a company.
var webmailDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"outlook.com": {},
	"hotmail.com": {},
	"icloud.com":  {},
}

// IsBusinessDomain reports whether domain may back a company record.
func IsBusinessDomain(domain string) bool {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return false
	}
	_, webmail := webmailDomains[d]
	return !webmail
}

// CompanyName derives a display name from the first label of domain:
// "acme.io" becomes "Acme".
func CompanyName(domain string) string {
	label := domain
	if i := strings.Index(domain, "."); i >= 0 {
		label = domain[:i]
	}
	if label == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(label)
	return cases.Upper(language.Und).String(label[:size]) + cases.Lower(language.Und).String(label[size:])
}
