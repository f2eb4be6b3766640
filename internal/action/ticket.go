package action

import "regexp"

var ticketIDRe = regexp.MustCompile(`\b(\d{3,12})\b`)

// ExtractTicketID returns the first word-bounded run of 3 to 12 digits.
func ExtractTicketID(query string) (string, bool) {
	m := ticketIDRe.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return m[1], true
}
