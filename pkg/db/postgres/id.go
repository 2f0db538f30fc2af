package postgres

import "github.com/google/uuid"

// CanonicalID parses any form uuid.Parse accepts (upper case, braces,
// urn:uuid:, no dashes) and returns the lower-case dashed form stored in
// the database.
func CanonicalID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
