package seeder

import (
	"strings"

	"github.com/google/uuid"
)

// Defaults seeds the single local user and its starting preferences.
func Defaults(userID uuid.UUID, email string) []Seeder {
	return []Seeder{
		UserSeeder{ID: userID, Email: email},
		PreferencesSeeder{Email: email},
	}
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
