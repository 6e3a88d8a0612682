package storage

import "time"

// UpsertUser records the sender of a message. Usernames and language change over time.
func (s *SQLiteStore) UpsertUser(user User) error {
	query := `
		INSERT INTO users (id, username, first_name, last_name, language_code, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			language_code = excluded.language_code,
			last_seen = excluded.last_seen
	`
	if user.LastSeen.IsZero() {
		user.LastSeen = time.Now()
	}
	_, err := s.db.Exec(query, user.ID, user.Username, user.FirstName, user.LastName, user.LanguageCode, user.LastSeen.UnixMilli())
	return err
}

// CountUsers returns the number of distinct users that ever sent a link.
func (s *SQLiteStore) CountUsers() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
