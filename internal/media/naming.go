package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FilePrefix starts every file the fetcher writes into the download directory.
// The janitor only ever touches names carrying it.
const FilePrefix = "dl_"

// NamingPattern is the request-unique output template handed to yt-dlp.
//
// The prefix is derived from (chat_id, message_id), which Telegram never reuses
// for two messages, so concurrent requests never share a file name.
type NamingPattern struct {
	Dir    string
	Prefix string
}

// NewNamingPattern builds the pattern for one incoming message.
func NewNamingPattern(dir string, chatID int64, messageID int) NamingPattern {
	return NamingPattern{
		Dir:    dir,
		Prefix: fmt.Sprintf("%s%d_%d", FilePrefix, chatID, messageID),
	}
}

// Template returns the yt-dlp output template: <dir>/<prefix>.%(ext)s
func (p NamingPattern) Template() string {
	return filepath.Join(p.Dir, p.Prefix) + ".%(ext)s"
}

// Matches reports whether a base file name was produced under this pattern.
// The dot is part of the match so dl_1_2 never claims dl_1_23.mp3.
func (p NamingPattern) Matches(name string) bool {
	return strings.HasPrefix(name, p.Prefix+".")
}
