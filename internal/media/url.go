package media

import "regexp"

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ExtractURL returns the first http(s) URL in text, scanning left to right.
// The boolean is false when the text has no URL.
func ExtractURL(text string) (string, bool) {
	url := urlPattern.FindString(text)
	return url, url != ""
}

// CountURLs returns how many URLs text contains. Only the first is ever fetched.
func CountURLs(text string) int {
	return len(urlPattern.FindAllStringIndex(text, -1))
}
