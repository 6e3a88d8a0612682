package media

import "fmt"

// TooLargeError reports a file over its ceiling. It matches ErrTooLarge.
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file too large: %d bytes exceeds %d", e.Size, e.Limit)
}

func (e *TooLargeError) Is(target error) bool {
	return target == ErrTooLarge
}

// CheckSize accepts a file of exactly limit bytes and rejects anything bigger.
func CheckSize(size, limit int64) error {
	if size > limit {
		return &TooLargeError{Size: size, Limit: limit}
	}
	return nil
}

// SizeGuard holds the per-kind ceilings in bytes.
type SizeGuard struct {
	AudioLimit int64
	VideoLimit int64
}

// Apply turns an oversized SingleAudio or SingleVideo decision into TooLarge.
// Photos are not size-checked. The rejected files stay in Files so the reply
// can report their size.
func (g SizeGuard) Apply(d Decision) Decision {
	var limit int64
	switch d.Kind {
	case SingleAudio:
		limit = g.AudioLimit
	case SingleVideo:
		limit = g.VideoLimit
	default:
		return d
	}

	if err := CheckSize(d.Files[0].Size, limit); err != nil {
		return Decision{Kind: TooLarge, Files: d.Files, Limit: limit}
	}
	return d
}
