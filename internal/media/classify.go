package media

// DecisionKind is the classified outcome of a fetch.
type DecisionKind int

const (
	SingleAudio DecisionKind = iota
	SingleVideo
	SinglePhoto
	PhotoGroup
	NoFileFound
	AmbiguousFiles
	TooLarge
	UnsupportedFormat
)

func (k DecisionKind) String() string {
	switch k {
	case SingleAudio:
		return "single_audio"
	case SingleVideo:
		return "single_video"
	case SinglePhoto:
		return "single_photo"
	case PhotoGroup:
		return "photo_group"
	case NoFileFound:
		return "no_file_found"
	case AmbiguousFiles:
		return "ambiguous_files"
	case TooLarge:
		return "too_large"
	case UnsupportedFormat:
		return "unsupported_format"
	default:
		return "unknown"
	}
}

// Deliverable reports whether the decision results in an upload.
func (k DecisionKind) Deliverable() bool {
	switch k {
	case SingleAudio, SingleVideo, SinglePhoto, PhotoGroup:
		return true
	}
	return false
}

// Decision drives the reply action. Files holds what should be delivered,
// in discovery order; it is empty for failures. Limit is set for TooLarge.
type Decision struct {
	Kind  DecisionKind
	Files []DiscoveredFile
	Limit int64
}

var imageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// Classify decides what to deliver from the discovered files.
//
// Audio mode expects exactly one mp3. Video mode sends a single mp4 as video,
// any other single file as a photo, and several files as an album of the
// images among them. Files outside the delivery set are still owned by the
// caller and must be cleaned up.
func Classify(files []DiscoveredFile, mode Mode) Decision {
	if len(files) == 0 {
		return Decision{Kind: NoFileFound}
	}

	if mode == ModeAudio {
		if len(files) > 1 {
			return Decision{Kind: AmbiguousFiles}
		}
		if files[0].Ext == "mp3" {
			return Decision{Kind: SingleAudio, Files: files[:1]}
		}
		return Decision{Kind: UnsupportedFormat}
	}

	if len(files) == 1 {
		if files[0].Ext == "mp4" {
			return Decision{Kind: SingleVideo, Files: files[:1]}
		}
		return Decision{Kind: SinglePhoto, Files: files[:1]}
	}

	var images []DiscoveredFile
	for _, f := range files {
		if imageExtensions[f.Ext] {
			images = append(images, f)
		}
	}
	if len(images) == 0 {
		return Decision{Kind: AmbiguousFiles}
	}
	return Decision{Kind: PhotoGroup, Files: images}
}
