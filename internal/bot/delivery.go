package bot

import (
	"context"
	"fmt"

	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/telegram"
)

// deliver uploads the files of a deliverable decision as a reply to the request.
func (b *Bot) deliver(ctx context.Context, req Request, d media.Decision) error {
	if !d.Kind.Deliverable() || len(d.Files) == 0 {
		return fmt.Errorf("decision %s has nothing to deliver", d.Kind)
	}

	switch d.Kind {
	case media.SingleAudio:
		_, err := b.api.SendAudio(ctx, telegram.SendAudioRequest{
			ChatID:           req.ChatID,
			MessageThreadID:  intPtrOrNil(req.ThreadID),
			Audio:            telegram.InputFile{Path: d.Files[0].Path},
			ReplyToMessageID: req.MessageID,
		})
		return err
	case media.SingleVideo:
		_, err := b.api.SendVideo(ctx, telegram.SendVideoRequest{
			ChatID:            req.ChatID,
			MessageThreadID:   intPtrOrNil(req.ThreadID),
			Video:             telegram.InputFile{Path: d.Files[0].Path},
			SupportsStreaming: true,
			ReplyToMessageID:  req.MessageID,
		})
		return err
	case media.SinglePhoto:
		return b.sendPhoto(ctx, req, d.Files[0])
	default:
		return b.sendAlbum(ctx, req, d.Files)
	}
}

func (b *Bot) sendPhoto(ctx context.Context, req Request, f media.DiscoveredFile) error {
	_, err := b.api.SendPhoto(ctx, telegram.SendPhotoRequest{
		ChatID:           req.ChatID,
		MessageThreadID:  intPtrOrNil(req.ThreadID),
		Photo:            telegram.InputFile{Path: f.Path},
		ReplyToMessageID: req.MessageID,
	})
	return err
}

// sendAlbum sends images in discovery order, at most MaxMediaGroupSize per
// album. A trailing single image goes out as a plain photo since Telegram
// rejects one-item media groups.
func (b *Bot) sendAlbum(ctx context.Context, req Request, files []media.DiscoveredFile) error {
	for start := 0; start < len(files); start += telegram.MaxMediaGroupSize {
		chunk := files[start:min(start+telegram.MaxMediaGroupSize, len(files))]

		if len(chunk) == 1 {
			if err := b.sendPhoto(ctx, req, chunk[0]); err != nil {
				return fmt.Errorf("album item %d: %w", start+1, err)
			}
			continue
		}

		photos := make([]telegram.InputFile, len(chunk))
		for i, f := range chunk {
			photos[i] = telegram.InputFile{Path: f.Path}
		}
		if _, err := b.api.SendMediaGroup(ctx, telegram.SendMediaGroupRequest{
			ChatID:           req.ChatID,
			MessageThreadID:  intPtrOrNil(req.ThreadID),
			Photos:           photos,
			ReplyToMessageID: req.MessageID,
		}); err != nil {
			return fmt.Errorf("album items %d-%d: %w", start+1, start+len(chunk), err)
		}
	}
	return nil
}
