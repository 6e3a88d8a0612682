package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/telegram"
)

// sentFile describes one uploaded file as it looked at send time.
type sentFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// sentItem is one outgoing Bot API call captured by recordingBotAPI.
type sentItem struct {
	Method  string     `json:"method"`
	ChatID  int64      `json:"chat_id"`
	ReplyTo int        `json:"reply_to,omitempty"`
	Text    string     `json:"text,omitempty"`
	Files   []sentFile `json:"files,omitempty"`
}

// recordingBotAPI implements telegram.BotAPI without a network connection.
// Replies and uploads are recorded; chat actions are dropped.
type recordingBotAPI struct {
	mu     sync.Mutex
	items  []sentItem
	nextID int
}

func (r *recordingBotAPI) record(item sentItem) *telegram.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	r.nextID++
	return &telegram.Message{MessageID: r.nextID, Chat: &telegram.Chat{ID: item.ChatID}}
}

// Sent returns a copy of the recorded calls.
func (r *recordingBotAPI) Sent() []sentItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentItem, len(r.items))
	copy(out, r.items)
	return out
}

// describe stats the file now: cleanup removes it right after the upload.
func describe(f telegram.InputFile) sentFile {
	name := f.FileName
	if name == "" {
		name = filepath.Base(f.Path)
	}
	sf := sentFile{Name: name}
	if info, err := os.Stat(f.Path); err == nil {
		sf.Size = info.Size()
	}
	return sf
}

func (r *recordingBotAPI) SendMessage(ctx context.Context, req telegram.SendMessageRequest) (*telegram.Message, error) {
	return r.record(sentItem{Method: "sendMessage", ChatID: req.ChatID, ReplyTo: req.ReplyToMessageID, Text: req.Text}), nil
}

func (r *recordingBotAPI) SendAudio(ctx context.Context, req telegram.SendAudioRequest) (*telegram.Message, error) {
	return r.record(sentItem{Method: "sendAudio", ChatID: req.ChatID, ReplyTo: req.ReplyToMessageID, Text: req.Caption,
		Files: []sentFile{describe(req.Audio)}}), nil
}

func (r *recordingBotAPI) SendVideo(ctx context.Context, req telegram.SendVideoRequest) (*telegram.Message, error) {
	return r.record(sentItem{Method: "sendVideo", ChatID: req.ChatID, ReplyTo: req.ReplyToMessageID, Text: req.Caption,
		Files: []sentFile{describe(req.Video)}}), nil
}

func (r *recordingBotAPI) SendPhoto(ctx context.Context, req telegram.SendPhotoRequest) (*telegram.Message, error) {
	return r.record(sentItem{Method: "sendPhoto", ChatID: req.ChatID, ReplyTo: req.ReplyToMessageID, Text: req.Caption,
		Files: []sentFile{describe(req.Photo)}}), nil
}

func (r *recordingBotAPI) SendMediaGroup(ctx context.Context, req telegram.SendMediaGroupRequest) ([]telegram.Message, error) {
	files := make([]sentFile, 0, len(req.Photos))
	for _, p := range req.Photos {
		files = append(files, describe(p))
	}
	msg := r.record(sentItem{Method: "sendMediaGroup", ChatID: req.ChatID, ReplyTo: req.ReplyToMessageID, Files: files})
	return []telegram.Message{*msg}, nil
}

func (r *recordingBotAPI) SendChatAction(ctx context.Context, req telegram.SendChatActionRequest) error {
	return nil
}

func (r *recordingBotAPI) SetMyCommands(ctx context.Context, req telegram.SetMyCommandsRequest) error {
	return nil
}

func (r *recordingBotAPI) SetWebhook(ctx context.Context, req telegram.SetWebhookRequest) error {
	return nil
}

func (r *recordingBotAPI) GetUpdates(ctx context.Context, req telegram.GetUpdatesRequest) ([]telegram.Update, error) {
	return []telegram.Update{}, nil
}

func (r *recordingBotAPI) GetToken() string {
	return "testbot_token"
}

// stubOutput is one file stubFetcher produces.
type stubOutput struct {
	Ext  string
	Size int64
}

// stubFetcher stands in for yt-dlp: it writes sparse files named by the pattern.
type stubFetcher struct {
	outputs []stubOutput
}

func (f *stubFetcher) Fetch(ctx context.Context, url string, pattern media.NamingPattern) error {
	for _, out := range f.outputs {
		path := filepath.Join(pattern.Dir, pattern.Prefix+"."+out.Ext)
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := file.Truncate(out.Size); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}

// parseStubOutputs parses "mp4:1048576,jpg:2048" into stub outputs.
// A missing size means one kilobyte.
func parseStubOutputs(spec string) ([]stubOutput, error) {
	var outputs []stubOutput
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ext, sizeStr, hasSize := strings.Cut(part, ":")
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			return nil, fmt.Errorf("empty extension in %q", part)
		}
		size := int64(1024)
		if hasSize {
			n, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid size in %q", part)
			}
			size = n
		}
		outputs = append(outputs, stubOutput{Ext: ext, Size: size})
	}
	return outputs, nil
}
