package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// formField is a plain multipart field. Order is preserved on the wire.
type formField struct {
	name  string
	value string
}

// formFile is a file part; the file is opened lazily when the part is written.
type formFile struct {
	field string
	file  InputFile
}

// uploadForm describes a multipart/form-data request body.
type uploadForm struct {
	fields []formField
	files  []formFile
}

func (f *uploadForm) add(name, value string) {
	f.fields = append(f.fields, formField{name: name, value: value})
}

func (f *uploadForm) addChat(chatID int64, threadID *int, replyTo int) {
	f.add("chat_id", strconv.FormatInt(chatID, 10))
	if threadID != nil {
		f.add("message_thread_id", strconv.Itoa(*threadID))
	}
	if replyTo != 0 {
		f.add("reply_to_message_id", strconv.Itoa(replyTo))
	}
}

func (f *uploadForm) attach(field string, file InputFile) {
	f.files = append(f.files, formFile{field: field, file: file})
}

// write streams the form into w. Each file is opened, copied and closed in turn,
// so at most one descriptor is held at a time.
func (f *uploadForm) write(mw *multipart.Writer) error {
	for _, field := range f.fields {
		if err := mw.WriteField(field.name, field.value); err != nil {
			return err
		}
	}
	for _, ff := range f.files {
		if err := writeFilePart(mw, ff); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, ff formFile) error {
	file, err := os.Open(ff.file.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("path is a directory: %s", ff.file.Path)
	}

	name := ff.file.FileName
	if name == "" {
		name = filepath.Base(ff.file.Path)
	}

	part, err := mw.CreateFormFile(ff.field, name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

// makeUploadRequest performs a multipart request to the Telegram API.
//
// Unlike makeRequest there is no retry: the body is a one-shot pipe and
// re-reading a 100 MB file on a flaky link only doubles the damage.
func (c *Client) makeUploadRequest(ctx context.Context, method string, form *uploadForm) (*APIResponse, error) {
	startTime := time.Now()

	// Fail fast on a missing file before a connection is opened.
	for _, ff := range form.files {
		if _, err := os.Stat(ff.file.Path); err != nil {
			return nil, fmt.Errorf("failed to stat upload file: %w", err)
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		if err := form.write(mw); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.Close()
	}()

	apiURL := fmt.Sprintf("%s/%s", c.apiURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, pr)
	if err != nil {
		_ = pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		// Unblock the writer goroutine if the transport gave up before draining the pipe.
		_ = pr.CloseWithError(err)
		duration := time.Since(startTime).Seconds()
		if isTimeoutError(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			recordRequestDuration(method, statusTimeout, duration)
			recordError(method, errorTypeTimeout)
		} else {
			recordRequestDuration(method, statusError, duration)
			recordError(method, errorTypeNetwork)
		}
		return nil, fmt.Errorf("failed to perform upload: %s", c.redact(err))
	}
	defer resp.Body.Close()

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
		recordError(method, errorTypeDecode)
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !apiResp.Ok {
		recordRequestDuration(method, statusError, time.Since(startTime).Seconds())
		recordError(method, errorTypeAPI)
		return nil, fmt.Errorf("telegram api error: %s", apiResp.Description)
	}

	recordRequestDuration(method, statusSuccess, time.Since(startTime).Seconds())
	recordUpload(method)
	return &apiResp, nil
}

func decodeMessage(resp *APIResponse) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// SendAudio uploads a local audio file.
func (c *Client) SendAudio(ctx context.Context, req SendAudioRequest) (*Message, error) {
	form := &uploadForm{}
	form.addChat(req.ChatID, req.MessageThreadID, req.ReplyToMessageID)
	if req.Caption != "" {
		form.add("caption", req.Caption)
	}
	form.attach("audio", req.Audio)

	resp, err := c.makeUploadRequest(ctx, "sendAudio", form)
	if err != nil {
		return nil, err
	}
	return decodeMessage(resp)
}

// SendVideo uploads a local video file.
func (c *Client) SendVideo(ctx context.Context, req SendVideoRequest) (*Message, error) {
	form := &uploadForm{}
	form.addChat(req.ChatID, req.MessageThreadID, req.ReplyToMessageID)
	if req.Caption != "" {
		form.add("caption", req.Caption)
	}
	if req.SupportsStreaming {
		form.add("supports_streaming", "true")
	}
	form.attach("video", req.Video)

	resp, err := c.makeUploadRequest(ctx, "sendVideo", form)
	if err != nil {
		return nil, err
	}
	return decodeMessage(resp)
}

// SendPhoto uploads a single local image.
func (c *Client) SendPhoto(ctx context.Context, req SendPhotoRequest) (*Message, error) {
	form := &uploadForm{}
	form.addChat(req.ChatID, req.MessageThreadID, req.ReplyToMessageID)
	if req.Caption != "" {
		form.add("caption", req.Caption)
	}
	form.attach("photo", req.Photo)

	resp, err := c.makeUploadRequest(ctx, "sendPhoto", form)
	if err != nil {
		return nil, err
	}
	return decodeMessage(resp)
}

// SendMediaGroup uploads 2 to MaxMediaGroupSize photos as one album.
// Callers split larger sets themselves.
func (c *Client) SendMediaGroup(ctx context.Context, req SendMediaGroupRequest) ([]Message, error) {
	if n := len(req.Photos); n < 2 || n > MaxMediaGroupSize {
		return nil, fmt.Errorf("media group must contain 2-%d items, got %d", MaxMediaGroupSize, n)
	}

	media := make([]inputMedia, 0, len(req.Photos))
	form := &uploadForm{}
	form.addChat(req.ChatID, req.MessageThreadID, req.ReplyToMessageID)
	for i, photo := range req.Photos {
		field := fmt.Sprintf("photo%d", i)
		media = append(media, inputMedia{Type: "photo", Media: "attach://" + field})
		form.attach(field, photo)
	}

	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal media: %w", err)
	}
	form.add("media", string(mediaJSON))

	resp, err := c.makeUploadRequest(ctx, "sendMediaGroup", form)
	if err != nil {
		return nil, err
	}

	var msgs []Message
	if err := json.Unmarshal(resp.Result, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return msgs, nil
}
