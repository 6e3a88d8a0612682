package telegram

import "encoding/json"

// APIResponse represents a response from the Telegram API.
type APIResponse struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// Update represents an incoming update.
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents a message.
type Message struct {
	MessageID       int      `json:"message_id"`
	MessageThreadID int      `json:"message_thread_id,omitempty"`
	From            *User    `json:"from,omitempty"`
	Chat            *Chat    `json:"chat"`
	Date            int      `json:"date"`
	Text            string   `json:"text,omitempty"`
	Caption         string   `json:"caption,omitempty"`
	Audio           *Media   `json:"audio,omitempty"`
	Video           *Media   `json:"video,omitempty"`
	Photo           []*Media `json:"photo,omitempty"`
}

// User represents a Telegram user or bot.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat represents a chat.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// Media holds the fields shared by audio, video and photo objects that we care about.
type Media struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// SendMessageRequest represents the parameters for the sendMessage method.
//
// MessageThreadID is a pointer: message_thread_id=0 is rejected by Telegram in
// chats without topics, so it must be omitted entirely when unset.
type SendMessageRequest struct {
	ChatID           int64  `json:"chat_id"`
	MessageThreadID  *int   `json:"message_thread_id,omitempty"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode,omitempty"`
	ReplyToMessageID int    `json:"reply_to_message_id,omitempty"`
}

// BotCommand represents a bot command.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// SetMyCommandsRequest represents the parameters for the setMyCommands method.
type SetMyCommandsRequest struct {
	Commands []BotCommand `json:"commands"`
}

// SetWebhookRequest represents the parameters for the setWebhook method.
type SetWebhookRequest struct {
	URL         string `json:"url"`
	SecretToken string `json:"secret_token,omitempty"`
}

// Chat actions shown while the bot is busy.
const (
	ChatActionTyping      = "typing"
	ChatActionUploadVoice = "upload_voice"
	ChatActionUploadVideo = "upload_video"
	ChatActionUploadPhoto = "upload_photo"
)

// SendChatActionRequest represents the parameters for the sendChatAction method.
type SendChatActionRequest struct {
	ChatID          int64  `json:"chat_id"`
	MessageThreadID *int   `json:"message_thread_id,omitempty"`
	Action          string `json:"action"`
}

// GetUpdatesRequest represents the parameters for the getUpdates method.
type GetUpdatesRequest struct {
	Offset         int      `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// InputFile is a local file uploaded as part of a multipart request.
// The file is opened only while its part is being written.
type InputFile struct {
	Path     string
	FileName string // defaults to the base name of Path
}

// SendAudioRequest represents the parameters for the sendAudio method.
type SendAudioRequest struct {
	ChatID           int64
	MessageThreadID  *int
	Audio            InputFile
	Caption          string
	ReplyToMessageID int
}

// SendVideoRequest represents the parameters for the sendVideo method.
type SendVideoRequest struct {
	ChatID            int64
	MessageThreadID   *int
	Video             InputFile
	Caption           string
	SupportsStreaming bool
	ReplyToMessageID  int
}

// SendPhotoRequest represents the parameters for the sendPhoto method.
type SendPhotoRequest struct {
	ChatID           int64
	MessageThreadID  *int
	Photo            InputFile
	Caption          string
	ReplyToMessageID int
}

// MaxMediaGroupSize is the largest album Telegram accepts in one sendMediaGroup call.
const MaxMediaGroupSize = 10

// SendMediaGroupRequest represents the parameters for the sendMediaGroup method.
// Only photo albums are supported.
type SendMediaGroupRequest struct {
	ChatID           int64
	MessageThreadID  *int
	Photos           []InputFile
	ReplyToMessageID int
}

// inputMedia is the JSON element of the sendMediaGroup "media" field.
type inputMedia struct {
	Type  string `json:"type"`
	Media string `json:"media"`
}
