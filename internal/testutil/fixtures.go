package testutil

import (
	"github.com/runixer/mediarelay/internal/storage"
	"github.com/runixer/mediarelay/internal/telegram"
)

// Default identifiers for tests.
const (
	TestUserID int64 = 123
	TestChatID int64 = 123
)

// TestUser returns a standard test user.
func TestUser() storage.User {
	return storage.User{
		ID:           TestUserID,
		Username:     "testuser",
		FirstName:    "Test",
		LastName:     "User",
		LanguageCode: "en",
	}
}

// TestUpdate returns a private-chat text update from the test user.
func TestUpdate(messageID int, text string) *telegram.Update {
	return &telegram.Update{
		UpdateID: messageID + 1000,
		Message: &telegram.Message{
			MessageID: messageID,
			From: &telegram.User{
				ID:           TestUserID,
				FirstName:    "Test",
				LastName:     "User",
				Username:     "testuser",
				LanguageCode: "en",
			},
			Chat: &telegram.Chat{ID: TestChatID, Type: "private"},
			Text: text,
		},
	}
}

// TestMessage returns a minimal message as Telegram echoes it after a send.
func TestMessage(id int) *telegram.Message {
	return &telegram.Message{
		MessageID: id,
		Chat:      &telegram.Chat{ID: TestChatID, Type: "private"},
	}
}
