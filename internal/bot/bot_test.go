package bot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/storage"
	"github.com/runixer/mediarelay/internal/telegram"
	"github.com/runixer/mediarelay/internal/testutil"
)

const mib = 1024 * 1024

type testEnv struct {
	bot     *Bot
	api     *testutil.MockBotAPI
	store   *testutil.MockStorage
	fetcher *testutil.FakeFetcher
	dir     string
}

func newTestEnv(t *testing.T, mode string, fetcher *testutil.FakeFetcher) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := testutil.TestConfig(mode, dir)

	api := new(testutil.MockBotAPI)
	api.On("SetMyCommands", mock.Anything, mock.Anything).Return(nil)
	api.On("SendChatAction", mock.Anything, mock.Anything).Return(nil).Maybe()

	store := new(testutil.MockStorage)
	store.On("UpsertUser", mock.Anything).Return(nil).Maybe()
	store.On("AddDelivery", mock.Anything, mock.Anything).Return(int64(1), nil).Maybe()

	b, err := NewBot(testutil.TestLogger(), api, cfg, fetcher, store, store, testutil.TestTranslator(t))
	require.NoError(t, err)

	return &testEnv{bot: b, api: api, store: store, fetcher: fetcher, dir: dir}
}

func textIs(text string) interface{} {
	return mock.MatchedBy(func(req telegram.SendMessageRequest) bool {
		return req.Text == text
	})
}

func TestNewBot_RegistersStartCommand(t *testing.T) {
	api := new(testutil.MockBotAPI)
	api.On("SetMyCommands", mock.Anything, telegram.SetMyCommandsRequest{
		Commands: []telegram.BotCommand{{Command: "start", Description: "Start the bot"}},
	}).Return(nil)

	_, err := NewBot(testutil.TestLogger(), api, testutil.TestConfig("audio", t.TempDir()), &testutil.FakeFetcher{}, nil, nil, testutil.TestTranslator(t))
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestNewBot_Errors(t *testing.T) {
	t.Run("invalid mode", func(t *testing.T) {
		api := new(testutil.MockBotAPI)
		_, err := NewBot(testutil.TestLogger(), api, testutil.TestConfig("podcast", t.TempDir()), &testutil.FakeFetcher{}, nil, nil, testutil.TestTranslator(t))
		require.Error(t, err)
		api.AssertNotCalled(t, "SetMyCommands", mock.Anything, mock.Anything)
	})

	t.Run("set commands fails", func(t *testing.T) {
		api := new(testutil.MockBotAPI)
		api.On("SetMyCommands", mock.Anything, mock.Anything).Return(errors.New("unauthorized"))
		_, err := NewBot(testutil.TestLogger(), api, testutil.TestConfig("video", t.TempDir()), &testutil.FakeFetcher{}, nil, nil, testutil.TestTranslator(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unauthorized")
	})
}

func TestProcessUpdate_AudioDelivered(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp3", Size: 2 * mib}}}
	env := newTestEnv(t, "audio", fetcher)

	var sentPath string
	env.api.On("SendAudio", mock.Anything, mock.MatchedBy(func(req telegram.SendAudioRequest) bool {
		return req.ChatID == testutil.TestChatID && req.ReplyToMessageID == 1 && req.MessageThreadID == nil
	})).Run(func(args mock.Arguments) {
		sentPath = args.Get(1).(telegram.SendAudioRequest).Audio.Path
		_, err := os.Stat(sentPath)
		assert.NoError(t, err, "file must exist while it is uploaded")
	}).Return(testutil.TestMessage(2), nil).Once()

	env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "check this out https://example.com/a"), "test")

	env.api.AssertExpectations(t)
	env.api.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	assert.Equal(t, filepath.Join(env.dir, "dl_123_1.mp3"), sentPath)
	testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")

	jobs := fetcher.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "https://example.com/a", jobs[0].URL)

	d := testutil.FindDelivery(t, env.store)
	assert.Equal(t, storage.OutcomeDelivered, d.Outcome)
	assert.Equal(t, "single_audio", d.Decision)
	assert.Equal(t, 1, d.FileCount)
	assert.Equal(t, int64(2*mib), d.Bytes)
	assert.Equal(t, "audio", d.Mode)
	assert.NotEmpty(t, d.RequestID)
	assert.Equal(t, testutil.TestUserID, d.UserID)
	env.store.AssertCalled(t, "UpsertUser", mock.MatchedBy(func(u storage.User) bool {
		return u.ID == testutil.TestUserID && u.LanguageCode == "en"
	}))
}

func TestProcessUpdate_UnsupportedFormat(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "ogg", Size: 1024}}}
	env := newTestEnv(t, "audio", fetcher)
	env.api.On("SendMessage", mock.Anything, textIs("unsupported format")).Return(testutil.TestMessage(2), nil).Once()

	env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "check this out https://example.com/a"), "test")

	env.api.AssertExpectations(t)
	env.api.AssertNotCalled(t, "SendAudio", mock.Anything, mock.Anything)
	testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")
	assert.Equal(t, storage.OutcomeUnsupportedFormat, testutil.FindDelivery(t, env.store).Outcome)
}

func TestProcessUpdate_PhotoGroup(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{
		{Ext: "txt", Size: 10},
		{Ext: "png", Size: 2048},
		{Ext: "jpg", Size: 1024},
	}}
	env := newTestEnv(t, "video", fetcher)

	var photos []telegram.InputFile
	env.api.On("SendMediaGroup", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		photos = args.Get(1).(telegram.SendMediaGroupRequest).Photos
	}).Return([]telegram.Message{*testutil.TestMessage(2), *testutil.TestMessage(3)}, nil).Once()

	env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/post"), "test")

	env.api.AssertExpectations(t)
	require.Len(t, photos, 2)
	assert.Equal(t, filepath.Join(env.dir, "dl_123_1.jpg"), photos[0].Path)
	assert.Equal(t, filepath.Join(env.dir, "dl_123_1.png"), photos[1].Path)
	testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")

	d := testutil.FindDelivery(t, env.store)
	assert.Equal(t, "photo_group", d.Decision)
	assert.Equal(t, 2, d.FileCount)
	assert.Equal(t, int64(3072), d.Bytes)
}

func TestProcessUpdate_SingleVideoAndPhoto(t *testing.T) {
	t.Run("mp4 is sent as streaming video", func(t *testing.T) {
		fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp4", Size: 70 * mib}}}
		env := newTestEnv(t, "video", fetcher)
		env.api.On("SendVideo", mock.Anything, mock.MatchedBy(func(req telegram.SendVideoRequest) bool {
			return req.SupportsStreaming && req.ReplyToMessageID == 1
		})).Return(testutil.TestMessage(2), nil).Once()

		env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/v"), "test")

		env.api.AssertExpectations(t)
		testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")
	})

	t.Run("any other single file is sent as photo", func(t *testing.T) {
		fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "webp", Size: 100 * mib}}}
		env := newTestEnv(t, "video", fetcher)
		env.api.On("SendPhoto", mock.Anything, mock.Anything).Return(testutil.TestMessage(2), nil).Once()

		env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/p"), "test")

		env.api.AssertExpectations(t)
		testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")
		assert.Equal(t, "single_photo", testutil.FindDelivery(t, env.store).Decision)
	})
}

func TestProcessUpdate_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		err     error
		reply   string
		outcome string
	}{
		{
			name:    "extraction audio",
			mode:    "audio",
			err:     &media.FetchError{URL: "https://example.com/a", Cause: media.ErrExtraction, Err: errors.New("Unsupported URL")},
			reply:   "extraction audio",
			outcome: storage.OutcomeExtractionError,
		},
		{
			name:    "extraction video",
			mode:    "video",
			err:     &media.FetchError{URL: "https://example.com/a", Cause: media.ErrExtraction, Err: errors.New("Unsupported URL")},
			reply:   "extraction video",
			outcome: storage.OutcomeExtractionError,
		},
		{
			name:    "unknown",
			mode:    "audio",
			err:     &media.FetchError{URL: "https://example.com/a", Cause: media.ErrUnknown, Err: errors.New("connection reset")},
			reply:   "unknown error",
			outcome: storage.OutcomeUnknownError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.mode, &testutil.FakeFetcher{Err: tt.err})
			env.api.On("SendMessage", mock.Anything, textIs(tt.reply)).Return(testutil.TestMessage(2), nil).Once()

			// A leftover with the request prefix must survive: the failure
			// path performs no file operations.
			stale := filepath.Join(env.dir, "dl_123_1.part")
			require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o600))

			env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/a"), "test")

			env.api.AssertExpectations(t)
			assert.FileExists(t, stale)

			d := testutil.FindDelivery(t, env.store)
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Contains(t, d.Error, tt.err.Error())
		})
	}
}

func TestProcessUpdate_NoFileFound(t *testing.T) {
	env := newTestEnv(t, "audio", &testutil.FakeFetcher{})
	env.api.On("SendMessage", mock.Anything, textIs("no file")).Return(testutil.TestMessage(2), nil).Once()

	env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/a"), "test")

	env.api.AssertExpectations(t)
	assert.Equal(t, storage.OutcomeNoFileFound, testutil.FindDelivery(t, env.store).Outcome)
}

func TestProcessUpdate_SizeGuard(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		ext       string
		size      int64
		delivered bool
	}{
		{"audio at ceiling", "audio", "mp3", 100 * mib, true},
		{"audio over ceiling", "audio", "mp3", 100*mib + 1, false},
		{"video at ceiling", "video", "mp4", 70 * mib, true},
		{"video over ceiling", "video", "mp4", 70*mib + 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: tt.ext, Size: tt.size}}}
			env := newTestEnv(t, tt.mode, fetcher)
			env.api.On("SendAudio", mock.Anything, mock.Anything).Return(testutil.TestMessage(2), nil).Maybe()
			env.api.On("SendVideo", mock.Anything, mock.Anything).Return(testutil.TestMessage(2), nil).Maybe()
			env.api.On("SendMessage", mock.Anything, mock.MatchedBy(func(req telegram.SendMessageRequest) bool {
				return req.ReplyToMessageID == 1 && strings.HasPrefix(req.Text, "too large ")
			})).Return(testutil.TestMessage(2), nil).Maybe()

			env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/a"), "test")

			testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")
			d := testutil.FindDelivery(t, env.store)
			if tt.delivered {
				assert.Equal(t, storage.OutcomeDelivered, d.Outcome)
				env.api.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
				return
			}
			assert.Equal(t, storage.OutcomeTooLarge, d.Outcome)
			env.api.AssertNumberOfCalls(t, "SendMessage", 1)
			env.api.AssertNotCalled(t, "SendAudio", mock.Anything, mock.Anything)
			env.api.AssertNotCalled(t, "SendVideo", mock.Anything, mock.Anything)
		})
	}
}

func TestProcessUpdate_Ambiguous(t *testing.T) {
	t.Run("audio with two files", func(t *testing.T) {
		fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp3", Size: 10}, {Ext: "m4a", Size: 10}}}
		env := newTestEnv(t, "audio", fetcher)
		env.api.On("SendMessage", mock.Anything, textIs("ambiguous audio")).Return(testutil.TestMessage(2), nil).Once()

		env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/a"), "test")

		env.api.AssertExpectations(t)
		testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")
	})

	t.Run("video without images", func(t *testing.T) {
		fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp4", Size: 10}, {Ext: "vtt", Size: 10}}}
		env := newTestEnv(t, "video", fetcher)
		env.api.On("SendMessage", mock.Anything, textIs("ambiguous video")).Return(testutil.TestMessage(2), nil).Once()

		env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/a"), "test")

		env.api.AssertExpectations(t)
		env.api.AssertNotCalled(t, "SendVideo", mock.Anything, mock.Anything)
		testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")
		assert.Equal(t, storage.OutcomeAmbiguousFiles, testutil.FindDelivery(t, env.store).Outcome)
	})
}

func TestProcessUpdate_DeliveryError(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp4", Size: mib}}}
	env := newTestEnv(t, "video", fetcher)
	env.api.On("SendVideo", mock.Anything, mock.Anything).Return(nil, errors.New("Request Entity Too Large")).Once()
	env.api.On("SendMessage", mock.Anything, textIs("unknown error")).Return(testutil.TestMessage(2), nil).Once()

	env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/a"), "test")

	env.api.AssertExpectations(t)
	testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")
	d := testutil.FindDelivery(t, env.store)
	assert.Equal(t, storage.OutcomeDeliveryError, d.Outcome)
	assert.Contains(t, d.Error, "Request Entity Too Large")
}

func TestProcessUpdate_PanicDuringDelivery(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp3", Size: mib}}}
	env := newTestEnv(t, "audio", fetcher)
	env.api.On("SendAudio", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("upload exploded")
	}).Return(nil, nil)
	env.api.On("SendMessage", mock.Anything, textIs("unknown error")).Return(testutil.TestMessage(2), nil).Once()

	assert.NotPanics(t, func() {
		env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/a"), "test")
	})

	env.api.AssertExpectations(t)
	testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")
	d := testutil.FindDelivery(t, env.store)
	assert.Equal(t, storage.OutcomeUnknownError, d.Outcome)
	assert.Equal(t, "single_audio", d.Decision)
	assert.Equal(t, 1, d.FileCount)
	assert.Equal(t, int64(mib), d.Bytes)
	assert.Contains(t, d.Error, "upload exploded")
}

func TestProcessUpdate_PanicRemovesUnresolvedFiles(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp3", Size: mib}}}
	env := newTestEnv(t, "audio", fetcher)
	late := filepath.Join(env.dir, "dl_123_1.webm.part")
	other := filepath.Join(env.dir, "dl_123_10.mp3")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))

	env.api.On("SendAudio", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		// Appears after discovery, so only the prefix can claim it.
		require.NoError(t, os.WriteFile(late, []byte("partial"), 0o600))
		panic("upload exploded")
	}).Return(nil, nil)
	env.api.On("SendMessage", mock.Anything, textIs("unknown error")).Return(testutil.TestMessage(2), nil).Once()

	env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/a"), "test")

	assert.NoFileExists(t, late)
	testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1.")
	assert.FileExists(t, other)
}

func TestProcessUpdate_ThreadAndLanguage(t *testing.T) {
	env := newTestEnv(t, "audio", &testutil.FakeFetcher{
		Err: &media.FetchError{URL: "https://example.com/a", Cause: media.ErrUnknown, Err: errors.New("boom")},
	})
	env.api.On("SendMessage", mock.Anything, mock.MatchedBy(func(req telegram.SendMessageRequest) bool {
		return req.Text == "неизвестная ошибка" && req.MessageThreadID != nil && *req.MessageThreadID == 7
	})).Return(testutil.TestMessage(2), nil).Once()

	update := testutil.TestUpdate(1, "https://example.com/a")
	update.Message.MessageThreadID = 7
	update.Message.From.LanguageCode = "ru-RU"

	env.bot.ProcessUpdate(context.Background(), update, "test")

	env.api.AssertExpectations(t)
}

func TestProcessUpdate_Ignored(t *testing.T) {
	tests := []struct {
		name   string
		update *telegram.Update
	}{
		{"no message", &telegram.Update{UpdateID: 1}},
		{"empty text", testutil.TestUpdate(1, "   ")},
		{"no url", testutil.TestUpdate(1, "hello there")},
		{"ftp is not a url", testutil.TestUpdate(1, "ftp://example.com/file")},
		{"unknown command", testutil.TestUpdate(1, "/help")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &testutil.FakeFetcher{}
			env := newTestEnv(t, "audio", fetcher)

			env.bot.ProcessUpdate(context.Background(), tt.update, "test")

			assert.Empty(t, fetcher.Jobs())
			env.api.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
			env.store.AssertNotCalled(t, "AddDelivery", mock.Anything, mock.Anything)
		})
	}
}

func TestProcessUpdate_Start(t *testing.T) {
	for _, mode := range []string{"audio", "video"} {
		t.Run(mode, func(t *testing.T) {
			fetcher := &testutil.FakeFetcher{}
			env := newTestEnv(t, mode, fetcher)
			env.api.On("SendMessage", mock.Anything, mock.MatchedBy(func(req telegram.SendMessageRequest) bool {
				return req.Text == "start "+mode && req.ChatID == testutil.TestChatID
			})).Return(testutil.TestMessage(2), nil).Twice()

			env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "/start"), "test")
			env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(2, "/start@media_relay_bot"), "test")

			env.api.AssertExpectations(t)
			assert.Empty(t, fetcher.Jobs())
		})
	}
}

func TestProcessUpdate_FirstURLOnly(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Err: &media.FetchError{Cause: media.ErrExtraction, Err: errors.New("x")}}
	env := newTestEnv(t, "audio", fetcher)
	env.api.On("SendMessage", mock.Anything, mock.Anything).Return(testutil.TestMessage(2), nil)

	env.bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "a https://one.example/1 b http://two.example/2"), "test")

	jobs := fetcher.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "https://one.example/1", jobs[0].URL)
}

func TestHandleUpdate_RawJSON(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp3", Size: 10}}}
	env := newTestEnv(t, "audio", fetcher)
	env.api.On("SendAudio", mock.Anything, mock.Anything).Return(testutil.TestMessage(2), nil).Once()

	raw := json.RawMessage(`{"update_id":10,"message":{"message_id":5,"chat":{"id":42,"type":"private"},` +
		`"from":{"id":42,"first_name":"T"},"text":"https://example.com/a"}}`)
	env.bot.HandleUpdateAsync(context.Background(), raw, "127.0.0.1")
	env.bot.HandleUpdate(context.Background(), json.RawMessage(`{not json`), "127.0.0.1")
	env.bot.Stop()

	env.api.AssertExpectations(t)
	jobs := fetcher.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "dl_42_5", jobs[0].Pattern.Prefix)
	testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_42_5")
}

func TestProcessUpdateAsync_ConcurrentRequests(t *testing.T) {
	// Both fetches must be in flight at once or the barrier never opens.
	var arrived sync.WaitGroup
	arrived.Add(2)
	fetcher := &testutil.FakeFetcher{
		Outputs: []testutil.FakeOutput{{Ext: "mp3", Size: 10}},
		Before: func(media.Job) {
			arrived.Done()
			arrived.Wait()
		},
	}
	env := newTestEnv(t, "audio", fetcher)
	env.api.On("SendAudio", mock.Anything, mock.Anything).Return(testutil.TestMessage(9), nil).Twice()

	ctx := context.Background()
	env.bot.ProcessUpdateAsync(ctx, testutil.TestUpdate(1, "https://example.com/1"), "test")
	env.bot.ProcessUpdateAsync(ctx, testutil.TestUpdate(2, "https://example.com/2"), "test")

	done := make(chan struct{})
	go func() {
		env.bot.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("requests did not run concurrently")
	}

	env.api.AssertExpectations(t)
	jobs := fetcher.Jobs()
	require.Len(t, jobs, 2)
	assert.NotEqual(t, jobs[0].Pattern.Prefix, jobs[1].Pattern.Prefix)
	testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_")
}

func TestProcessUpdate_CanceledContextStillFinishes(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp3", Size: 10}}}
	env := newTestEnv(t, "audio", fetcher)
	env.api.On("SendAudio", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(testutil.TestMessage(2), nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.bot.ProcessUpdate(ctx, testutil.TestUpdate(1, "https://example.com/a"), "test")

	env.api.AssertExpectations(t)
	testutil.AssertNoFilesWithPrefix(t, env.dir, "dl_123_1")
}

func TestProcessUpdate_NilRepositories(t *testing.T) {
	dir := t.TempDir()
	api := new(testutil.MockBotAPI)
	api.On("SetMyCommands", mock.Anything, mock.Anything).Return(nil)
	api.On("SendChatAction", mock.Anything, mock.Anything).Return(nil).Maybe()
	api.On("SendAudio", mock.Anything, mock.Anything).Return(testutil.TestMessage(2), nil).Once()

	fetcher := &testutil.FakeFetcher{Outputs: []testutil.FakeOutput{{Ext: "mp3", Size: 10}}}
	b, err := NewBot(testutil.TestLogger(), api, testutil.TestConfig("audio", dir), fetcher, nil, nil, testutil.TestTranslator(t))
	require.NoError(t, err)

	b.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/a"), "test")

	api.AssertExpectations(t)
	testutil.AssertNoFilesWithPrefix(t, dir, "dl_")
}
