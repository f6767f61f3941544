package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"outfitapi/dbhelper"
	"outfitapi/models"
	"outfitapi/services"
	"outfitapi/test"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const chatID int64 = 4242

type senderMock struct {
	mu   sync.Mutex
	sent []string
}

func (s *senderMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (s *senderMock) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1]
}

func (s *senderMock) all() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.sent, "\n")
}

func textUpdate(username, text string) tgbotapi.Update {
	message := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{UserName: username},
	}
	if strings.HasPrefix(text, "/") {
		command := strings.SplitN(text, " ", 2)[0]
		message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	}
	return tgbotapi.Update{Message: message}
}

func setupBot(t *testing.T, db *gorm.DB) (*Bot, *senderMock, *test.ComposerMock) {
	t.Helper()
	sender := &senderMock{}
	composer := &test.ComposerMock{}
	bot := NewBot(db, sender, Config{
		Generation: services.NewOutfitGenerationService(db, composer),
		Weather:    test.WeatherMock{},
	})
	return bot, sender, composer
}

func linkedUser(db *gorm.DB) *models.UserAccount {
	user := test.FakeUser(db)
	db.Model(user).Update("telegram_username", "stylefan")
	return user
}

func TestUnlinkedUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	bot, sender, _ := setupBot(t, db)

	bot.HandleUpdate(context.Background(), textUpdate("stranger", "/start"))

	assert.Contains(t, sender.last(), "Link your Telegram username")
}

func TestGenerateFromDraft(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	bot, sender, composer := setupBot(t, db)
	user := linkedUser(db)
	test.FakeClothing(db, user.ID, "white shirt", "top", "white")
	test.FakeClothing(db, user.ID, "chinos", "bottom", "beige")
	ctx := context.Background()

	bot.HandleUpdate(ctx, textUpdate("StyleFan", "business meeting outfit"))
	assert.Contains(t, sender.last(), "Saved as draft")

	bot.HandleUpdate(ctx, textUpdate("StyleFan", "/draft"))
	assert.Contains(t, sender.last(), "business meeting outfit")

	bot.HandleUpdate(ctx, textUpdate("StyleFan", "/generate"))

	assert.Equal(t, 1, composer.Calls)
	assert.Contains(t, sender.all(), "Outfit generated successfully!")
	assert.Contains(t, sender.last(), "Smart Casual Look")
	outfits := bot.Store.List(user.ID)
	require.Len(t, outfits, 1)
	assert.Equal(t, "business meeting outfit", outfits[0].Prompt)

	draft, err := bot.Drafts.Restore(ctx, draftKey(user.ID))
	require.NoError(t, err)
	assert.Empty(t, draft)
}

func TestGenerateWithoutPrompt(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	bot, sender, composer := setupBot(t, db)
	linkedUser(db)

	bot.HandleUpdate(context.Background(), textUpdate("stylefan", "/generate   "))

	assert.Zero(t, composer.Calls)
	assert.Contains(t, sender.last(), "prompt is required")
}

func TestGenerateEmptyWardrobe(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	bot, sender, _ := setupBot(t, db)
	user := linkedUser(db)

	bot.HandleUpdate(context.Background(), textUpdate("stylefan", "/generate date night"))

	assert.Contains(t, sender.last(), "wardrobe is empty")
	assert.Empty(t, bot.Store.List(user.ID))
}

func TestListAndDeleteOutfits(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	bot, sender, _ := setupBot(t, db)
	user := linkedUser(db)
	stored := &models.GeneratedOutfit{OwnerID: user.ID, Title: "Weekend Brunch"}
	db.Omit("Owner").Create(stored)
	ctx := context.Background()

	bot.HandleUpdate(ctx, textUpdate("stylefan", "/outfits"))
	assert.Contains(t, sender.last(), fmt.Sprintf("#%d Weekend Brunch", stored.ID))
	require.Len(t, bot.Store.List(user.ID), 1)

	bot.HandleUpdate(ctx, textUpdate("stylefan", "/delete 9999"))
	assert.Contains(t, sender.last(), "not found")

	bot.HandleUpdate(ctx, textUpdate("stylefan", fmt.Sprintf("/delete #%d", stored.ID)))
	assert.Contains(t, sender.last(), "deleted")
	assert.Empty(t, bot.Store.List(user.ID))

	var count int64
	db.Model(&models.GeneratedOutfit{}).Count(&count)
	assert.Zero(t, count)

	bot.HandleUpdate(ctx, textUpdate("stylefan", "/outfits"))
	assert.Contains(t, sender.last(), "No outfits yet")
}

func TestOutfitsAfterGenerateIncludesHistory(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	bot, sender, _ := setupBot(t, db)
	user := linkedUser(db)
	test.FakeClothing(db, user.ID, "white shirt", "top", "white")
	var older []uint
	for _, title := range []string{"Rainy Commute", "Weekend Brunch", "Gallery Night"} {
		stored := &models.GeneratedOutfit{OwnerID: user.ID, Title: title}
		db.Omit("Owner").Create(stored)
		older = append(older, stored.ID)
	}
	ctx := context.Background()

	bot.HandleUpdate(ctx, textUpdate("stylefan", "/generate office look"))
	bot.HandleUpdate(ctx, textUpdate("stylefan", "/outfits"))

	outfits := bot.Store.List(user.ID)
	require.Len(t, outfits, 4)
	reply := sender.last()
	assert.True(t, strings.HasPrefix(reply, fmt.Sprintf("#%d Smart Casual Look", outfits[0].ID)), reply)
	for _, id := range older {
		assert.Contains(t, reply, fmt.Sprintf("#%d ", id))
	}
}

func TestRepeatedGenerateThenDelete(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	bot, sender, composer := setupBot(t, db)
	user := linkedUser(db)
	test.FakeClothing(db, user.ID, "sequin top", "top", "silver")
	ctx := context.Background()

	bot.HandleUpdate(ctx, textUpdate("stylefan", "/generate party look"))
	bot.HandleUpdate(ctx, textUpdate("stylefan", "/generate party look"))
	assert.Equal(t, 1, composer.Calls)
	outfits := bot.Store.List(user.ID)
	require.Len(t, outfits, 1)

	bot.HandleUpdate(ctx, textUpdate("stylefan", fmt.Sprintf("/delete %d", outfits[0].ID)))
	assert.Empty(t, bot.Store.List(user.ID))

	bot.HandleUpdate(ctx, textUpdate("stylefan", "/outfits"))
	assert.Contains(t, sender.last(), "No outfits yet")
}

func TestEscapeMessage(t *testing.T) {
	assert.Equal(t, "snake\\_case \\*bold\\* \\[link\\] \\`code\\`", EscapeMessage("snake_case *bold* [link] `code`"))
}
