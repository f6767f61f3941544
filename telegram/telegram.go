package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"outfitapi/models"
	"outfitapi/outfit"
	"outfitapi/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"
)

const (
	draftDelay   = 2 * time.Second
	contextGrace = 2 * time.Second
	listLimit    = 10
	historyLimit = 50
)

const helpText = "I am your stylist. Tell me what you need, for example\n" +
	"`/generate business meeting outfit`\n\n" +
	"Plain messages are kept as a draft, `/generate` without text uses it.\n" +
	"/outfits - your latest outfits\n" +
	"/delete <id> - remove an outfit\n" +
	"/draft - show the saved draft"

func EscapeMessage(message string) string {
	r := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return r.Replace(message)
}

// Sender is the part of the bot API the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Config struct {
	Generation services.OutfitGenerator
	Weather    services.WeatherProvider
	Pinterest  services.PinterestProvider
	// Drafts defaults to process memory.
	Drafts outfit.DraftStorage
}

// Bot serves linked accounts over Telegram. Users are matched through
// UserAccount.TelegramUsername.
type Bot struct {
	DB        *gorm.DB
	API       Sender
	Generator *outfit.Generator
	Store     *outfit.Store
	Drafts    *outfit.DraftKeeper

	chats sync.Map // user id -> chat id

	historyMu sync.Mutex
	loaded    map[uint]bool
}

func NewBot(db *gorm.DB, api Sender, cfg Config) *Bot {
	bot := &Bot{DB: db, API: api, Store: outfit.NewStore(), loaded: make(map[uint]bool)}

	storage := cfg.Drafts
	if storage == nil {
		storage = outfit.NewMemoryDraftStorage()
	}
	bot.Drafts = outfit.NewDraftKeeper(storage, draftDelay)

	preferences := &services.PreferenceStore{DB: db}
	generator := outfit.NewGenerator(outfit.LocalInvoker{Service: cfg.Generation}, bot.Store, outfit.NotifierFunc(bot.notify))
	generator.Preferences = outfit.StorePreferenceSource{Store: preferences}
	generator.ContextGrace = contextGrace
	if cfg.Weather != nil {
		generator.Context = append(generator.Context, outfit.WeatherSource{Provider: cfg.Weather, Locations: preferences})
	}
	if cfg.Pinterest != nil {
		generator.Context = append(generator.Context, outfit.PinterestSource{Pins: cfg.Pinterest})
	}
	generator.OnState = func(userID uint, requestID string, state outfit.State) {
		log.Printf("[Telegram] user %d request %s: %s", userID, requestID, state)
	}
	bot.Generator = generator

	bot.Store.Subscribe(func(e outfit.Event) {
		if e.Kind == outfit.EventPrepended && e.Outfit != nil {
			log.Printf("[Telegram] outfit %d added for user %d", e.Outfit.ID, e.UserID)
		}
	})
	return bot
}

// Run polls for updates until ctx is done.
func Run(ctx context.Context, db *gorm.DB, cfg Config) error {
	api, err := tgbotapi.NewBotAPI(os.Getenv("TG_TOKEN"))
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	api.Debug = os.Getenv("TG_DEBUG") == "true"
	log.Printf("Authorized on account %s", api.Self.UserName)

	bot := NewBot(db, api, cfg)
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go bot.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) reply(chatID int64, text string, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = "markdown"
	}
	if _, err := b.API.Send(msg); err != nil {
		log.Printf("[Telegram] send to chat %d failed: %v", chatID, err)
	}
}

func (b *Bot) notify(ctx context.Context, n outfit.Notification) {
	chatID, ok := b.chats.Load(n.UserID)
	if !ok {
		return
	}
	prefix := "✅"
	if n.Level == outfit.LevelError {
		prefix = "⚠️"
	}
	b.reply(chatID.(int64), prefix+" "+n.Message, false)
}

func (b *Bot) findUser(username string) (*models.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.UserAccount
	r := b.DB.Where("telegram_username = ? AND banned = ?", username, false).Limit(1).Find(&user)
	if r.Error != nil {
		return nil, r.Error
	}
	if r.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

// loadHistory fills the store with the user's saved outfits once per process.
func (b *Bot) loadHistory(userID uint) error {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	if b.loaded[userID] {
		return nil
	}
	var stored []models.GeneratedOutfit
	if err := b.DB.Where("owner_id = ?", userID).Order("created_at desc, id desc").Limit(historyLimit).Find(&stored).Error; err != nil {
		return err
	}
	b.Store.Load(userID, stored)
	b.loaded[userID] = true
	return nil
}

func draftKey(userID uint) string {
	return "tg:" + strconv.FormatUint(uint64(userID), 10)
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.Chat == nil || message.From == nil {
		return
	}
	chatID := message.Chat.ID
	user, err := b.findUser(message.From.UserName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		b.reply(chatID, "Link your Telegram username in the app first: Profile, then Telegram.", false)
		return
	}
	if err != nil {
		log.Printf("[Telegram] user lookup for @%s failed: %v", message.From.UserName, err)
		b.reply(chatID, "Something went wrong, please try again.", false)
		return
	}
	b.chats.Store(user.ID, chatID)

	switch message.Command() {
	case "start", "help":
		b.reply(chatID, helpText, true)
	case "generate":
		b.generate(ctx, chatID, user, message.CommandArguments())
	case "outfits":
		b.listOutfits(chatID, user)
	case "delete":
		b.deleteOutfit(chatID, user, message.CommandArguments())
	case "draft":
		draft, err := b.Drafts.Restore(ctx, draftKey(user.ID))
		if err != nil || draft == "" {
			b.reply(chatID, "No draft saved.", false)
			return
		}
		b.reply(chatID, "Your draft:\n"+draft, false)
	case "":
		text := strings.TrimSpace(message.Text)
		if text == "" {
			return
		}
		b.Drafts.Update(draftKey(user.ID), text)
		b.reply(chatID, "Saved as draft. Send /generate when ready.", false)
	default:
		b.reply(chatID, helpText, true)
	}
}

func (b *Bot) generate(ctx context.Context, chatID int64, user *models.UserAccount, prompt string) {
	key := draftKey(user.ID)
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		draft, err := b.Drafts.Restore(ctx, key)
		if err != nil {
			log.Printf("[Telegram] draft restore for user %d failed: %v", user.ID, err)
		}
		prompt = draft
	}

	if err := b.loadHistory(user.ID); err != nil {
		log.Printf("[Telegram] loading outfits for user %d failed: %v", user.ID, err)
	}

	// the generator reports the outcome through notify
	result, err := b.Generator.Generate(ctx, user.ID, outfit.RawInput{Prompt: prompt})
	if err != nil {
		return
	}
	if err := b.Drafts.Clear(ctx, key); err != nil {
		log.Printf("[Telegram] draft clear for user %d failed: %v", user.ID, err)
	}
	b.reply(chatID, describeOutfit(result), true)
}

func describeOutfit(result *outfit.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s* (#%d)\n", EscapeMessage(result.Outfit.Title), result.Outfit.ID))
	for _, item := range result.RecommendedClothes {
		sb.WriteString(fmt.Sprintf("- %s", EscapeMessage(item.Name)))
		if item.Color != "" {
			sb.WriteString(fmt.Sprintf(", %s", EscapeMessage(item.Color)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) listOutfits(chatID int64, user *models.UserAccount) {
	if err := b.loadHistory(user.ID); err != nil {
		log.Printf("[Telegram] loading outfits for user %d failed: %v", user.ID, err)
		b.reply(chatID, "Could not load your outfits, please try again.", false)
		return
	}
	outfits := b.Store.List(user.ID)
	if len(outfits) == 0 {
		b.reply(chatID, "No outfits yet. Try /generate", false)
		return
	}
	if len(outfits) > listLimit {
		outfits = outfits[:listLimit]
	}
	var sb strings.Builder
	for _, o := range outfits {
		sb.WriteString(fmt.Sprintf("#%d %s\n", o.ID, o.Title))
	}
	b.reply(chatID, sb.String(), false)
}

func (b *Bot) deleteOutfit(chatID int64, user *models.UserAccount, arg string) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(arg), "#"), 10, 64)
	if err != nil || id == 0 {
		b.reply(chatID, "Usage: /delete <id>", false)
		return
	}
	err = services.DeleteOutfit(b.DB, user.ID, uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		b.reply(chatID, "Outfit not found.", false)
		return
	}
	if err != nil {
		log.Printf("[Telegram] deleting outfit %d failed: %v", id, err)
		b.reply(chatID, "Could not delete the outfit, please try again.", false)
		return
	}
	b.Store.Remove(user.ID, uint(id))
	b.reply(chatID, fmt.Sprintf("Outfit #%d deleted.", id), false)
}
