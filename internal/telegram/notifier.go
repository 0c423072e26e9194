package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/logger"
)

type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func NewNotifier(cfg *config.Config, log *logger.Logger) *Notifier {
	if !cfg.Telegram.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Notifier{
		bot:     bot,
		chatID:  cfg.Telegram.ChatID,
		enabled: true,
		logger:  log,
	}
}

func (n *Notifier) NotifyEntry(symbol, contract string, price float64, quantity int) {
	msg := fmt.Sprintf("🟢 *BUY* %s\nContract: %s\nFill: $%.2f\nContracts: %d\nCost: $%.2f",
		symbol, contract, price, quantity, price*float64(quantity)*100)
	n.send(msg)
}

func (n *Notifier) NotifyExit(symbol, contract string, price float64, quantity int, pnl float64, reason string) {
	emoji := "🔴"
	if pnl > 0 {
		emoji = "💰"
	}
	msg := fmt.Sprintf("%s *SELL* %s\nContract: %s\nFill: $%.2f\nContracts: %d\nP&L: $%.2f\nReason: %s",
		emoji, symbol, contract, price, quantity, pnl, reason)
	n.send(msg)
}

func (n *Notifier) NotifyError(context string, err error) {
	msg := fmt.Sprintf("⚠️ *Error* [%s]\n%v", context, err)
	n.send(msg)
}

func (n *Notifier) NotifyStatus(message string) {
	n.send(message)
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}
