package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"auction-watch/internal/storage"
)

// Notifier dispatches listing events to the configured subscriber. Both
// entry points are fire-and-forget: delivery problems are logged, never
// surfaced to the caller.
type Notifier interface {
	NotifyNewItem(ctx context.Context, listing storage.Listing)
	NotifyPriceChange(ctx context.Context, listing storage.Listing, oldPrice, newPrice decimal.Decimal)
}

// TelegramNotifier pushes messages through the Telegram Bot API. The
// subscription record (credentials and toggles) is re-read from storage
// before every send decision so that edits apply immediately.
type TelegramNotifier struct {
	subs    storage.SubscriptionStore
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram dispatcher.
func NewTelegramNotifier(subs storage.SubscriptionStore, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		subs:    subs,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// NotifyNewItem announces a first-seen listing when the subscriber opted in.
func (n *TelegramNotifier) NotifyNewItem(ctx context.Context, listing storage.Listing) {
	sub := n.subscription(ctx)
	if sub == nil || !sub.NotifyNewItems {
		return
	}

	if err := n.send(ctx, sub, renderNewItem(listing)); err != nil {
		n.logger.Error().Err(err).Str("offer_id", listing.OfferID).Msg("failed to send new-item notification")
		return
	}
	n.logger.Info().Str("offer_id", listing.OfferID).Msg("new-item notification sent")
}

// NotifyPriceChange announces a price move when the subscriber opted in.
func (n *TelegramNotifier) NotifyPriceChange(ctx context.Context, listing storage.Listing, oldPrice, newPrice decimal.Decimal) {
	sub := n.subscription(ctx)
	if sub == nil || !sub.NotifyPriceChanges {
		return
	}

	if err := n.send(ctx, sub, renderPriceChange(listing, oldPrice, newPrice)); err != nil {
		n.logger.Error().Err(err).Str("offer_id", listing.OfferID).Msg("failed to send price-change notification")
		return
	}
	n.logger.Info().Str("offer_id", listing.OfferID).Msg("price-change notification sent")
}

func (n *TelegramNotifier) subscription(ctx context.Context) *storage.Subscription {
	sub, err := n.subs.GetSubscription(ctx)
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to load notification subscription")
		return nil
	}
	return sub
}

func (n *TelegramNotifier) send(ctx context.Context, sub *storage.Subscription, text string) error {
	payload := map[string]string{
		"chat_id":    sub.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, sub.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}
	return nil
}

func renderNewItem(listing storage.Listing) string {
	b := strings.Builder{}
	b.WriteString("🆕 *NEW ITEM FOUND*\n\n")
	b.WriteString(fmt.Sprintf("*%s*\n\n", escapeMarkdown(listing.Title)))
	b.WriteString(fmt.Sprintf("💰 Price: R$ %s\n", listing.CurrentPrice.StringFixed(2)))

	if listing.LotNumber != nil {
		b.WriteString(fmt.Sprintf("🎯 Lot: %d\n", *listing.LotNumber))
	}
	if listing.CategoryName != nil {
		b.WriteString("🏷️ " + escapeMarkdown(*listing.CategoryName))
		if listing.SubCategoryName != nil {
			b.WriteString(" > " + escapeMarkdown(*listing.SubCategoryName))
		}
		b.WriteString("\n")
	}
	if listing.Location != nil {
		b.WriteString("📍 " + escapeMarkdown(*listing.Location) + "\n")
	}
	if listing.Seller != nil {
		b.WriteString("🏢 " + escapeMarkdown(*listing.Seller) + "\n")
	}
	if listing.AuctionName != nil {
		b.WriteString("📋 Auction: " + escapeMarkdown(*listing.AuctionName) + "\n")
	}
	if listing.EndDate != nil {
		b.WriteString("⏰ Ends: " + escapeMarkdown(*listing.EndDate) + "\n")
	}
	if listing.Visits != nil {
		b.WriteString(fmt.Sprintf("👁 Visits: %d\n", *listing.Visits))
	}

	b.WriteString("\n🔗 " + listing.AuctionURL + "\n")
	return b.String()
}

func renderPriceChange(listing storage.Listing, oldPrice, newPrice decimal.Decimal) string {
	change := newPrice.Sub(oldPrice)

	emoji := "📉"
	if change.Sign() > 0 {
		emoji = "📈"
	}

	b := strings.Builder{}
	b.WriteString(emoji + " *PRICE CHANGE*\n\n")
	b.WriteString(fmt.Sprintf("*%s*\n\n", escapeMarkdown(listing.Title)))
	b.WriteString(fmt.Sprintf("💰 From: R$ %s\n", oldPrice.StringFixed(2)))
	b.WriteString(fmt.Sprintf("💰 To: R$ %s\n", newPrice.StringFixed(2)))

	if !oldPrice.IsZero() {
		pct := change.Div(oldPrice).Mul(decimal.NewFromInt(100))
		b.WriteString(fmt.Sprintf("📊 Change: R$ %s (%s%%)\n", change.StringFixed(2), pct.StringFixed(1)))
	}

	if listing.LotNumber != nil {
		b.WriteString(fmt.Sprintf("🎯 Lot: %d\n", *listing.LotNumber))
	}

	b.WriteString("\n🔗 " + listing.AuctionURL + "\n")
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

var _ Notifier = (*TelegramNotifier)(nil)
