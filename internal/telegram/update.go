package telegram

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

// UpdateKind tags the variant carried by an Update.
type UpdateKind int

const (
	UpdateUnknown UpdateKind = iota
	UpdateMessage
	UpdateCallbackQuery
	UpdatePreCheckoutQuery
	UpdateShippingQuery
	UpdateSuccessfulPayment
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateMessage:
		return "message"
	case UpdateCallbackQuery:
		return "callback_query"
	case UpdatePreCheckoutQuery:
		return "pre_checkout_query"
	case UpdateShippingQuery:
		return "shipping_query"
	case UpdateSuccessfulPayment:
		return "successful_payment"
	default:
		return "unknown"
	}
}

// Sender identifies the user behind an update.
type Sender struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// Update is the classified form of a Telegram update. Exactly one of the
// variant pointers is set, matching Kind; UpdateUnknown carries none.
type Update struct {
	Kind   UpdateKind
	ChatID int64
	Sender Sender

	Message       *models.Message
	CallbackQuery *models.CallbackQuery
	PreCheckout   *models.PreCheckoutQuery
	Shipping      *models.ShippingQuery
}

// Text returns the message text or callback data, trimmed.
func (u Update) Text() string {
	switch {
	case u.Message != nil:
		return strings.TrimSpace(u.Message.Text)
	case u.CallbackQuery != nil:
		return strings.TrimSpace(u.CallbackQuery.Data)
	default:
		return ""
	}
}

// Classify converts a raw update into an Update. Pre-checkout and shipping
// queries carry no chat, so their ChatID is the sender's private chat.
func Classify(update *models.Update) Update {
	if update == nil {
		return Update{}
	}

	switch {
	case update.Message != nil:
		kind := UpdateMessage
		if update.Message.SuccessfulPayment != nil {
			kind = UpdateSuccessfulPayment
		}
		return Update{
			Kind:    kind,
			ChatID:  chatID(&update.Message.Chat),
			Sender:  senderOf(update.Message.From),
			Message: update.Message,
		}
	case update.CallbackQuery != nil:
		return Update{
			Kind:          UpdateCallbackQuery,
			ChatID:        messageChatID(update.CallbackQuery.Message),
			Sender:        senderOf(&update.CallbackQuery.From),
			CallbackQuery: update.CallbackQuery,
		}
	case update.PreCheckoutQuery != nil:
		sender := senderOf(update.PreCheckoutQuery.From)
		return Update{
			Kind:        UpdatePreCheckoutQuery,
			ChatID:      sender.ID,
			Sender:      sender,
			PreCheckout: update.PreCheckoutQuery,
		}
	case update.ShippingQuery != nil:
		sender := senderOf(update.ShippingQuery.From)
		return Update{
			Kind:     UpdateShippingQuery,
			ChatID:   sender.ID,
			Sender:   sender,
			Shipping: update.ShippingQuery,
		}
	default:
		return Update{Kind: UpdateUnknown}
	}
}

func senderOf(user *models.User) Sender {
	if user == nil {
		return Sender{}
	}

	return Sender{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.Username,
	}
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return chatID(&msg.Message.Chat)
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return chatID(&msg.InaccessibleMessage.Chat)
	default:
		return 0
	}
}
