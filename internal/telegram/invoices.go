package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_chapa_bot/internal/messages"
)

const (
	invoiceCurrency       = "USD"
	invoiceAmount         = 5000
	invoiceStartParameter = "sample-product"

	shippingStandardID    = "standard"
	shippingExpressID     = "express"
	shippingStandardPrice = 1000
	shippingExpressPrice  = 2000
)

var errBadPayload = errors.New("malformed invoice payload")

// ProviderTokens holds the Telegram payment provider tokens per route.
type ProviderTokens struct {
	Worldwide string
	Ethiopia  string
}

// InvoiceDetails is everything sendInvoice needs for one region.
type InvoiceDetails struct {
	Region              Region
	Title               string
	Description         string
	Payload             string
	ProviderToken       string
	StartParameter      string
	Currency            string
	Prices              []models.LabeledPrice
	NeedName            bool
	NeedEmail           bool
	NeedPhoneNumber     bool
	NeedShippingAddress bool
	IsFlexible          bool
}

// InvoiceFor builds the invoice for a region. The Ethiopia invoice also
// collects email and phone because the local gateway requires them.
func InvoiceFor(region Region, chatID int64, tokens ProviderTokens, texts *messages.Table) (InvoiceDetails, error) {
	details := InvoiceDetails{
		Region:         region,
		Title:          texts.Render(messages.KeyInvoiceTitle, nil),
		Description:    texts.Render(messages.KeyInvoiceDescription, nil),
		Payload:        EncodePayload(region, chatID),
		StartParameter: invoiceStartParameter,
		Currency:       invoiceCurrency,
		Prices: []models.LabeledPrice{
			{Label: texts.Render(messages.KeyInvoicePriceLabel, nil), Amount: invoiceAmount},
		},
		NeedName:            true,
		NeedShippingAddress: true,
		IsFlexible:          true,
	}

	switch region {
	case RegionWorldwide:
		details.ProviderToken = tokens.Worldwide
	case RegionEthiopia:
		details.ProviderToken = tokens.Ethiopia
		details.NeedEmail = true
		details.NeedPhoneNumber = true
	default:
		return InvoiceDetails{}, fmt.Errorf("%w: no invoice for region %s", ErrInvalidArgument, region)
	}

	return details, nil
}

func (d InvoiceDetails) params(chatID int64) *bot.SendInvoiceParams {
	return &bot.SendInvoiceParams{
		ChatID:              chatID,
		Title:               d.Title,
		Description:         d.Description,
		Payload:             d.Payload,
		ProviderToken:       d.ProviderToken,
		StartParameter:      d.StartParameter,
		Currency:            d.Currency,
		Prices:              d.Prices,
		NeedName:            d.NeedName,
		NeedEmail:           d.NeedEmail,
		NeedPhoneNumber:     d.NeedPhoneNumber,
		NeedShippingAddress: d.NeedShippingAddress,
		IsFlexible:          d.IsFlexible,
	}
}

// EncodePayload stores the region and originating chat in the invoice
// payload so the pre-checkout handler can recover both.
func EncodePayload(region Region, chatID int64) string {
	return region.String() + ":" + strconv.FormatInt(chatID, 10)
}

// ParsePayload is the inverse of EncodePayload.
func ParsePayload(payload string) (Region, int64, error) {
	rawRegion, rawChat, ok := strings.Cut(payload, ":")
	if !ok {
		return RegionUnknown, 0, fmt.Errorf("%w: %q", errBadPayload, payload)
	}

	region := ParseRegion(rawRegion)
	if region == RegionUnknown {
		return RegionUnknown, 0, fmt.Errorf("%w: unknown region %q", errBadPayload, rawRegion)
	}

	chat, err := strconv.ParseInt(rawChat, 10, 64)
	if err != nil {
		return RegionUnknown, 0, fmt.Errorf("%w: chat id %q", errBadPayload, rawChat)
	}

	return region, chat, nil
}

// ShippingOptions returns the fixed standard/express rate table.
func ShippingOptions(texts *messages.Table) []models.ShippingOption {
	return []models.ShippingOption{
		{
			ID:    shippingStandardID,
			Title: texts.Render(messages.KeyShippingStandard, nil),
			Prices: []models.LabeledPrice{
				{Label: texts.Render(messages.KeyShippingStandardLabel, nil), Amount: shippingStandardPrice},
			},
		},
		{
			ID:    shippingExpressID,
			Title: texts.Render(messages.KeyShippingExpress, nil),
			Prices: []models.LabeledPrice{
				{Label: texts.Render(messages.KeyShippingExpressLabel, nil), Amount: shippingExpressPrice},
			},
		},
	}
}
