// Package messages holds the user-facing string table and renders its
// templates with runtime values.
package messages

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Template keys used by the bot and the checkout confirmation service.
const (
	KeyStart                  = "start"
	KeyHelp                   = "help"
	KeyBets                   = "bets"
	KeyTop                    = "top"
	KeySport                  = "sport"
	KeyDate                   = "date"
	KeyDefault                = "default"
	KeyInvoiceOption          = "invoice_option"
	KeyOptionWorldwide        = "option_worldwide"
	KeyOptionEthiopia         = "option_ethiopia"
	KeyInvalidOption          = "invalid_option"
	KeyEthiopiaPaymentOptions = "ethiopia_payment_options"
	KeyCompletePaymentButton  = "complete_payment_button"
	KeyPaymentError           = "payment_error"
	KeyLocalCheckoutPending   = "local_checkout_pending"
	KeyPaymentReceived        = "payment_received"
	KeyChapaSuccess           = "chapa_success"
	KeyChapaError             = "chapa_error"
	KeyStats                  = "stats"
	KeyInvoiceTitle           = "invoice_title"
	KeyInvoiceDescription     = "invoice_description"
	KeyInvoicePriceLabel      = "invoice_price_label"
	KeyShippingStandard       = "shipping_standard"
	KeyShippingStandardLabel  = "shipping_standard_label"
	KeyShippingExpress        = "shipping_express"
	KeyShippingExpressLabel   = "shipping_express_label"
)

//go:embed strings.yaml
var defaultTable []byte

var placeholder = regexp.MustCompile(`%\{([a-z_]+)\}`)

// Params are the named values substituted into a template.
type Params map[string]string

// Table is an immutable key -> template mapping. It is safe for concurrent use.
type Table struct {
	templates map[string]string
}

// Default returns the table embedded in the binary.
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Parse builds a Table from YAML mapping keys to template strings.
func Parse(raw []byte) (*Table, error) {
	templates := map[string]string{}
	if err := yaml.Unmarshal(raw, &templates); err != nil {
		return nil, fmt.Errorf("parse string table: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("parse string table: no templates")
	}

	return &Table{templates: templates}, nil
}

func (t *Table) has(key string) bool {
	_, ok := t.templates[key]
	return ok
}

// Render returns the template for key with %{name} placeholders replaced.
// Placeholders without a matching param are left as-is; an unknown key
// renders as the key itself.
func (t *Table) Render(key string, params Params) string {
	tmpl, ok := t.templates[key]
	if !ok {
		return key
	}
	if len(params) == 0 {
		return tmpl
	}

	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := params[name]; ok {
			return value
		}
		return match
	})
}
