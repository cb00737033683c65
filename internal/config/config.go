// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken    = "TELEGRAM_TOKEN"
	KeyBotOwner         = "BOT_OWNER"
	KeyMongoURI         = "MONGO_URI"
	KeyMongoDB          = "MONGO_DB"
	KeyAppEnv           = "APP_ENV"
	KeyLogLevel         = "LOG_LEVEL"
	KeyHTTPPort         = "HTTP_PORT"
	KeyStripeToken      = "PAYMENT_PROVIDER_STRIPE_TOKEN"
	KeyChapaToken       = "PAYMENT_PROVIDER_CHAPA_TOKEN"
	KeyChapaSecret      = "PAYMENT_PROVIDER_CHAPA_SECRET"
	KeyChapaInitialize  = "PAYMENT_PROVIDER_CHAPA_INITIALIZE"
	KeyChapaVerify      = "PAYMENT_PROVIDER_CHAPA_VERIFY"
	KeyCallbackURL      = "CHAPA_CALLBACK_URL"
	KeyReturnURL        = "CHAPA_RETURN_URL"
	KeyFallbackEmail    = "CHAPA_FALLBACK_EMAIL"
	KeyFallbackPhone    = "CHAPA_FALLBACK_PHONE"
	KeyChapaHTTPTimeout = "CHAPA_HTTP_TIMEOUT"
	KeyTxRefStrategy    = "TX_REF_STRATEGY"
	KeyTxRefPrefix      = "TX_REF_PREFIX"
	KeyChatLanes        = "BOT_CHAT_LANES"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Allowed tx_ref strategies.
	TxRefStrategyRandom = "random"
	TxRefStrategyUUID   = "uuid"

	// Defaults for optional settings.
	DefaultAppEnv          = EnvProduction
	DefaultLogLevel        = "info"
	DefaultHTTPPort        = 8080
	DefaultChapaTimeout    = 60 * time.Second
	DefaultTxRefStrategy   = TxRefStrategyRandom
	DefaultTxRefPrefix     = "chewatatest-"
	DefaultChatLanes       = true
	DefaultMongoDBProd     = "tg_chapa_bot"
	DefaultMongoDBDev      = "tg_chapa_bot_dev"
	redactedSuffix         = "...redacted"
	redactedVisiblePrefix  = 4
	mongoSchemePlain       = "mongodb://"
	mongoSchemeSRV         = "mongodb+srv://"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyBotOwner,
		Example:     "123456789",
		Required:    true,
		Description: "Telegram user_id allowed to run owner commands such as /stats.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyStripeToken,
		Example:     "284685063:TEST:abc",
		Required:    true,
		Description: "Telegram payments provider token for worldwide invoices.",
	},
	{
		Key:         KeyChapaToken,
		Example:     "6141645565:TEST:abc",
		Required:    true,
		Description: "Telegram payments provider token for Ethiopia invoices.",
	},
	{
		Key:         KeyChapaSecret,
		Example:     "CHASECK_TEST-xxxx",
		Required:    true,
		Description: "Chapa secret key sent as bearer token.",
	},
	{
		Key:         KeyChapaInitialize,
		Example:     "https://api.chapa.co/v1/transaction/initialize",
		Required:    true,
		Description: "Chapa transaction initialize endpoint.",
	},
	{
		Key:         KeyChapaVerify,
		Example:     "https://api.chapa.co/v1/transaction/verify",
		Required:    true,
		Description: "Chapa transaction verify endpoint; the tx_ref is appended as a path segment.",
	},
	{
		Key:         KeyCallbackURL,
		Example:     "https://bot.example.com/chapa_payment_verification",
		Required:    true,
		Description: "Public URL of the checkout confirmation endpoint registered with Chapa.",
		Notes:       "tx_ref and chat_id are appended as query parameters.",
	},
	{
		Key:         KeyReturnURL,
		Example:     "https://t.me/example_bot",
		Required:    true,
		Description: "Where Chapa sends the buyer after checkout.",
	},
	{
		Key:         KeyFallbackEmail,
		Example:     "buyer@example.com",
		Description: "Buyer email used when the invoice did not collect one.",
	},
	{
		Key:         KeyFallbackPhone,
		Example:     "0911000000",
		Description: "Buyer phone used when the invoice did not collect one.",
	},
	{
		Key:         KeyChapaHTTPTimeout,
		Example:     DefaultChapaTimeout.String(),
		Default:     DefaultChapaTimeout.String(),
		Description: "Timeout for a single Chapa HTTP request.",
	},
	{
		Key:         KeyTxRefStrategy,
		Example:     TxRefStrategyRandom + " / " + TxRefStrategyUUID,
		Default:     DefaultTxRefStrategy,
		Description: "How transaction references are generated.",
		Notes:       TxRefStrategyRandom + " keeps the 4-digit suffix; " + TxRefStrategyUUID + " uses a random UUID suffix.",
	},
	{
		Key:         KeyTxRefPrefix,
		Example:     DefaultTxRefPrefix,
		Default:     DefaultTxRefPrefix,
		Description: "Fixed prefix of generated transaction references.",
	},
	{
		Key:         KeyChatLanes,
		Example:     "true",
		Default:     strconv.FormatBool(DefaultChatLanes),
		Description: "Run updates of different chats concurrently while keeping per-chat order.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP port for checkout confirmation, health and metrics.",
	},
}

// Chapa groups the payment provider settings.
type Chapa struct {
	Secret        string
	InitializeURL string
	VerifyURL     string
	CallbackURL   string
	ReturnURL     string
	FallbackEmail string
	FallbackPhone string
	HTTPTimeout   time.Duration
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken string
	BotOwnerID    int64
	MongoURI      string
	MongoDB       string
	AppEnv        string
	LogLevel      string
	HTTPPort      int
	StripeToken   string
	ChapaToken    string
	Chapa         Chapa
	TxRefStrategy string
	TxRefPrefix   string
	ChatLanes     bool
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken: env(KeyTelegramToken),
		MongoURI:      env(KeyMongoURI),
		MongoDB:       env(KeyMongoDB),
		LogLevel:      firstNonEmpty(env(KeyLogLevel), DefaultLogLevel),
		HTTPPort:      DefaultHTTPPort,
		StripeToken:   env(KeyStripeToken),
		ChapaToken:    env(KeyChapaToken),
		Chapa: Chapa{
			Secret:        env(KeyChapaSecret),
			InitializeURL: env(KeyChapaInitialize),
			VerifyURL:     strings.TrimRight(env(KeyChapaVerify), "/"),
			CallbackURL:   env(KeyCallbackURL),
			ReturnURL:     env(KeyReturnURL),
			FallbackEmail: env(KeyFallbackEmail),
			FallbackPhone: env(KeyFallbackPhone),
			HTTPTimeout:   DefaultChapaTimeout,
		},
		TxRefStrategy: strings.ToLower(firstNonEmpty(env(KeyTxRefStrategy), DefaultTxRefStrategy)),
		TxRefPrefix:   firstNonEmpty(env(KeyTxRefPrefix), DefaultTxRefPrefix),
		ChatLanes:     DefaultChatLanes,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)
	required := map[string]string{
		KeyTelegramToken:   cfg.TelegramToken,
		KeyMongoURI:        cfg.MongoURI,
		KeyMongoDB:         cfg.MongoDB,
		KeyStripeToken:     cfg.StripeToken,
		KeyChapaToken:      cfg.ChapaToken,
		KeyChapaSecret:     cfg.Chapa.Secret,
		KeyChapaInitialize: cfg.Chapa.InitializeURL,
		KeyChapaVerify:     cfg.Chapa.VerifyURL,
		KeyCallbackURL:     cfg.Chapa.CallbackURL,
		KeyReturnURL:       cfg.Chapa.ReturnURL,
	}

	ownerRaw := env(KeyBotOwner)
	for _, spec := range Contract {
		if !spec.Required {
			continue
		}
		if spec.Key == KeyBotOwner {
			if ownerRaw == "" {
				missing = append(missing, KeyBotOwner)
			}
			continue
		}
		if required[spec.Key] == "" {
			missing = append(missing, spec.Key)
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	ownerID, parseErr := strconv.ParseInt(ownerRaw, 10, 64)
	if parseErr != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyBotOwner, parseErr)
	}
	cfg.BotOwnerID = ownerID

	if !strings.HasPrefix(cfg.MongoURI, mongoSchemePlain) && !strings.HasPrefix(cfg.MongoURI, mongoSchemeSRV) {
		return Config{}, fmt.Errorf("invalid %s: must start with %q or %q", KeyMongoURI, mongoSchemePlain, mongoSchemeSRV)
	}

	for key, value := range map[string]string{
		KeyChapaInitialize: cfg.Chapa.InitializeURL,
		KeyChapaVerify:     cfg.Chapa.VerifyURL,
		KeyCallbackURL:     cfg.Chapa.CallbackURL,
		KeyReturnURL:       cfg.Chapa.ReturnURL,
	} {
		if err := validateHTTPURL(key, value); err != nil {
			return Config{}, err
		}
	}

	if raw := env(KeyHTTPPort); raw != "" {
		port, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	if raw := env(KeyChapaHTTPTimeout); raw != "" {
		timeout, parseErr := time.ParseDuration(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyChapaHTTPTimeout, parseErr)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyChapaHTTPTimeout)
		}
		cfg.Chapa.HTTPTimeout = timeout
	}

	if cfg.TxRefStrategy != TxRefStrategyRandom && cfg.TxRefStrategy != TxRefStrategyUUID {
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeyTxRefStrategy, TxRefStrategyRandom, TxRefStrategyUUID)
	}

	if raw := env(KeyChatLanes); raw != "" {
		lanes, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyChatLanes, parseErr)
		}
		cfg.ChatLanes = lanes
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// FormatRedacted renders the configuration for operators with secrets masked.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
		"telegram_token: " + redact(cfg.TelegramToken),
		"bot_owner: " + strconv.FormatInt(cfg.BotOwnerID, 10),
		"mongo_uri: " + redactMongoURI(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"stripe_token: " + redact(cfg.StripeToken),
		"chapa_token: " + redact(cfg.ChapaToken),
		"chapa_secret: " + redact(cfg.Chapa.Secret),
		"chapa_initialize_url: " + cfg.Chapa.InitializeURL,
		"chapa_verify_url: " + cfg.Chapa.VerifyURL,
		"chapa_callback_url: " + cfg.Chapa.CallbackURL,
		"chapa_return_url: " + cfg.Chapa.ReturnURL,
		"chapa_http_timeout: " + cfg.Chapa.HTTPTimeout.String(),
		"tx_ref_strategy: " + cfg.TxRefStrategy,
		"tx_ref_prefix: " + cfg.TxRefPrefix,
		"chat_lanes: " + strconv.FormatBool(cfg.ChatLanes),
	}

	return strings.Join(lines, "\n")
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= redactedVisiblePrefix {
		return redactedSuffix
	}
	return secret[:redactedVisiblePrefix] + redactedSuffix
}

func redactMongoURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return redact(raw)
	}
	parsed.User = nil
	return parsed.String()
}

func validateHTTPURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must be an absolute http(s) URL", key)
	}
	return nil
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
