/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the registration-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	// Payment gateway
	FlutterwavePublicKey string `mapstructure:"FLW_PUBLIC_KEY"`
	FlutterwaveSecretKey string `mapstructure:"FLW_SECRET_KEY"`
	FlutterwaveBaseURL   string `mapstructure:"FLW_API_BASE_URL"`
	PaymentAmount        int64  `mapstructure:"PAYMENT_AMOUNT"`
	PaymentCurrency      string `mapstructure:"PAYMENT_CURRENCY"`
	PaymentOptions       string `mapstructure:"PAYMENT_OPTIONS"`
	PaymentTitle         string `mapstructure:"PAYMENT_TITLE"`
	PaymentDescription   string `mapstructure:"PAYMENT_DESCRIPTION"`
	PaymentLogoURL       string `mapstructure:"PAYMENT_LOGO_URL"`
	PaymentRedirectBase  string `mapstructure:"PAYMENT_REDIRECT_BASE_URL"`

	// Spreadsheet store
	GoogleServiceAccountEmail string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	GooglePrivateKey          string `mapstructure:"GOOGLE_PRIVATE_KEY"`
	GoogleSheetID             string `mapstructure:"GOOGLE_SHEET_ID"`
	SheetTitle                string `mapstructure:"SHEET_TITLE"`

	// Post-confirmation community invite
	TelegramGroupLink string `mapstructure:"TELEGRAM_GROUP_LINK"`

	// Funnel sessions
	FunnelSessionTTLMinutes int `mapstructure:"FUNNEL_SESSION_TTL_MINUTES"`

	// Optional store-endpoint rate limiting (0 disables it)
	RedisURL                string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix    string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	StoreRateLimitPerMinute int    `mapstructure:"STORE_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values. The gateway keys default to Flutterwave's sandbox
	// placeholders so the funnel can be exercised without live credentials.
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("FLW_PUBLIC_KEY", "FLWPUBK_TEST-SANDBOXDEMOKEY-X")
	viper.SetDefault("FLW_SECRET_KEY", "FLWSECK_TEST-SANDBOXDEMOKEY-X")
	viper.SetDefault("FLW_API_BASE_URL", "https://api.flutterwave.com")
	viper.SetDefault("PAYMENT_AMOUNT", 3000)
	viper.SetDefault("PAYMENT_CURRENCY", "NGN")
	viper.SetDefault("PAYMENT_OPTIONS", "card,mobilemoney,ussd")
	viper.SetDefault("PAYMENT_TITLE", "Lanky First Ideal Creativity")
	viper.SetDefault("PAYMENT_DESCRIPTION", "Graphic Design Class Payment")
	viper.SetDefault("PAYMENT_REDIRECT_BASE_URL", "http://localhost:8080")
	viper.SetDefault("SHEET_TITLE", "Student Registrations")
	viper.SetDefault("TELEGRAM_GROUP_LINK", "https://t.me/your_group_link")
	viper.SetDefault("FUNNEL_SESSION_TTL_MINUTES", 60)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "lfic:rate_limit")
	viper.SetDefault("STORE_RATE_LIMIT_PER_MINUTE", 0)

	// Bind environment variables explicitly to ensure they appear in Unmarshal.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("FLW_PUBLIC_KEY")
	_ = viper.BindEnv("FLW_SECRET_KEY")
	_ = viper.BindEnv("FLW_API_BASE_URL")
	_ = viper.BindEnv("PAYMENT_AMOUNT")
	_ = viper.BindEnv("PAYMENT_CURRENCY")
	_ = viper.BindEnv("PAYMENT_OPTIONS")
	_ = viper.BindEnv("PAYMENT_TITLE")
	_ = viper.BindEnv("PAYMENT_DESCRIPTION")
	_ = viper.BindEnv("PAYMENT_LOGO_URL")
	_ = viper.BindEnv("PAYMENT_REDIRECT_BASE_URL")
	_ = viper.BindEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL")
	_ = viper.BindEnv("GOOGLE_PRIVATE_KEY")
	_ = viper.BindEnv("GOOGLE_SHEET_ID")
	_ = viper.BindEnv("SHEET_TITLE")
	_ = viper.BindEnv("TELEGRAM_GROUP_LINK")
	_ = viper.BindEnv("FUNNEL_SESSION_TTL_MINUTES")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("STORE_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// A platform-provided PORT (e.g., Railway/Render) takes precedence.
	if port := strings.TrimSpace(viper.GetString("PORT")); port != "" {
		config.ServerPort = port
	}

	// Private keys supplied through env vars commonly carry literal \n
	// sequences; normalize once here so downstream consumers never have to.
	config.GooglePrivateKey = strings.ReplaceAll(config.GooglePrivateKey, `\n`, "\n")

	if config.PaymentAmount <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive payment amount configured; using default\" amount=%d", config.PaymentAmount)
		config.PaymentAmount = 3000
	}
	if config.FunnelSessionTTLMinutes <= 0 {
		config.FunnelSessionTTLMinutes = 60
	}
	if config.StoreRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative store rate limit configured; disabling\" limit=%d", config.StoreRateLimitPerMinute)
		config.StoreRateLimitPerMinute = 0
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.PaymentRedirectBase = strings.TrimSuffix(strings.TrimSpace(config.PaymentRedirectBase), "/")

	return
}
