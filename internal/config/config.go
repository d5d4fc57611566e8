package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`

	Vipps Vipps `envPrefix:"VIPPS_"`
}

type Vipps struct {
	BaseApiURL           string        `env:"BASE_API_URL"`
	ClientID             string        `env:"CLIENT_ID"`
	ClientSecret         string        `env:"CLIENT_SECRET"`
	SubscriptionKey      string        `env:"SUBSCRIPTION_KEY"`
	MerchantSerialNumber string        `env:"MERCHANT_SERIAL_NUMBER"`
	WebhookSecret        string        `env:"WEBHOOK_SECRET"`
	TokenRefreshInterval time.Duration `env:"TOKEN_REFRESH_INTERVAL" envDefault:"10m"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
