package config

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

type Config struct {
	HTTPAddr string `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"HTTP listen address"`

	PostgresURL string `long:"postgres-url" env:"POSTGRES_URL" required:"true" description:"Postgres connection string"`
	RedisAddr   string `long:"redis-addr" env:"REDIS_ADDR" required:"true" description:"Redis address for the alert stream"`

	PaymentGatewayURL string `long:"payment-gateway-url" env:"PAYMENT_GATEWAY_URL" required:"true" description:"payment gateway base URL"`
	PaymentGatewayKey string `long:"payment-gateway-key" env:"PAYMENT_GATEWAY_KEY" required:"true" description:"payment gateway secret key"`
	ProviderURL       string `long:"provider-url" env:"PROVIDER_URL" required:"true" description:"inventory provider base URL"`

	GatewayTimeout time.Duration `long:"gateway-timeout" env:"GATEWAY_TIMEOUT" default:"10s" description:"timeout for external gateway calls"`

	ReconcileInterval time.Duration `long:"reconcile-interval" env:"RECONCILE_INTERVAL" default:"1m" description:"how often to sweep for stuck transactions"`
	StuckAfter        time.Duration `long:"stuck-after" env:"STUCK_AFTER" default:"15m" description:"age after which a non-terminal transaction is considered stuck"`

	JaegerEndpoint string `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"jaeger collector endpoint (tracing disabled when empty)"`
}

func Parse(args []string) (Config, error) {
	var cfg Config
	if _, err := flags.NewParser(&cfg, flags.Default).ParseArgs(args); err != nil {
		return Config{}, fmt.Errorf("could not parse config: %w", err)
	}

	return cfg, nil
}
