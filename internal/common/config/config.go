package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Product is one entry of the configured price table. DP (distributor price)
// is the per-unit cost used to compute package amounts; BV is the business
// volume the package carries, independent of the monetary amount.
type Product struct {
	Name string          `json:"name"`
	MRP  decimal.Decimal `json:"mrp"`
	DP   decimal.Decimal `json:"dp"`
	BV   decimal.Decimal `json:"bv"`
}

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Auth struct {
		// HS256 secret shared with the external auth layer that mints tokens.
		JWTSecret string `env:"JWT_SECRET,required"`
	}

	// Root member seeded at startup so the first registration has a sponsor.
	Root struct {
		MemberCode string `env:"ROOT_MEMBER_CODE" envDefault:"1000000001"`
		FullName   string `env:"ROOT_FULL_NAME" envDefault:"Company Root"`
	}

	Plan struct {
		DirectRate   decimal.Decimal `env:"DIRECT_RATE" envDefault:"0.10"`
		FighterRate  decimal.Decimal `env:"FIGHTER_RATE" envDefault:"0.05"`
		MatchingRate decimal.Decimal `env:"MATCHING_RATE" envDefault:"0.30"`

		// Currency value of a single BV point when paying matching income.
		BVPointValue decimal.Decimal `env:"BV_POINT_VALUE" envDefault:"10"`
	}

	Limits struct {
		// Optimistic-transaction retries before surfacing a conflict.
		MaxTxRetries int           `env:"MAX_TX_RETRIES" envDefault:"3"`
		RetryDelay   time.Duration `env:"TX_RETRY_DELAY" envDefault:"50ms"`

		// Upper bound on a single activation attempt.
		ActivationTimeout time.Duration `env:"ACTIVATION_TIMEOUT" envDefault:"5s"`

		// Nodes visited before a placement scan gives up on a leg.
		PlacementScanLimit int `env:"PLACEMENT_SCAN_LIMIT" envDefault:"100000"`
	}

	// JSON-encoded price table; falls back to the built-in catalog when unset.
	ProductCatalogJSON string `env:"PRODUCT_CATALOG_JSON" envDefault:""`

	Products []Product `env:"-"`
}

func defaultCatalog() []Product {
	return []Product{
		{Name: "Starter Pack", MRP: decimal.NewFromInt(1250), DP: decimal.NewFromInt(1000), BV: decimal.NewFromInt(10)},
		{Name: "Business Pack", MRP: decimal.NewFromInt(3100), DP: decimal.NewFromInt(2500), BV: decimal.NewFromInt(25)},
		{Name: "Premium Pack", MRP: decimal.NewFromInt(6250), DP: decimal.NewFromInt(5000), BV: decimal.NewFromInt(50)},
	}
}

func Load() (*Config, error) {
	// A missing .env file is fine; in production the variables are set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.ProductCatalogJSON != "" {
		if err := json.Unmarshal([]byte(cfg.ProductCatalogJSON), &cfg.Products); err != nil {
			return nil, fmt.Errorf("parse PRODUCT_CATALOG_JSON: %w", err)
		}
	}
	if len(cfg.Products) == 0 {
		cfg.Products = defaultCatalog()
	}

	return cfg, nil
}

// Product returns the catalog entry with the given name.
func (c *Config) Product(name string) (Product, bool) {
	for _, p := range c.Products {
		if p.Name == name {
			return p, true
		}
	}
	return Product{}, false
}
