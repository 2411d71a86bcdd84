package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/venturemart/wallet/internal/handlers"
	"github.com/venturemart/wallet/internal/logger"
)

const (
	defaultListenAddr     = "localhost:8000"
	defaultLoggingLevel   = logger.LevelInfo
	defaultEnvironment    = logger.EnvProduction
	defaultReferralReward = "10"

	// Flat feature fees in credits, overridable per deployment
	defaultFees = "project_create:25,tender_post:25,job_post:10,community_create:15"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the wallet service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// Feature fees in 'name:amount,name:amount' format
	FeesSpec string

	// Credits granted to the referrer per converted referral
	ReferralReward string

	// Comma separated list of origins allowed to call the API
	AllowedOrigins string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		FeesSpec:       defaultFees,
		ReferralReward: defaultReferralReward,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":     setString(&c.ListenAddr),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"SECRET_KEY":      setString(&c.SecretKey),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"ENVIRONMENT":     setString(&c.Environment),
		"FEATURE_FEES":    setString(&c.FeesSpec),
		"REFERRAL_REWARD": setString(&c.ReferralReward),
		"ALLOWED_ORIGINS": setString(&c.AllowedOrigins),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("walletd", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.FeesSpec, "fees", c.FeesSpec, "Feature fees as 'name:amount,...'")
	fs.StringVar(&c.ReferralReward, "referral-reward", c.ReferralReward, "Referral reward in credits")
	fs.StringVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "Comma separated CORS origins")

	return fs.Parse(args)
}

// Fees parses the configured fee spec into feature prices
func (c *Config) Fees() (handlers.Fees, error) {
	fees := handlers.Fees{}

	for _, pair := range strings.Split(c.FeesSpec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, amount, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("fee %q must be in 'name:amount' format", pair)
		}

		fee, err := decimal.NewFromString(amount)
		if err != nil || fee.IsNegative() {
			return nil, fmt.Errorf("fee %q has invalid amount", pair)
		}

		fees[strings.TrimSpace(name)] = fee
	}

	return fees, nil
}

func (c *Config) ReferralRewardAmount() (decimal.Decimal, error) {
	reward, err := decimal.NewFromString(c.ReferralReward)
	if err != nil || reward.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("referral reward %q is invalid", c.ReferralReward)
	}

	return reward, nil
}

func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return origins
}
