package config

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/zap"
)

var Logger *zap.SugaredLogger

type configuration struct {
	BotStatus string `env:"BOT_STATUS"`
	BotPrefix string `env:"BOT_PREFIX" envDefault:"!"`

	DiscordToken string `env:"DISCORD_TOKEN,required"`
	GuildID      string `env:"GUILD_ID"`

	ConfigDir string `env:"CONFIG_DIR" envDefault:"configs"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"file:cogbot.db"`

	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"sql"`
	LedgerFile    string `env:"LEDGER_FILE" envDefault:"chodecoin.json"`

	PokeAPIURL string `env:"POKEAPI_URL" envDefault:"https://pokeapi.co/api/v2"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

var Configuration *configuration

func init() {
	// Packages log before Load runs in tests.
	Logger = zap.NewNop().Sugar()
}

func Load() {
	envErr := godotenv.Load()
	if envErr != nil && !os.IsNotExist(envErr) {
		// Logger is not built yet, a broken .env is fatal.
		panic(envErr)
	}

	cfg, err := parse()
	if err != nil {
		panic(err)
	}
	Configuration = cfg

	slogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	Logger = slogger.Sugar()

	if envErr != nil {
		Logger.Warnln("No .env file found, using process environment")
	}
}

func parse() (*configuration, error) {
	cfg := &configuration{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse environment")
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// LoadConfig reads a JSON5 cog config from the config directory into v.
func LoadConfig(name string, v any) error {
	dir := "configs"
	if Configuration != nil && Configuration.ConfigDir != "" {
		dir = Configuration.ConfigDir
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return errors.Wrapf(err, "config: read %s", name)
	}

	if err := json5.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "config: decode %s", name)
	}
	return nil
}
