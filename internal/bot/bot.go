package bot

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"cogbot/internal/cog"
	"cogbot/internal/config"
	"cogbot/internal/discord"
	"cogbot/internal/ledger"
	"cogbot/internal/pokemon"
	"cogbot/internal/store"
)

func Run() {
	config.Load()
	defer config.Logger.Sync()

	db, err := openStore()
	if err != nil {
		config.Logger.Fatal("Error opening database: ", err)
	}
	defer db.Close()

	if err := discord.Init(); err != nil {
		config.Logger.Fatal("Error creating discord session: ", err)
	}
	cogs := initCogs(db)
	if err := discord.InitConnection(); err != nil {
		config.Logger.Fatal("Error opening connection: ", err)
	}

	defer discord.Session.Close()
	defer closeCogs(cogs)

	config.Logger.Infoln("Bot is running.")
	fmt.Println("Bot is running")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
	config.Logger.Infoln("Shutting down.")
}

func openStore() (*store.DB, error) {
	db, err := store.Open(config.Configuration.DatabaseDriver, config.Configuration.DatabaseURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newLedger(db *store.DB) (ledger.Store, error) {
	switch config.Configuration.LedgerBackend {
	case "sql", "":
		return ledger.NewSQLStore(db), nil
	case "file":
		return ledger.NewFileStore(config.Configuration.LedgerFile)
	default:
		return nil, errors.Errorf("unknown ledger backend %q", config.Configuration.LedgerBackend)
	}
}

func initCogs(db *store.DB) []cog.Cog {
	if discord.Session == nil {
		config.Logger.Panic("Tried to init cogs before initializing discord session")
	}

	points, err := newLedger(db)
	if err != nil {
		config.Logger.Fatal("Error creating ledger: ", err)
	}

	cogList := []cog.Cog{
		&cog.CommandCog{
			ConfigName: "command.json5",
			Session:    discord.Session,
		},
		&cog.PointsCog{
			ConfigName: "points.json5",
			Session:    discord.Session,
			Ledger:     points,
		},
		&cog.TriggerCog{
			ConfigName: "triggers.json5",
			Session:    discord.Session,
			Settings:   store.NewSettings(db),
		},
		&cog.PokemonCog{
			ConfigName: "pokemon.json5",
			Session:    discord.Session,
			DB:         db,
			Dex:        pokemon.NewPokeAPI(config.Configuration.PokeAPIURL),
		},
		&cog.GameBoyCog{
			ConfigName: "gameboy.json5",
			Session:    discord.Session,
		},
	}

	config.Logger.Infoln("Loading cogs ...")
	for _, c := range cogList {
		err := c.Init()
		if err != nil {
			config.Logger.Fatal("Error initializing cog: ", c.Name(), " ", err)
		}
	}
	return cogList
}

func closeCogs(cogs []cog.Cog) {
	for _, c := range cogs {
		closer, ok := c.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			config.Logger.Warnln("Error closing cog:", c.Name(), err)
		}
	}
}
