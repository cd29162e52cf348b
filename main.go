package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"calliope/billing"
	"calliope/config"
	"calliope/controllers"
	"calliope/db"
	"calliope/dialogs"
	"calliope/notify"
	"calliope/router"
	"calliope/scoring"
	"calliope/tools"
	"calliope/workers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env é opcional; em produção as vars vêm do ambiente.
	if err := godotenv.Load(); err == nil {
		log.Println("Variáveis carregadas do .env")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if configPath == "" {
		configPath = "config/config.json"
	}
	cfg := config.Get(configPath)

	// Log vai pro stdout e pro arquivo configurado. Sem o arquivo, segue
	// só no stdout.
	if f, err := openLogFile(cfg.LogPath); err != nil {
		log.Printf("log em %s indisponível: %v", cfg.LogPath, err)
	} else {
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	db.SetConfigurations(cfg)
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer database.Close()

	policy := billing.NewPolicy(cfg.Billing.TrialDays, cfg.Billing.TrialDialogsLimit)

	scorer := scoring.Config{
		HotThreshold: cfg.Scoring.HotThreshold,
		WarmLow:      cfg.Scoring.WarmLow,
		WarmHigh:     cfg.Scoring.WarmHigh,
	}

	var dispatcher *notify.Dispatcher
	if cfg.Notifications.TelegramBotToken != "" && cfg.Notifications.ManagersChannelID != "" {
		channel := tools.TelegramClient{BotToken: cfg.Notifications.TelegramBotToken}
		dispatcher = notify.NewDispatcher(channel, cfg.Notifications.ManagersChannelID)
	} else {
		log.Println("Notificações de lead quente desativadas (sem token/canal)")
	}

	idleTimeout := time.Duration(cfg.Dialogs.IdleTimeoutMinutes) * time.Minute
	engine := dialogs.NewEngine(policy, scorer, dispatcher, idleTimeout)
	engine.SetBlockCompletionWhenReadOnly(cfg.Dialogs.BlockCompletionWhenReadOnly)

	controllers.SetDialogEngine(engine)
	controllers.SetBillingPolicy(policy)

	workers.StartDialogReaper(database, engine, time.Minute)
	workers.StartNotificationRetrier(database, dispatcher, 30*time.Second)

	r := gin.New()
	r.Use(db.SetDBtoContext(database))
	router.Initialize(r, cfg)

	log.Printf("Calliope listening on :%s", cfg.ApiPort)
	if err := r.Run(":" + cfg.ApiPort); err != nil {
		log.Fatal(err)
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
