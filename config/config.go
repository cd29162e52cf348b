package config

import (
	"encoding/json"
	"log"
	"os"
)

type Configuration struct {
	ApiPort string `json:"api_port"`
	LogPath string `json:"log_path"`

	Database string `json:"database"` // "sqlite3" ou "postgres"
	DbHost   string `json:"db_host"`
	DbPort   string `json:"db_port"`
	DbUser   string `json:"db_user"`
	DbName   string `json:"db_name"`
	DbPass   string `json:"db_pass"`

	Security struct {
		JwtSecret string `json:"jwt_secret"`
	} `json:"security"`

	Dialogs struct {
		// IdleTimeoutMinutes: diálogo parado por mais que isso é abandonado
		// pelo reaper.
		IdleTimeoutMinutes int `json:"idle_timeout_minutes"`
		// BlockCompletionWhenReadOnly: se true, read-only também impede
		// terminar diálogos já iniciados (por padrão só bloqueia novos).
		BlockCompletionWhenReadOnly bool `json:"block_completion_when_read_only"`
	} `json:"dialogs"`

	Scoring struct {
		HotThreshold int `json:"hot_threshold"`
		WarmLow      int `json:"warm_low"`
		WarmHigh     int `json:"warm_high"`
	} `json:"scoring"`

	Billing struct {
		TrialDays         int   `json:"trial_days"`
		TrialDialogsLimit int64 `json:"trial_dialogs_limit"`
	} `json:"billing"`

	Notifications struct {
		ManagersChannelID string `json:"managers_channel_id"`
		TelegramBotToken  string `json:"telegram_bot_token"`
	} `json:"notifications"`
}

func Get(path string) Configuration {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	var c Configuration
	if err := json.Unmarshal(b, &c); err != nil {
		log.Fatal(err)
	}
	return WithDefaults(c)
}

// WithDefaults preenche os zeros chatos (pra evitar nil/zero em runtime).
func WithDefaults(c Configuration) Configuration {
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/server.log"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.Security.JwtSecret == "" {
		c.Security.JwtSecret = "CHANGE_ME"
	}
	if c.Dialogs.IdleTimeoutMinutes <= 0 {
		c.Dialogs.IdleTimeoutMinutes = 30
	}
	if c.Scoring.HotThreshold <= 0 {
		c.Scoring.HotThreshold = 70
	}
	if c.Scoring.WarmLow <= 0 {
		c.Scoring.WarmLow = 40
	}
	if c.Scoring.WarmHigh <= 0 {
		c.Scoring.WarmHigh = c.Scoring.HotThreshold - 1
	}
	if c.Billing.TrialDays <= 0 {
		c.Billing.TrialDays = 14
	}
	if c.Billing.TrialDialogsLimit <= 0 {
		c.Billing.TrialDialogsLimit = 50
	}
	if c.Notifications.TelegramBotToken == "" {
		c.Notifications.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.Notifications.ManagersChannelID == "" {
		c.Notifications.ManagersChannelID = os.Getenv("MANAGERS_CHANNEL_ID")
	}
	return c
}
