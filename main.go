package main

import (
	"log"
	"os"

	"github.com/slack-go/slack"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	os.MkdirAll(cfg.ExportOutputDir, 0755)

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	bot := NewBot(cfg, db, api)
	StartDailyReportScheduler(cfg, db, bot.chat)

	log.Println("Starting sale monitoring bot...")
	if err := bot.Start(); err != nil {
		log.Fatalf("Bot error: %v", err)
	}
}
