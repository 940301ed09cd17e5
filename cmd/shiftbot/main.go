// Command shiftbot runs the shop-floor Telegram bot.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/m3rciful/shiftbot/core/buildinfo"
	corecmd "github.com/m3rciful/shiftbot/core/cmd"
	"github.com/m3rciful/shiftbot/internal/app"
	"github.com/m3rciful/shiftbot/internal/config"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("shiftbot %s (%s) %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(context.Background(), cfg.(*config.Config))
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
