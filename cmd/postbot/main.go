package main

import (
	"context"
	"fmt"
	"log"

	"github.com/m3rciful/postbot/core/buildinfo"
	corecmd "github.com/m3rciful/postbot/core/cmd"
	"github.com/m3rciful/postbot/internal/app"
)

func main() {
	log.Printf("postbot %s", buildinfo.String())
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return app.Bootstrap(ctx, appCfg)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
