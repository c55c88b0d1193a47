// Command token mints a service token for the task endpoints, signed with
// SERVICE_JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/suPer8Hu/agent-services/internal/auth"
	"github.com/suPer8Hu/agent-services/internal/config"
)

func main() {
	subject := flag.String("sub", "backend", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.Any("err", err))
		os.Exit(1)
	}
	if cfg.ServiceJWTSecret == "" {
		slog.Error("SERVICE_JWT_SECRET is not set")
		os.Exit(1)
	}

	tok, err := auth.SignJWT(*subject, cfg.ServiceJWTSecret, *ttl)
	if err != nil {
		slog.Error("sign", slog.Any("err", err))
		os.Exit(1)
	}
	fmt.Println(tok)
}
