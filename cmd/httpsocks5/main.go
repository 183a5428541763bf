// Command httpsocks5 runs the HTTP-to-SOCKS5 proxy server.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrelnet/httpsocks5"
	"github.com/kestrelnet/httpsocks5/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	srv := httpsocks5.New(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
