// Command upload pushes an exported inventory document to the service.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"inventory/pkg/client"
)

func main() {
	var (
		addr  string
		token string
		file  string
	)

	flag.StringVar(&addr, "addr", "http://localhost:3000", "Base URL of the inventory service.")
	flag.StringVar(&token, "token", os.Getenv("ADMIN_TOKEN"), "Admin token, defaults to ADMIN_TOKEN.")
	flag.StringVar(&file, "file", "", "Path to the inventory JSON document.")
	flag.Parse()

	if file == "" || token == "" {
		flag.Usage()
		os.Exit(2)
	}

	doc, err := os.ReadFile(file)
	if err != nil {
		log.Fatalf("[upload] failed to read %s: %v", file, err)
	}

	c, err := client.New(addr, token)
	if err != nil {
		log.Fatalf("[upload] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.Health(ctx); err != nil {
		log.Fatalf("[upload] service at %s is not healthy: %v", addr, err)
	}
	if err := c.Upload(ctx, doc); err != nil {
		log.Fatalf("[upload] upload failed: %v", err)
	}
	log.Infof("[upload] uploaded %s to %s", file, addr)
}
