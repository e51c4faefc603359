package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/probe"
)

func main() {

	cfg := config.LoadConfig()

	p, err := probe.NewGRPCProbe(cfg.ServerEndpointAddr, cfg.Timeout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer p.Close()

	if err := p.Check(context.Background(), cfg.Service); err != nil {
		log.Printf("%v", err)
		p.Close()
		os.Exit(1)
	}

}
