package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lox/flowcal/internal/api"
	"github.com/lox/flowcal/internal/chart"
)

type ServeCmd struct {
	Addr       string `help:"Address to listen on." default:":8080" env:"FLOWCAL_ADDR"`
	ChartCache string `help:"Directory for rendered chart PNGs; empty disables caching." default:"data/charts" env:"FLOWCAL_CHART_CACHE"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeDB, err := openStore(ctx, g.DB)
	if err != nil {
		return err
	}
	defer closeDB()

	if stats, err := st.DocumentStats(ctx); err == nil {
		logrus.WithFields(logrus.Fields{
			"records":   stats.TotalCount,
			"sizeBytes": stats.TotalSizeBytes,
		}).Info("store opened")
	}

	server := api.NewServer(st, c.Addr, chart.NewCache(c.ChartCache))
	if err := server.Run(ctx); err != nil {
		return err
	}
	logrus.Info("exiting")
	return nil
}
