package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/packaginghippo/hippo/internal/db"
	"github.com/packaginghippo/hippo/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background workers",
		Long:  "Serves the chat, redirect and inquiry APIs, runs the AI reply worker and the digest scheduler until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Hippo config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default: server.port from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := loadConfigAndDB(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	a, err := newApp(cfg, gormDB)
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = cfg.Server.Port
	}
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	if a.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.worker.Run(ctx); err != nil {
				log.Printf("serve: reply worker: %v", err)
			}
		}()
		fmt.Fprintf(out, "AI replies enabled (model %s, %d workers)\n", cfg.AI.Model, cfg.AI.Workers)
	}
	if a.scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.scheduler.Run(ctx)
		}()
		fmt.Fprintf(out, "Digest scheduled (%s)\n", cfg.Digest.Schedule)
	}
	if a.issuer == nil {
		fmt.Fprintln(out, "Admin API disabled (set admin.token_secret to enable)")
	}

	err = web.Start(ctx, web.StartOpts{
		Deps: a.webDeps(),
		Port: port,
		Out:  out,
	})
	cancel()
	wg.Wait()
	return err
}
