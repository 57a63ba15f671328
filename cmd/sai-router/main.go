package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-router/router"
	"github.com/saiset-co/sai-router/service"
)

func main() {
	app := &cli.App{
		Name:  "sai-router",
		Usage: "Middleware chain HTTP router demo",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP service",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Value:   "config.yml",
						Usage:   "path to the service config",
						EnvVars: []string{"SAI_ROUTER_CONFIG"},
					},
				},
				Action: serve,
			},
			{
				Name:  "routes",
				Usage: "Print the demo routes",
				Action: func(*cli.Context) error {
					api := router.NewRouter()
					registerAPI(api, newUserStore())
					for _, route := range api.Routes() {
						fmt.Printf("%-7s /api%s\n", route.Method, route.Path)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sai-router: %v\n", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	svc, err := service.NewService(ctx, c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	store := newUserStore()
	svc.Init(func(r *router.Router) {
		api := router.NewRouter()
		r.Mount("/api", api)
		registerAPI(api, store)
	})

	if err := svc.Start(); err != nil {
		svc.Logger().Error("Failed to start service", zap.Error(err))
		return err
	}

	return nil
}
