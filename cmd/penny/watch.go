package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pennyhq/penny-companion/internal/browser"
	"github.com/pennyhq/penny-companion/internal/common"
	"github.com/pennyhq/penny-companion/internal/deals"
	"github.com/pennyhq/penny-companion/internal/dispatch"
	"github.com/pennyhq/penny-companion/internal/modal"
	"github.com/pennyhq/penny-companion/internal/pennyapi"
)

func watchCmd() *cobra.Command {
	var (
		devtoolsURL string
		legacy      bool
		startURL    string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Attach to the browser and intercept checkout flows",
		Long: `Attaches to a Chrome instance (launching one when no devtools URL is
configured), watches for checkout pages, and runs the interception
pipeline until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if devtoolsURL != "" {
				cfg.Browser.DevToolsURL = devtoolsURL
			}

			store, manager, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sess, err := manager.Current(ctx)
			if err != nil {
				if errors.Is(err, common.ErrNotLoggedIn) {
					return fmt.Errorf("not logged in: run `penny login` first")
				}
				return err
			}

			browserSess, err := browser.NewSession(ctx, cfg.Browser)
			if err != nil {
				return err
			}
			defer browserSess.Close()

			if startURL != "" {
				if err := browserSess.Navigate(ctx, startURL); err != nil {
					return err
				}
			}

			api := pennyapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
			dealFinder := deals.NewClient(cfg.Deals.BaseURL, cfg.Deals.APIKey)
			dispatcher := dispatch.New(store, browserSess, dealFinder, api)

			flow := modal.FlowCartAnalysis
			if legacy {
				flow = modal.FlowLegacyWarning
			}

			observer := browser.NewObserver(browserSess, cfg.Browser.PollInterval)
			pipeline := browser.NewPipeline(browserSess, observer, dispatcher, sess.User, flow)

			slog.Info("Watching for checkout pages",
				"user", sess.User.FullName,
				"flow", flow)

			if err := pipeline.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&devtoolsURL, "devtools-url", "", "DevTools endpoint of a running Chrome (overrides config)")
	cmd.Flags().StringVar(&startURL, "url", "", "navigate the observed tab to this URL first")
	cmd.Flags().BoolVar(&legacy, "legacy-warning", false, "use the single-product warning flow instead of cart analysis")
	return cmd
}
