package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fiffu/tickerwatch/app"
	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib"
	"github.com/fiffu/tickerwatch/lib/store"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var rootCmd = &cobra.Command{
	Use:   "tickerwatch",
	Short: "Polls market news and discussion feeds and notifies subscribers about ticker mentions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pollers and the admin API until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		fxApp := fx.New(serveOptions())
		if err := fxApp.Err(); err != nil {
			return err
		}
		fxApp.Run()
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the built-in company list into storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			n, err := store.Seed(ctx, st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d companies\n", n)
			return nil
		})
	},
}

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "Manage notification subscribers",
}

var subscribersAddCmd = &cobra.Command{
	Use:   "add <platform> <identifier>",
	Short: "Subscribe a recipient",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := lib.NewSubscriber(args[0], args[1])
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			if _, err := st.AddSubscriber(ctx, sub); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subscribed %s\n", sub)
			return nil
		})
	},
}

var subscribersRemoveCmd = &cobra.Command{
	Use:   "remove <platform> <identifier>",
	Short: "Unsubscribe a recipient",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := lib.NewSubscriber(args[0], args[1])
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			if err := st.RemoveSubscriber(ctx, sub); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unsubscribed %s\n", sub)
			return nil
		})
	},
}

var subscribersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
			subs, err := st.ListSubscribers(ctx)
			if err != nil {
				return err
			}
			for _, sub := range subs {
				fmt.Fprintln(cmd.OutOrStdout(), sub.String())
			}
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tickerwatch %s\n", Version)
	},
}

func init() {
	subscribersCmd.AddCommand(subscribersAddCmd, subscribersRemoveCmd, subscribersListCmd)
	rootCmd.AddCommand(serveCmd, seedCmd, subscribersCmd, versionCmd)
}

// withStore opens only the configured store, runs fn and closes it.
func withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var st store.Store
	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(NewLogger),
		fx.Provide(config.NewConfig),
		fx.Provide(app.NewStore),
		fx.Populate(&st),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}
	defer fxApp.Stop(context.Background())

	return fn(ctx, st)
}
