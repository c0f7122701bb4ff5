// Command pubfront serves a blog whose posts live in a headless content API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pubfront",
		Short: "Blog front end for a headless content API",
		Long: `pubfront serves a paginated blog listing with incremental "load more",
post pages, RSS and a sitemap from posts stored in a headless content API.

Configuration is read from the environment and from a .env file in the
working directory.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newPostsCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pubfront version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("pubfront %s\n", version)
		},
	}
}
