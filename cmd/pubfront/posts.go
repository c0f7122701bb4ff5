package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eringen/pubfront"
	"github.com/eringen/pubfront/cms"
	"github.com/eringen/pubfront/pager"
)

func newPostsCmd() *cobra.Command {
	var (
		pages int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List posts from the content API",
		Long: `Lists posts newest first, one page at a time, the same way the
listing's "load more" button does.`,
		Example: `  # First two pages
  pubfront posts --pages 2

  # Every post
  pubfront posts --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pages < 1 && !all {
				return errors.New("--pages must be at least 1")
			}
			cfg, err := pubfront.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.CMSEndpoint == "" {
				return errors.New("CMS_API_ENDPOINT is not set")
			}
			client, err := cms.NewClient(cfg.CMSEndpoint, cfg.CMSAccessToken)
			if err != nil {
				return err
			}
			src := pubfront.NewCMSSource(client, cfg.DocumentType, cfg.PageSize)

			ctx := cmd.Context()
			first, err := src.FirstPage(ctx)
			if err != nil {
				return fmt.Errorf("load first page: %w", err)
			}
			ctrl := pager.New(pubfront.Fetcher(src), first)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printPosts(w, first.Items, cfg.Locale)
			for n := 1; ctrl.HasMore() && (all || n < pages); n++ {
				added, err := ctrl.LoadNext(ctx)
				if err != nil {
					w.Flush()
					return err
				}
				printPosts(w, added, cfg.Locale)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if ctrl.HasMore() {
				cmd.Printf("\n%d posts shown, more available (use --all)\n", ctrl.Len())
			} else {
				cmd.Printf("\n%d posts\n", ctrl.Len())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	cmd.Flags().BoolVar(&all, "all", false, "Load every page")

	return cmd
}

func printPosts(w *tabwriter.Writer, posts []pubfront.PostSummary, locale string) {
	for _, p := range posts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			pubfront.FormatDate(p.FirstPublicationDate, pubfront.ListingDateLayout, locale),
			p.UID, p.Title, p.Author)
	}
}
