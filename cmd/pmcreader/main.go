// Command pmcreader fetches open-access PMC articles, renders them as
// Markdown, and extracts their supplementary bundles.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"PmcReader/internal/app"
	"PmcReader/internal/config"
	"PmcReader/internal/infrastructure/render"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "pmcreader",
		Short:        "Fetch and convert PubMed Central articles",
		SilenceUsage: true,
	}
	root.AddCommand(fetchCommand(), markdownCommand(), bundleCommand(), cacheCommand())
	return root
}

func newApp() (*app.App, error) {
	return app.New(config.Load())
}

func fetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <pmcid>",
		Short: "Fetch an article and print the parsed document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.Pipeline.FetchDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}

func markdownCommand() *cobra.Command {
	var (
		noMetadata  bool
		frontmatter bool
		toc         bool
		noCaptions  bool
		output      string
	)
	cmd := &cobra.Command{
		Use:   "markdown <pmcid>",
		Short: "Render an article as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			opts := render.Options{
				IncludeMetadata:       a.Config.Markdown.IncludeMetadata && !noMetadata,
				UseYAMLFrontmatter:    a.Config.Markdown.UseYAMLFrontmatter || frontmatter,
				IncludeToc:            a.Config.Markdown.IncludeToc || toc,
				IncludeFigureCaptions: a.Config.Markdown.IncludeFigureCaptions && !noCaptions,
			}
			md, err := a.Pipeline.RenderMarkdown(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, []byte(md), 0o644)
			}
			fmt.Fprint(cmd.OutOrStdout(), md)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "omit the metadata block")
	cmd.Flags().BoolVar(&frontmatter, "frontmatter", false, "emit metadata as YAML frontmatter")
	cmd.Flags().BoolVar(&toc, "toc", false, "emit a table of contents")
	cmd.Flags().BoolVar(&noCaptions, "no-captions", false, "omit figure and table captions")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write Markdown to a file instead of stdout")
	return cmd
}

func bundleCommand() *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "bundle <pmcid>",
		Short: "Download and extract the supplementary bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if dest == "" {
				dest = a.Config.Bundle.OutputDir
			}
			doc, result, err := a.Pipeline.ExtractBundle(cmd.Context(), args[0], dest)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "extracted %d file(s) for %s\n", len(result.Files), doc.ID)
			for name, path := range result.Files {
				fmt.Fprintf(out, "  %s -> %s\n", name, path)
			}
			for _, skip := range result.Skipped {
				fmt.Fprintf(out, "  skipped %s\n", skip)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination directory (defaults to configured output dir)")
	return cmd
}

func cacheCommand() *cobra.Command {
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Manage the document cache",
	}

	cache.AddCommand(&cobra.Command{
		Use:   "invalidate <pmcid>",
		Short: "Drop the cached document for an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Pipeline.Invalidate(args[0])
		},
	})

	cache.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Clear the persistent cache store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.PurgeCache(cmd.Context())
		},
	})

	return cache
}
