package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dgallion1/wikirefs/internal/article"
	"github.com/dgallion1/wikirefs/internal/config"
	"github.com/dgallion1/wikirefs/internal/render"
	"github.com/dgallion1/wikirefs/internal/wiki"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "wikirefs",
		Short: "Extract cited statements from rendered wiki articles",
		Long: `wikirefs reads the rendered HTML of a wiki article and pairs every
statement with the citations that support it.

Input is a saved article (FILE) or standard input (-). Use "wikirefs fetch"
to download the rendered HTML of an article by title.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(statementsCmd())
	rootCmd.AddCommand(referencesCmd())
	rootCmd.AddCommand(markdownCmd())
	rootCmd.AddCommand(fetchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "statements FILE|-",
		Short: "Print statements and their citations as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadArticle(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return writeStatements(cmd.OutOrStdout(), a)
		},
	}
}

func referencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "references FILE|-",
		Short: "Print the reference text behind every citation id as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadArticle(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return writeReferences(cmd.OutOrStdout(), a)
		},
	}
}

func markdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markdown FILE|-",
		Short: "Print statements with citation labels and a reference list as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noRefs, _ := cmd.Flags().GetBool("no-references")
			a, err := loadArticle(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			rep, err := a.Report(!noRefs)
			if err != nil {
				return err
			}
			return render.Markdown(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().Bool("no-references", false, "Skip resolving citations into a reference list")
	return cmd
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch TITLE",
		Short: "Download the rendered HTML of an article",
		Long: `Download the rendered HTML of an article through the wiki's parse API.

The output starts with two comments naming the title and the permalink of
the parsed revision, so saved files record where they came from.

Example:
  wikirefs fetch "Arthur O. Austin" > austin.html
  wikirefs fetch --api https://de.wikipedia.org/w/api.php Berlin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			apiURL, _ := cmd.Flags().GetString("api")
			if apiURL == "" {
				apiURL = cfg.WikiAPIURL
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")
			if timeout <= 0 {
				timeout = cfg.WikiTimeout
			}

			client := wiki.NewClient(apiURL, cfg.WikiUserAgent, timeout)
			defer client.Close()

			page, err := client.FetchParsed(context.Background(), args[0])
			if err != nil {
				return err
			}
			return writeFetched(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().String("api", "", "api.php endpoint (default WIKI_API_URL or English Wikipedia)")
	cmd.Flags().Duration("timeout", 30*time.Second, "HTTP timeout")
	return cmd
}

func loadArticle(path string, stdin io.Reader) (*article.Article, error) {
	if path == "-" {
		return article.FromHTML(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return article.FromHTML(f)
}

func writeStatements(w io.Writer, a *article.Article) error {
	statements, err := a.Statements()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, st := range statements {
		if err := enc.Encode(st); err != nil {
			return err
		}
	}
	return nil
}

func writeReferences(w io.Writer, a *article.Article) error {
	rep, err := a.Report(true)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep.References)
}

func writeFetched(w io.Writer, page *wiki.Page) error {
	if _, err := fmt.Fprintf(w, "<!-- %s -->\n", page.Title); err != nil {
		return err
	}
	if page.Permalink != "" {
		if _, err := fmt.Fprintf(w, "<!-- Created from %s -->\n", page.Permalink); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, page.HTML)
	return err
}
