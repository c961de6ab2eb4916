package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

const stdinPath = "-"

func (a *App) newListCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the quotes visible under a category",
		Long: `List the quotes visible under --category. Without it the persisted
filter selection applies, the same one "quotectl filter" shows.`,
		Example: `  quotectl list
  quotectl list --category all
  quotectl list -c Programming -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			visible := c.Quotes.VisibleQuotes(cmd.Context(), category)
			if len(visible) == 0 && a.format == FormatTable {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), domain.NewNoQuotesFoundError(category))
				return err
			}

			return a.print(cmd, newQuoteList(visible))
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category to show, or 'all'")

	return cmd
}

func (a *App) newAddCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:     "add TEXT...",
		Short:   "Add a quote",
		Example: `  quotectl add --category Life "Less, but better."`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			quote, err := c.Quotes.AddQuote(cmd.Context(), strings.Join(args, " "), category)
			if err != nil {
				return err
			}

			return a.print(cmd, newQuoteList([]domain.Quote{quote}))
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category to file the quote under")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func (a *App) newRandomCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Show one random visible quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			quote, err := c.Quotes.RandomQuote(cmd.Context(), category)
			if err != nil {
				return err
			}

			return a.print(cmd, newQuoteList([]domain.Quote{quote}))
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category to pick from, or 'all'")

	return cmd
}

func (a *App) newCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories, starting with 'all'",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			return a.print(cmd, categoryList(c.Quotes.Categories(cmd.Context())))
		},
	}
}

func (a *App) newFilterCommand() *cobra.Command {
	get := func(cmd *cobra.Command, _ []string) error {
		c, err := a.open(cmd.Context())
		if err != nil {
			return err
		}

		return a.print(cmd, filterView{Category: c.Quotes.Filter(cmd.Context())})
	}

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show or change the persisted category filter",
		Args:  cobra.NoArgs,
		RunE:  get,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the persisted category filter",
			Args:  cobra.NoArgs,
			RunE:  get,
		},
		&cobra.Command{
			Use:     "set CATEGORY",
			Short:   "Persist a category filter",
			Example: `  quotectl filter set Programming
  quotectl filter set all`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.open(cmd.Context())
				if err != nil {
					return err
				}

				category, err := c.Quotes.SetFilter(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return a.print(cmd, filterView{Category: category})
			},
		},
	)

	return cmd
}

func (a *App) newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the quote list with the remote source once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			report, err := c.Sync.Sync(cmd.Context())
			if err != nil {
				return err
			}

			return a.print(cmd, syncView{
				Status:  app.StatusComplete,
				Policy:  string(report.Policy),
				Fetched: report.Fetched,
				Added:   report.Added,
				Updated: report.Updated,
				Changed: report.Changed,
				Message: report.Message,
			})
		},
	}
}

func (a *App) newExportCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole quote list as JSON",
		Long: `Write the whole quote list as a JSON array, ignoring the filter and
--output. The result is accepted by "quotectl import".`,
		Example: `  quotectl export > quotes.json
  quotectl export --file backup/quotes.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			quotes := dto.NewQuoteResponses(c.Quotes.Export(cmd.Context()))

			data, err := json.MarshalIndent(quotes, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding quotes: %w", err)
			}

			data = append(data, '\n')

			if file == "" || file == stdinPath {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if err := os.WriteFile(file, data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", file, err)
			}

			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "exported %d quotes to %s\n", len(quotes), file)

			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "destination file (default: stdout)")

	return cmd
}

func (a *App) newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge quotes from a JSON export",
		Long: `Merge quotes from a JSON array into the list. Records whose id is
already present replace it; the others are appended, getting an id when
they have none. One invalid record rejects the whole file. Use - to read
standard input.`,
		Example: `  quotectl import quotes.json
  quotectl export | quotectl import -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readImport(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			result, err := c.Quotes.Import(cmd.Context(), records)
			if err != nil {
				return err
			}

			return a.print(cmd, importView{Added: result.Added, Updated: result.Updated, Total: result.Total})
		},
	}
}

// readImport decodes and checks an import file. Records share the HTTP
// import's validation rules.
func readImport(stdin io.Reader, path string) ([]domain.Quote, error) {
	r := stdin
	if path != stdinPath {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()

		r = f
	}

	var req dto.ImportQuotesRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	var errs []error
	quotes := make([]domain.Quote, 0, len(req))

	for i, record := range req {
		if err := dto.Validate(record); err != nil {
			for field, msg := range dto.ValidationErrors(err) {
				errs = append(errs, domain.NewValidationError(fmt.Sprintf("[%d].%s", i, field), msg))
			}

			continue
		}

		quotes = append(quotes, record.ToDomain())
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return quotes, nil
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.print(cmd, a.versionView())
		},
	}
}
