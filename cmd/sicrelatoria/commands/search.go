package commands

import (
	"fmt"
	"os"
	"strings"

	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/search"
	"sicrelatoria/internal/session"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	searchBrowser *bool
	searchSize    *int
)

func init() {
	searchBrowser = searchCmd.Flags().Bool("selenium", false, "Only search through a real browser.")
	searchSize = searchCmd.Flags().Int("size", 0, "The amount of results requested from the portal.")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <terms...> [--size <n>] [--selenium]",
	Short: "Searches the portal and prints the rulings found without downloading them.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.Close(ctx)

		config := e.config
		if *searchSize > 0 {
			config.PageSize = *searchSize
		}

		sess, err := session.New(config, e.tel, session.Options{Dump: e.dump})
		if err != nil {
			return err
		}
		defer sess.Close()

		clock := chrono.NewStandardImpl()
		chain := search.NewStandardChain(sess, e.tel, clock, config)
		if *searchBrowser {
			chain = search.NewBrowserChain(sess, e.tel, clock, config)
		}

		result := chain.Search(ctx, relatoria.SearchQuery{
			Term: termOf(args),
			Size: config.PageSize,
		})
		if err := result.Err(); err != nil {
			fmt.Fprintln(os.Stdout, err)
			return nil
		}

		t := newTable()
		t.SetTitle(fmt.Sprintf("%d results (%s)", len(result.Records), result.Strategy))
		t.AppendHeader(table.Row{"#", "Id", "Expediente", "Año", "Fecha", "Título", "Partes", "Archivos"})
		for i, r := range result.Records {
			t.AppendRow(table.Row{
				i + 1,
				r.Id,
				r.CaseNumber,
				r.Year,
				r.Date,
				truncate(r.Title, 50),
				truncate(strings.Join(r.Parties, ", "), 40),
				len(r.Files),
			})
		}
		t.Render()
		return nil
	},
}
