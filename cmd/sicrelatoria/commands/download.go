package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"sicrelatoria/internal/pipeline"
	"sicrelatoria/internal/relatoria"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	downloadMax     int
	downloadDir     string
	downloadBrowser bool
	downloadTypes   []string
	downloadSize    int
)

// the root command downloads too, both bind the same values
func downloadFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&downloadMax, "max", 0, "The maximum amount of documents to process, 0 processes every result.")
	cmd.Flags().StringVar(&downloadDir, "dir", "documentos_sic", "The directory files are downloaded to.")
	cmd.Flags().BoolVar(&downloadBrowser, "selenium", false, "Only search and resolve through a real browser.")
	cmd.Flags().StringSliceVar(&downloadTypes, "types", nil, "The document types to look for in viewer pages, eg. Sentencia_escrita.")
	cmd.Flags().IntVar(&downloadSize, "size", 0, "The amount of results requested from the portal.")
}

func init() {
	downloadFlags(downloadCmd)
	downloadFlags(rootCmd)
	rootCmd.Args = cobra.ArbitraryArgs
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runDownload(cmd, args)
	}
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download <terms...> [--max <n>] [--dir <path>] [--selenium]",
	Short: "Searches the portal and downloads the files of every ruling found.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDownload,
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	config := e.config
	config.ViewerLabels = selectLabels(e.tel, downloadTypes, config.ViewerLabels)
	if downloadSize > 0 {
		config.PageSize = downloadSize
	}

	term := termOf(args)
	fmt.Fprintf(os.Stdout, "searching %q, files go to %s\n", term, downloadDir)

	summaries, err := pipeline.Execute(ctx, config, e.tel, pipeline.Options{
		Term:         term,
		MaxDocuments: downloadMax,
		Dir:          downloadDir,
		BrowserOnly:  downloadBrowser,
		Dump:         e.dump,
	})
	if err != nil {
		return err
	}

	for _, s := range summaries {
		printDocuments(s)
	}
	printSummaries(summaries)

	err = pipeline.Failed(summaries)
	if errors.Is(err, relatoria.ErrExhausted) {
		fmt.Fprintln(os.Stdout, "no search strategy returned results")
	}
	if err != nil {
		fmt.Fprintln(os.Stdout, err)
	}
	return nil
}

func printDocuments(s pipeline.Summary) {
	if len(s.Documents) == 0 {
		return
	}
	t := newTable()
	t.SetTitle(fmt.Sprintf("%s pass (%s)", s.Pass, s.Strategy))
	t.AppendHeader(table.Row{"#", "Expediente", "Año", "Tipo", "Título", "Archivos", "Descargados", "Error"})
	for i, d := range s.Documents {
		errText := ""
		if d.Err != nil {
			errText = truncate(d.Err.Error(), 60)
		}
		t.AppendRow(table.Row{
			i + 1,
			d.Record.CaseNumber,
			d.Record.Year,
			d.Record.RulingType,
			truncate(d.Record.Title, 50),
			d.Resolved,
			fmt.Sprintf("%d/%d", d.Succeeded, d.Attempted),
			errText,
		})
	}
	t.Render()
}

func printSummaries(summaries []pipeline.Summary) {
	t := newTable()
	t.AppendHeader(table.Row{"Pass", "Strategy", "Found", "Processed", "Downloaded", "Dead ends", "Manifest"})
	for _, s := range summaries {
		strategy := s.Strategy
		if strategy == "" {
			strategy = "-"
		}
		t.AppendRow(table.Row{
			s.Pass,
			strategy,
			s.Found,
			s.Processed(),
			fmt.Sprintf("%d/%d", s.Succeeded(), s.Attempted()),
			s.DeadEnds(),
			s.Manifest,
		})
	}
	t.Render()
	if len(summaries) > 0 {
		last := summaries[len(summaries)-1]
		fmt.Fprintf(os.Stdout, "processed %d documents, downloaded %d files into %s\n",
			last.Processed(), last.Succeeded(), strings.TrimSuffix(last.Dir, "/"))
	}
}
