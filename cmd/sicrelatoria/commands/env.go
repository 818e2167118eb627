package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/lib/configutil"
	"sicrelatoria/lib/restyutil"
	"sicrelatoria/lib/textutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

const configName = "sicrelatoria.json5"

// labelThreshold is the minimum similarity for a --types value to select a
// viewer label.
const labelThreshold = 0.85

// env is everything a command needs before touching the portal.
type env struct {
	config    relatoria.Config
	tel       telemetry.API
	telemetry telemetry.Telemetry
	dump      restyutil.InstrumentOutput
	stopPerf  context.CancelFunc
}

func (e env) Close(ctx context.Context) {
	e.stopPerf()
	err := e.telemetry.Shutdown(ctx)
	if err != nil {
		e.tel.ReportBroken("cli.telemetry-shutdown", err)
	}
}

// loadConfig decodes the config file over the defaults, so every key the file
// leaves out keeps its production value and a written zero stays zero.
func loadConfig() (relatoria.Config, error) {
	if *configPath != "" {
		config, err := configutil.ReadConfig(*configPath, relatoria.DefaultConfig())
		if err != nil {
			return config, fmt.Errorf("read config %s: %w", *configPath, err)
		}
		return config, nil
	}
	config, err := configutil.ReadRecursively(configName, relatoria.DefaultConfig())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("read config: %w", err)
	}
	return config, nil
}

func setup(ctx context.Context) (env, error) {
	telemetry.InitSlog(os.Stdout, *verbose)
	out := env{tel: telemetry.SlogAPI{}, stopPerf: func() {}}

	config, err := loadConfig()
	if err != nil {
		return out, err
	}
	out.config = config

	tel, err := telemetry.Setup(ctx, "sicrelatoria", config.Telemetry)
	if err != nil {
		// exporting is optional, the run goes on with the no-op providers
		out.tel.ReportWarning("cli.telemetry-setup", err)
	}
	out.telemetry = tel
	if tel.MetricsEnabled() {
		perfCtx, cancel := context.WithCancel(ctx)
		telemetry.InstrumentPerfStats(perfCtx, out.tel)
		out.stopPerf = cancel
	}

	if *httpDump != "" {
		dump, err := restyutil.NewFilesystemOutput(*httpDump)
		if err != nil {
			return out, fmt.Errorf("http dump: %w", err)
		}
		slog.Info("dumping http exchanges", "dir", dump.Directory())
		out.dump = dump
	}
	return out, nil
}

// selectLabels maps the user supplied document types onto the known viewer
// labels, unknown types are reported and skipped.
func selectLabels(tel telemetry.API, requested []string, known []string) []string {
	if len(requested) == 0 {
		return known
	}
	selected := []string{}
	for _, r := range requested {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		label, ok := textutil.BestLabel(r, known, labelThreshold)
		if !ok {
			tel.ReportWarning("cli.types", r, "unknown document type, known types: "+strings.Join(known, ", "))
			continue
		}
		if !contains(selected, label) {
			selected = append(selected, label)
		}
	}
	if len(selected) == 0 {
		return known
	}
	return selected
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-1]) + "…"
}

func termOf(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
