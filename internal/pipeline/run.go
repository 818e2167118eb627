package pipeline

import (
	"context"
	"errors"
	"fmt"

	"sicrelatoria/internal/assert"
	"sicrelatoria/internal/components/chrono"
	"sicrelatoria/internal/components/telemetry"
	"sicrelatoria/internal/download"
	"sicrelatoria/internal/relatoria"
	"sicrelatoria/internal/resolve"
	"sicrelatoria/internal/search"
	"sicrelatoria/internal/session"
	"sicrelatoria/lib/restyutil"
)

const (
	PassHttp    = "http"
	PassBrowser = "browser"
)

const (
	report_run_session  = "run.session"
	report_run_escalate = "run.escalate"
)

type Options struct {
	Term         string
	MaxDocuments int
	Dir          string
	// BrowserOnly skips the http pass and only goes through the rendered portal.
	BrowserOnly bool
	// NoEscalation keeps the browser pass from running after an http pass
	// that downloaded nothing.
	NoEscalation bool

	Clock    chrono.API
	Dump     restyutil.InstrumentOutput
	Renderer session.Renderer
}

// Execute runs one or two passes over the term with a session that is released
// before returning. The http pass escalates to the browser pass when it found
// records but downloaded nothing.
func Execute(ctx context.Context, config relatoria.Config, tel telemetry.API, opts Options) ([]Summary, error) {
	assert.NotNil(tel)
	runTel := telemetry.NewScopedAPI("pipeline", tel)

	clock := opts.Clock
	if clock == nil {
		clock = chrono.NewStandardImpl()
	}

	sess, err := session.New(config, tel, session.Options{
		Dump:     opts.Dump,
		Renderer: opts.Renderer,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			runTel.ReportBroken(report_run_session, closeErr)
		}
	}()

	downloader := download.New(sess, tel)
	summaries := []Summary{}

	if !opts.BrowserOnly {
		httpPass := NewOrchestrator(
			PassHttp,
			search.NewStandardChain(sess, tel, clock, config),
			resolve.NewStandardChain(sess, tel, clock, config, true),
			downloader, clock, config, tel,
		)
		summary := httpPass.Run(ctx, opts.Term, opts.MaxDocuments, opts.Dir)
		summaries = append(summaries, summary)

		if !shouldEscalate(summary) || opts.NoEscalation {
			return summaries, nil
		}
		runTel.ReportWarning(report_run_escalate, opts.Term, "no files downloaded, retrying through the browser")
	}

	browserPass := NewOrchestrator(
		PassBrowser,
		search.NewBrowserChain(sess, tel, clock, config),
		resolve.NewBrowserChain(sess, tel, clock, config),
		downloader, clock, config, tel,
	)
	summaries = append(summaries, browserPass.Run(ctx, opts.Term, opts.MaxDocuments, opts.Dir))
	return summaries, nil
}

// shouldEscalate is true when the http pass found records through a non
// browser strategy but nothing got downloaded, an empty search already went
// through the browser.
func shouldEscalate(summary Summary) bool {
	if summary.Found == 0 || summary.Succeeded() > 0 {
		return false
	}
	return summary.Strategy != search.BrowserRender{}.Name()
}

// Failed reports whether any pass hit an error worth surfacing.
func Failed(summaries []Summary) error {
	var errs []error
	for _, s := range summaries {
		if s.SearchErr != nil {
			errs = append(errs, fmt.Errorf("%s pass: %w", s.Pass, s.SearchErr))
		}
	}
	return errors.Join(errs...)
}
