package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/jobfill/internal/browser"
	"github.com/v0xg/jobfill/internal/capture"
	"github.com/v0xg/jobfill/internal/classifier"
	"github.com/v0xg/jobfill/internal/coordinator"
	"github.com/v0xg/jobfill/internal/flow"
	"github.com/v0xg/jobfill/internal/jobinfo"
	"github.com/v0xg/jobfill/internal/profile"
	"github.com/v0xg/jobfill/internal/protocol"
)

func classifyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify <url>",
		Short: "Score a page as job application or not",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, page, err := openPage(ctx, args[0])
			if err != nil {
				return err
			}
			defer b.Close()
			defer page.Close()

			c, err := newClassifier()
			if err != nil {
				return err
			}
			fmt.Printf("→ Classifying... ")
			res, err := classifier.NewDetector(c, detectorOptions()).Detect(ctx, page)
			if err != nil {
				fmt.Println("failed")
				return fmt.Errorf("classification failed: %w", err)
			}
			fmt.Println("done")

			if asJSON {
				return printJSON(res)
			}
			verdict := "not a job application"
			if res.IsMatch {
				verdict = "job application"
			}
			fmt.Printf("✓ %s: %s\n", verdict, res.Method)
			if verbose {
				for _, s := range res.Signals {
					fmt.Printf("  %+5.1f  %-16s %s\n", s.Weight, s.Category, s.Keyword)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func generateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "generate <url>",
		Short: "Generate a fill instruction document for a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := loadProfile()
			if err != nil {
				return err
			}
			b, page, err := openPage(ctx, args[0])
			if err != nil {
				return err
			}
			defer b.Close()
			defer page.Close()

			doc, err := generateDocument(ctx, page, p)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("✓ Saved to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file")
	return cmd
}

func runCmd() *cobra.Command {
	var (
		docPath    string
		screenshot string
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Classify, generate and fill a job application page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var doc *protocol.Document
			if docPath != "" {
				f, err := os.Open(docPath)
				if err != nil {
					return err
				}
				doc, err = protocol.Decode(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("invalid document %s: %w", docPath, err)
				}
			}

			b, page, err := openPage(ctx, args[0])
			if err != nil {
				return err
			}
			defer b.Close()
			defer page.Close()

			if !force {
				c, err := newClassifier()
				if err != nil {
					return err
				}
				fmt.Printf("→ Classifying... ")
				res, err := classifier.NewDetector(c, detectorOptions()).Detect(ctx, page)
				if err != nil {
					fmt.Println("failed")
					return fmt.Errorf("classification failed: %w", err)
				}
				fmt.Printf("done (%s)\n", res.Method)
				if !res.IsMatch {
					return errors.New("page does not look like a job application (use --force to fill anyway)")
				}
			}

			if doc == nil {
				p, err := loadProfile()
				if err != nil {
					return err
				}
				doc, err = generateDocument(ctx, page, p)
				if err != nil {
					return err
				}
			}

			var job jobinfo.Info
			if snap, err := page.Snapshot(ctx); err == nil {
				job = jobinfo.Extract(snap)
			}

			fmt.Println("→ Filling...")
			opts := flowOptions()
			opts.OnStep = printStep
			res := flow.New(page, opts).Run(ctx, doc)

			if !res.Success {
				if screenshot != "" {
					saveScreenshot(page, screenshot, capture.FailureColor)
				}
				return fmt.Errorf("run aborted: %s: %s", res.Error, res.Detail)
			}
			if screenshot != "" {
				saveScreenshot(page, screenshot, capture.SuccessColor)
			}
			fmt.Printf("✓ Filled %d steps", len(res.Log))
			if job.Title != "" {
				fmt.Printf(" for %s", job.Title)
				if job.Company != "" {
					fmt.Printf(" at %s", job.Company)
				}
			}
			fmt.Println()
			if verbose {
				printAnswers(ctx, page)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&docPath, "document", "d", "", "Run this instruction document instead of generating one")
	cmd.Flags().StringVar(&screenshot, "screenshot", "", "Save a thumbnail of the page here when the run ends (red border on abort)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the job application check")
	return cmd
}

func serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API for the browser extension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}

			b, err := launchBrowser()
			if err != nil {
				return err
			}
			defer b.Close()

			c, err := newClassifier()
			if err != nil {
				return err
			}
			gen, err := newProvider()
			if err != nil {
				return err
			}

			coord := coordinator.New(coordinator.Options{
				Opener: coordinator.OpenerFunc(func(ctx context.Context, url string) (coordinator.Tab, error) {
					page, err := b.Open(ctx, url)
					if err != nil {
						return nil, err
					}
					return page, nil
				}),
				Classifier: c,
				Detector:   detectorOptions(),
				Provider:   gen,
				Profile:    coordinator.FileProfile(cfg.ProfilePath),
				Flow:       flowOptions(),
				Logger:     logger,
			})
			defer coord.Shutdown()

			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           coord.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				errc <- srv.ListenAndServe()
			}()
			logger.Info("listening", zap.String("addr", cfg.Listen))
			fmt.Printf("✓ Listening on http://%s\n", cfg.Listen)

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default: from config)")
	return cmd
}

func openPage(ctx context.Context, url string) (*browser.Browser, *browser.Page, error) {
	fmt.Printf("→ Opening %s... ", url)
	b, err := launchBrowser()
	if err != nil {
		fmt.Println("failed")
		return nil, nil, err
	}
	page, err := b.Open(ctx, url)
	if err != nil {
		fmt.Println("failed")
		b.Close()
		return nil, nil, err
	}
	if page.IsSPA(ctx) {
		fmt.Println("done (SPA)")
	} else {
		fmt.Println("done")
	}
	return b, page, nil
}

func generateDocument(ctx context.Context, page *browser.Page, p *profile.Profile) (*protocol.Document, error) {
	gen, err := newProvider()
	if err != nil {
		return nil, fmt.Errorf("AI provider init failed: %w", err)
	}

	fmt.Printf("→ Generating instructions via %s... ", cfg.AI.Provider)
	snap, err := page.Snapshot(ctx)
	if err != nil {
		fmt.Println("failed")
		return nil, fmt.Errorf("snapshot failed: %w", err)
	}
	doc, err := gen.GenerateDocument(ctx, snap, p)
	if err != nil {
		fmt.Println("failed")
		return nil, fmt.Errorf("instruction generation failed: %w", err)
	}

	n := 0
	for _, pg := range doc.Pages {
		n += len(pg.Instructions)
	}
	fmt.Printf("done (%d pages, %d instructions)\n", doc.TotalPages, n)
	return doc, nil
}

func printStep(s flow.Step) {
	status := "ok"
	if s.Err != nil {
		status = "failed: " + s.Err.Error()
		if !s.Instruction.Required {
			status = "skipped: " + s.Err.Error()
		}
	}
	target := ""
	if s.Instruction.Selector != nil {
		target = s.Instruction.Selector.String()
	}
	desc := s.Instruction.FieldDescription
	if desc == "" {
		desc = target
	}
	fmt.Printf("  [%d.%d/%d] %s → %s (%s)\n", s.Page, s.Index, s.Total, s.Instruction.Kind(), desc, status)
}

// saveScreenshot runs on its own deadline so an interrupted run can still
// be captured. The border colour marks the outcome.
func saveScreenshot(page *browser.Page, path string, border color.Color) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	size, err := capture.Page(ctx, page, path, capture.Options{Border: border})
	if err != nil {
		logger.Warn("failed to save screenshot", zap.Error(err))
		return
	}
	fmt.Printf("  screenshot saved to %s (%.1f KB)\n", path, float64(size)/1024)
}

func printAnswers(ctx context.Context, page *browser.Page) {
	snap, err := page.Snapshot(ctx)
	if err != nil {
		logger.Warn("failed to read answers", zap.Error(err))
		return
	}
	answers := jobinfo.CollectAnswers(snap, time.Now())
	for _, label := range slices.Sorted(maps.Keys(answers.Fields)) {
		fmt.Printf("  %s: %s\n", label, answers.Fields[label])
	}
	if answers.ResumeUsed != "" {
		fmt.Printf("  resume: %s\n", answers.ResumeUsed)
	}
	if answers.CoverLetterUsed != "" {
		fmt.Printf("  cover letter: %s\n", answers.CoverLetterUsed)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
