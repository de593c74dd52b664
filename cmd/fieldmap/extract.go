package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coolbeans/fieldmap/pkg/config"
	"github.com/coolbeans/fieldmap/pkg/export"
	"github.com/coolbeans/fieldmap/pkg/fields"
	"github.com/coolbeans/fieldmap/pkg/pdftext"
	"github.com/coolbeans/fieldmap/pkg/pipeline"
)

// debugTextFile is written next to the output by --dump-text.
const debugTextFile = "debug_extracted_text.txt"

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract field records from a data guide",
		Long: `Extract (section, field name, field description) records from a PDF
data guide or from text already extracted from one.

When the guide yields no fields a warning is logged and no output file is
written. A source whose text cannot be extracted exits with status 1.

Example:
  fieldmap extract --source formd.pdf
  fieldmap extract --source formd.pdf --output out/fields.json --stats
  fieldmap extract --source dictionary.txt --profile data-dictionary --permissive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			output, _ := cmd.Flags().GetString("output")
			dumpText, _ := cmd.Flags().GetBool("dump-text")
			showStats, _ := cmd.Flags().GetBool("stats")
			noCache, _ := cmd.Flags().GetBool("no-cache")

			if source == "" {
				return fmt.Errorf("--source flag is required")
			}
			if _, err := os.Stat(source); os.IsNotExist(err) {
				return fmt.Errorf("source file not found: %s", source)
			}

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			applyExtractFlags(cmd, e.cfg)
			if err := e.cfg.Validate(); err != nil {
				return err
			}

			format, err := outputFormat(cmd, e.cfg, output)
			if err != nil {
				return err
			}
			if output == "" && format != export.FormatTable {
				output = defaultOutputPath(e.cfg.Output.Dir, source, format)
			}

			req, err := buildRequest(e.cfg, source, noCache)
			if err != nil {
				return err
			}

			p, release, err := e.pipeline(noCache)
			if err != nil {
				return err
			}
			defer release()

			outcome, err := p.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if dumpText {
				dir := e.cfg.Output.Dir
				if output != "" {
					dir = filepath.Dir(output)
				}
				if err := writeDebugText(dir, outcome.Text); err != nil {
					return err
				}
			}

			if showStats {
				printStats(outcome)
			}

			if len(outcome.Records) == 0 {
				e.logger.Warn().Str("source", source).Msg("no fields extracted; no output written")
				fmt.Println("No fields extracted.")
				return nil
			}

			if format == export.FormatTable {
				return export.WriteTable(cmd.OutOrStdout(), outcome.Records)
			}
			if err := export.WriteFile(output, format, outcome.Records); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			fmt.Printf("Extracted %d fields from %d sections to %s\n",
				len(outcome.Records), outcome.Stats.Sections, output)
			return nil
		},
	}

	cmd.Flags().StringP("source", "s", "", "PDF or text file to extract from (required)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: <output dir>/<source name>.<format>)")
	cmd.Flags().StringP("format", "f", "", "Output format: csv, json, sqlite, pdf, table")
	cmd.Flags().StringP("profile", "p", "", "Vocabulary profile ID")
	cmd.Flags().Bool("permissive", false, "Treat sections without a header row as table body")
	cmd.Flags().String("name-case", "", "Field name case: upper-snake, preserve")
	cmd.Flags().String("accumulation", "", "Description accumulation: single, queue")
	cmd.Flags().String("pages", "", "PDF pages to read, e.g. 3-12 or 1,4-")
	cmd.Flags().String("backend", "", "PDF text backend: rows, content")
	cmd.Flags().Int("workers", 0, "Sections parsed in parallel")
	cmd.Flags().Bool("no-cache", false, "Bypass the extracted text cache")
	cmd.Flags().Bool("dump-text", false, "Write the extracted text to "+debugTextFile+" next to the output")
	cmd.Flags().Bool("stats", false, "Print extraction statistics")

	return cmd
}

// applyExtractFlags copies explicitly set flags over the configuration.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("profile") {
		cfg.Extract.Profile, _ = flags.GetString("profile")
	}
	if permissive, _ := flags.GetBool("permissive"); permissive {
		cfg.Extract.HeaderMode = string(fields.HeaderPermissive)
	}
	if flags.Changed("name-case") {
		cfg.Extract.NameCase, _ = flags.GetString("name-case")
	}
	if flags.Changed("accumulation") {
		cfg.Extract.Accumulation, _ = flags.GetString("accumulation")
	}
	if flags.Changed("workers") {
		cfg.Extract.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("pages") {
		cfg.PDF.Pages, _ = flags.GetString("pages")
	}
	if flags.Changed("backend") {
		cfg.PDF.Backend, _ = flags.GetString("backend")
	}
}

// outputFormat picks the format from --format, then the output file's
// extension, then the configuration.
func outputFormat(cmd *cobra.Command, cfg *config.Config, output string) (export.Format, error) {
	if cmd.Flags().Changed("format") {
		f, _ := cmd.Flags().GetString("format")
		return export.ParseFormat(f)
	}
	if output != "" {
		return export.FormatFromPath(output), nil
	}
	return export.ParseFormat(cfg.Output.Format)
}

func defaultOutputPath(dir, source string, format export.Format) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+format.Extension())
}

// parserOptions turns the extract configuration into parser options. Empty
// values keep the profile's choice.
func parserOptions(cfg config.ExtractConfig) ([]fields.Option, error) {
	var opts []fields.Option
	if cfg.HeaderMode != "" {
		mode, err := fields.ParseHeaderMode(cfg.HeaderMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fields.WithHeaderMode(mode))
	}
	if cfg.NameCase != "" {
		nc, err := fields.ParseNameCase(cfg.NameCase)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fields.WithNameCase(nc))
	}
	if cfg.Accumulation != "" {
		acc, err := fields.ParseAccumulation(cfg.Accumulation)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fields.WithAccumulation(acc))
	}
	if cfg.Workers > 0 {
		opts = append(opts, fields.WithWorkers(cfg.Workers))
	}
	return opts, nil
}

func pdfOptions(cfg config.PDFConfig) (pdftext.Options, error) {
	backend, err := pdftext.ParseBackend(cfg.Backend)
	if err != nil {
		return pdftext.Options{}, err
	}
	return pdftext.Options{Backend: backend, RowTolerance: cfg.RowTolerance, Pages: cfg.Pages}, nil
}

func buildRequest(cfg *config.Config, source string, noCache bool) (pipeline.Request, error) {
	opts, err := parserOptions(cfg.Extract)
	if err != nil {
		return pipeline.Request{}, err
	}
	pdfOpts, err := pdfOptions(cfg.PDF)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		Source:    source,
		ProfileID: cfg.Extract.Profile,
		Options:   opts,
		PDF:       pdfOpts,
		NoCache:   noCache,
	}, nil
}

func writeDebugText(dir, text string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, debugTextFile)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Extracted text written to %s\n", path)
	return nil
}

func printStats(outcome *pipeline.Outcome) {
	s := outcome.Stats
	fmt.Println("\nExtraction Statistics:")
	fmt.Printf("  Profile:             %s\n", outcome.Profile)
	if outcome.PageCount > 0 {
		fmt.Printf("  Pages:               %d\n", outcome.PageCount)
		fmt.Printf("  From cache:          %t\n", outcome.FromCache)
	}
	fmt.Printf("  Sections:            %d\n", s.Sections)
	fmt.Printf("  Headers missing:     %d\n", s.HeadersMissing)
	fmt.Printf("  Empty sections:      %d\n", s.EmptySections)
	fmt.Printf("  Records:             %d\n", s.Records)
	fmt.Printf("  Empty descriptions:  %d\n", s.EmptyDescriptions)
	fmt.Printf("  Orphan lines:        %d\n", s.Orphans)
	fmt.Printf("  Name merges:         %d\n", s.Merges)
	fmt.Printf("  Duplicates:          %d\n", s.Duplicates)
	fmt.Printf("  Duration:            %s\n", outcome.Duration)
	fmt.Println()
}

func textCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Extract the plain text of a PDF",
		Long: `Write the linearized text of a PDF (or a page range of it) to a file,
exactly as the field extractor sees it.

Example:
  fieldmap text --source formd.pdf --output formd.txt
  fieldmap text --source formd.pdf --output first.txt --pages 1-10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			output, _ := cmd.Flags().GetString("output")

			if source == "" {
				return fmt.Errorf("--source flag is required")
			}

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("pages") {
				e.cfg.PDF.Pages, _ = cmd.Flags().GetString("pages")
			}
			if cmd.Flags().Changed("backend") {
				e.cfg.PDF.Backend, _ = cmd.Flags().GetString("backend")
			}
			opts, err := pdfOptions(e.cfg.PDF)
			if err != nil {
				return err
			}

			result, err := pdftext.Extract(cmd.Context(), source, opts)
			if err != nil {
				return fmt.Errorf("%w: %w", pipeline.ErrTextExtraction, err)
			}
			for _, w := range result.Warnings {
				e.logger.Warn().Str("source", source).Msg(w)
			}

			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), result.Text())
				return nil
			}
			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(output, []byte(result.Text()+"\n"), 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			fmt.Printf("Wrote text of %d of %d pages to %s\n", len(result.Pages), result.PageCount, output)
			return nil
		},
	}

	cmd.Flags().StringP("source", "s", "", "PDF file (required)")
	cmd.Flags().StringP("output", "o", "", "Output text file (default: stdout)")
	cmd.Flags().String("pages", "", "Pages to read, e.g. 1-10")
	cmd.Flags().String("backend", "", "PDF text backend: rows, content")

	return cmd
}

func trimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trim <input.pdf> <output.pdf> <start> <end>",
		Short: "Write a page range of a PDF to a new file",
		Long: `Copy pages start through end (1-indexed, inclusive) of a PDF into a
new file. Useful for cutting the field tables out of a long guide.

Example:
  fieldmap trim formd.pdf tables.pdf 4 12`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid start page %q", args[2])
			}
			end, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("invalid end page %q", args[3])
			}

			if err := pdftext.Trim(args[0], args[1], start, end); err != nil {
				return err
			}
			fmt.Printf("Wrote pages %d-%d of %s to %s\n", start, end, args[0], args[1])
			return nil
		},
	}
}
