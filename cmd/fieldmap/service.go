package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coolbeans/fieldmap/pkg/cache"
	"github.com/coolbeans/fieldmap/pkg/profile"
	"github.com/coolbeans/fieldmap/pkg/server"
	"github.com/coolbeans/fieldmap/pkg/watch"
)

func profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect vocabulary profiles",
		Long: `List, show and validate the vocabulary profiles used to read data
guides. Built-in profiles are always available; YAML files in the
configured profile directory add to or replace them.

Examples:
  fieldmap profiles list
  fieldmap profiles show sec-form-d
  fieldmap profiles validate profiles/my-guide.yaml`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			reg, err := e.registry()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tVERSION\tSOURCE\tNAME")
			for _, p := range reg.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Version, p.Source(), p.Name)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a profile as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			reg, err := e.registry()
			if err != nil {
				return err
			}
			p, err := reg.Lookup(args[0])
			if err != nil {
				return err
			}
			data, err := p.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a profile file loads and compiles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.ValidateFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %s (%s) is valid\n", p.ID, p.Version)
			return nil
		},
	})

	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Extract guides as they arrive in a directory",
		Long: `Watch an input directory and extract every new or changed .pdf or .txt
guide into the output directory. Files already present are processed on
start. With watch.rescan set (a cron expression such as "@every 10m") the
directory is also rescanned periodically.

Example:
  fieldmap watch --dir input --output-dir output --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			noCache, _ := cmd.Flags().GetBool("no-cache")

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			applyExtractFlags(cmd, e.cfg)
			if cmd.Flags().Changed("dir") {
				e.cfg.Watch.InputDir, _ = cmd.Flags().GetString("dir")
			}
			if cmd.Flags().Changed("output-dir") {
				e.cfg.Watch.OutputDir, _ = cmd.Flags().GetString("output-dir")
			}
			if cmd.Flags().Changed("rescan") {
				e.cfg.Watch.Rescan, _ = cmd.Flags().GetString("rescan")
			}
			if err := e.cfg.Validate(); err != nil {
				return err
			}

			format, err := outputFormat(cmd, e.cfg, "")
			if err != nil {
				return err
			}
			req, err := buildRequest(e.cfg, "", noCache)
			if err != nil {
				return err
			}

			p, release, err := e.pipeline(noCache)
			if err != nil {
				return err
			}
			defer release()

			if e.cfg.Profiles.Watch && e.cfg.Profiles.Dir != "" {
				if err := p.Registry().Watch(); err != nil {
					e.logger.Warn().Err(err).Msg("profile hot reload disabled")
				} else {
					defer p.Registry().StopWatch()
				}
			}

			w, err := watch.New(p, watch.Options{
				InputDir:  e.cfg.Watch.InputDir,
				OutputDir: e.cfg.Watch.OutputDir,
				Format:    format,
				Rescan:    e.cfg.Watch.Rescan,
				ProfileID: req.ProfileID,
				Parser:    req.Options,
				PDF:       req.PDF,
				NoCache:   noCache,
			}, e.logger)
			if err != nil {
				return err
			}
			w.OnResult(func(r watch.Result) {
				switch {
				case r.Err != nil:
					fmt.Printf("FAILED  %s: %v\n", r.Source, r.Err)
				case r.Output == "":
					fmt.Printf("EMPTY   %s\n", r.Source)
				default:
					fmt.Printf("OK      %s -> %s (%d fields)\n", r.Source, r.Output, r.Records)
				}
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := w.Start(ctx); err != nil {
				return err
			}
			fmt.Printf("Watching %s (Ctrl+C to stop)\n", e.cfg.Watch.InputDir)
			<-ctx.Done()

			if err := w.Stop(); err != nil {
				return err
			}
			status := w.Status()
			fmt.Printf("Processed %d guides, %d failed\n", status.Processed, status.Failed)
			return nil
		},
	}

	cmd.Flags().String("dir", "", "Input directory (default: watch.input_dir)")
	cmd.Flags().String("output-dir", "", "Output directory (default: watch.output_dir)")
	cmd.Flags().String("rescan", "", "Cron schedule for full rescans, e.g. \"@every 10m\"")
	cmd.Flags().StringP("format", "f", "", "Output format: csv, json, sqlite, pdf")
	cmd.Flags().StringP("profile", "p", "", "Vocabulary profile ID")
	cmd.Flags().Bool("permissive", false, "Treat sections without a header row as table body")
	cmd.Flags().String("name-case", "", "Field name case: upper-snake, preserve")
	cmd.Flags().String("accumulation", "", "Description accumulation: single, queue")
	cmd.Flags().Int("workers", 0, "Sections parsed in parallel")
	cmd.Flags().String("pages", "", "PDF pages to read")
	cmd.Flags().String("backend", "", "PDF text backend: rows, content")
	cmd.Flags().Bool("no-cache", false, "Bypass the extracted text cache")

	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction API over HTTP",
		Long: `Start an HTTP server exposing the extractor.

Endpoints:
  GET  /healthz
  GET  /v1/profiles
  GET  /v1/profiles/{id}
  POST /v1/extract?profile=&header_mode=&name_case=&accumulation=&pages=&format=json|csv

POST a text/plain or application/pdf body to /v1/extract.

Example:
  fieldmap serve --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				e.cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}

			p, release, err := e.pipeline(false)
			if err != nil {
				return err
			}
			defer release()

			if e.cfg.Profiles.Watch && e.cfg.Profiles.Dir != "" {
				if err := p.Registry().Watch(); err != nil {
					e.logger.Warn().Err(err).Msg("profile hot reload disabled")
				} else {
					defer p.Registry().StopWatch()
				}
			}

			srv := server.New(p, server.Options{
				MaxBodyBytes:  e.cfg.Server.MaxBodyMB << 20,
				RatePerSecond: e.cfg.Server.RatePerSecond,
				Burst:         e.cfg.Server.Burst,
			}, e.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Serving on %s (Ctrl+C to stop)\n", e.cfg.Server.Addr)
			return srv.ListenAndServe(ctx, e.cfg.Server.Addr)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr)")

	return cmd
}

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the extracted text cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show how many extractions are cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(c *cache.TextCache, dir string) error {
				n, err := c.Count()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d cached extractions in %s\n", n, dir)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached extraction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, func(c *cache.TextCache, dir string) error {
				if err := c.Clear(); err != nil {
					return fmt.Errorf("failed to clear cache: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared cache in %s\n", dir)
				return nil
			})
		},
	})

	return cmd
}

func withCache(cmd *cobra.Command, fn func(c *cache.TextCache, dir string) error) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	c, err := cache.Open(e.cfg.Cache.Dir, e.logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c, e.cfg.Cache.Dir)
}
