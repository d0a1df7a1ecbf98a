package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"lotlister/internal/connectors"
	gmailconnector "lotlister/internal/connectors/gmail"
	imapconnector "lotlister/internal/connectors/imap"
	"lotlister/internal/listener"
	"lotlister/internal/pipeline"
)

func runCmd(a *app) *cobra.Command {
	var (
		manifest, taxonomy, postage, date string
		invoices                          []string
		invoiceDir                        string
		discount                          float64
		inbox                             bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the listing workbook and upload CSV for one manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := pipeline.RunRequest{Date: date, ShippingDiscount: discount, IncludeInbox: inbox}
			var err error
			if req.Manifest, err = readOptional(manifest); err != nil {
				return err
			}
			if req.Taxonomy, err = readOptional(taxonomy); err != nil {
				return err
			}
			if req.Postage, err = readOptional(postage); err != nil {
				return err
			}

			paths := append([]string(nil), invoices...)
			if invoiceDir != "" {
				entries, err := os.ReadDir(invoiceDir)
				if err != nil {
					return err
				}
				for _, e := range entries {
					if !e.IsDir() {
						paths = append(paths, filepath.Join(invoiceDir, e.Name()))
					}
				}
			}
			for i, p := range paths {
				doc, err := pipeline.LoadInvoiceFile(p, i)
				if err != nil {
					return err
				}
				req.Invoices = append(req.Invoices, doc)
			}

			out := cmd.OutOrStdout()
			var runErr error
			for e := range a.service().Start(req) {
				switch e.Kind {
				case pipeline.EventProgress:
					if e.Total > 0 {
						fmt.Fprintf(out, "[%d/%d] %s\n", e.Done, e.Total, e.Message)
					} else {
						fmt.Fprintln(out, e.Message)
					}
				case pipeline.EventCategoryCache:
					fmt.Fprintf(out, "category index: %d nodes cached=%t (%s)\n", e.Cache.Count, e.Cache.IsCached, e.Cache.BuildTime)
				case pipeline.EventExtracted:
					found := 0
					for _, l := range e.Extracted.Items {
						if l.Found() {
							found++
						}
					}
					fmt.Fprintf(out, "linked %d of %d SKUs, invoice shipping £%.2f\n", found, len(e.Extracted.Items), e.Extracted.TotalShipping)
				case pipeline.EventSuccess:
					fmt.Fprintln(out, e.Message)
				case pipeline.EventError:
					runErr = e.Err
				}
			}
			return runErr
		},
	}
	f := cmd.Flags()
	f.StringVar(&manifest, "manifest", "", "manifest workbook (.xlsx)")
	f.StringArrayVar(&invoices, "invoice", nil, "invoice file (.pdf, .html, .txt); repeatable")
	f.StringVar(&invoiceDir, "invoice-dir", "", "directory of invoice files")
	f.StringVar(&taxonomy, "taxonomy", "", "category map workbook (.xlsx)")
	f.StringVar(&postage, "postage", "", "postage rate workbook (.xlsx)")
	f.StringVar(&date, "date", "", "listing date, YYYY-MM-DD")
	f.Float64Var(&discount, "discount", 0, "shipping discount split across invoices")
	f.BoolVar(&inbox, "inbox", false, "include pending invoices from the mail inbox")
	return cmd
}

func classifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <title>",
		Short: "Match a title against the cached category index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.service().Classify(strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tscore=%d\n", m.CategoryID, m.CategoryPath, m.Score)
			return nil
		},
	}
}

func taxonomyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "taxonomy", Short: "Manage the category index"}
	cmd.AddCommand(&cobra.Command{
		Use:   "load <file.xlsx>",
		Short: "Index a category map workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := a.service().LoadTaxonomy(blob)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d categories in %s cached=%t\n", info.Count, info.BuildTime, info.IsCached)
			return nil
		},
	})
	return cmd
}

func cacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Inspect the category index cache"}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the category index state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := a.service().CacheStatus()
			fmt.Fprintf(cmd.OutOrStdout(), "initialized=%t count=%d buildTime=%s\n", info.IsCached, info.Count, info.BuildTime)
			return nil
		},
	})
	return cmd
}

func invoiceCmd(a *app) *cobra.Command {
	var inputType string
	cmd := &cobra.Command{Use: "invoice", Short: "Invoice helpers"}
	extract := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text and fields extracted from one invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := inputType
			if kind == "" {
				kind = inputTypeFromPath(args[0])
			}
			invoices, err := pipeline.ExtractInvoiceFromInput(kind, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, inv := range invoices {
				fmt.Fprintf(out, "== %s shipping=%.2f date=%s vendor=%s\n%s\n", inv.Filename, inv.Fields.ShippingTotal, inv.Fields.InvoiceDate, inv.Fields.VendorNumber, inv.Text)
			}
			return nil
		},
	}
	extract.Flags().StringVar(&inputType, "type", "", "pdf|html|text|eml (default from extension)")
	cmd.AddCommand(extract)
	return cmd
}

func inputTypeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".html", ".htm":
		return "html"
	case ".eml":
		return "eml"
	default:
		return "text"
	}
}

func mailCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "mail", Short: "Pull supplier invoices from a mailbox"}

	var (
		provider, label string
		max             int
	)
	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch new mail into the raw store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := makeConnector(cmd.Context(), a, provider)
			if err != nil {
				return err
			}
			res, err := connectors.NewFetchService(a.db, a.cfg.RawMailDir, conn, a.logger).FetchAndStore(cmd.Context(), label, max)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mail fetch done provider=%s fetched=%d stored=%d\n", provider, res.Fetched, res.Stored)
			return nil
		},
	}
	fetch.Flags().StringVar(&provider, "provider", "imap", "gmail|imap")
	fetch.Flags().StringVar(&label, "label", "INBOX", "mailbox or label")
	fetch.Flags().IntVar(&max, "max", 50, "max messages")

	var (
		processProvider, messageID string
		batch                      int
	)
	process := &cobra.Command{
		Use:   "process",
		Short: "Extract invoices from fetched mail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			processor := pipeline.NewProcessingService(a.db, a.logger)
			if strings.TrimSpace(messageID) != "" {
				res, err := processor.ProcessByProviderMessageID(processProvider, messageID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed email id=%d invoices=%d skipped=%t\n", res.EmailID, res.Invoices, res.Skipped)
				return nil
			}
			emails, invoices, err := processor.ProcessPending(batch, processProvider)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed pending emails=%d invoices=%d\n", emails, invoices)
			return nil
		},
	}
	process.Flags().StringVar(&processProvider, "provider", "", "only this provider (gmail|imap)")
	process.Flags().StringVar(&messageID, "message-id", "", "process one message")
	process.Flags().IntVar(&batch, "batch", 20, "batch size")

	listen := &cobra.Command{
		Use:   "listen",
		Short: "Poll the mailbox until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return listener.NewService(a.db, a.cfg, a.logger).Run(ctx)
		},
	}

	cmd.AddCommand(fetch, process, listen)
	return cmd
}

func runsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := a.db.ListRuns(limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", r.CreatedAt, r.TraceID, r.Status, r.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs")
	return cmd
}

func makeConnector(ctx context.Context, a *app, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(provider) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, a.cfg)
	case "imap":
		return imapconnector.NewConnector(a.cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return blob, err
}
