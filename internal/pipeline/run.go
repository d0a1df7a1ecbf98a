package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"lotlister/internal"
	"lotlister/internal/catalog"
	"lotlister/internal/config"
	"lotlister/internal/storage"
)

const (
	postageSourceFile     = "file"
	postageSourceManifest = "manifest"
	postageSourceDefault  = "default"
)

// RunRequest is everything one listing run consumes. Workbooks are raw
// .xlsx bytes; invoices are already text-extracted.
type RunRequest struct {
	Manifest         []byte
	Invoices         []internal.InvoiceDocument
	Taxonomy         []byte
	Postage          []byte
	Date             string
	ShippingDiscount float64
	// IncludeInbox appends pending invoices from the mail inbox.
	IncludeInbox bool
}

type Result struct {
	TraceID           string
	ListingFile       string
	UploadFile        string
	Items             int
	CategoriesMatched int
	PostageSource     string
	PostageTiers      int
	Summary           string
	Rows              []internal.AllocatedRow
}

// Service runs the listing pipeline and owns the classifier index, which
// outlives individual runs. Runs are serialized.
type Service struct {
	db      *storage.DB
	cfg     config.Config
	profile config.Profile
	catalog *catalog.SyncService
	logger  *slog.Logger

	runMu sync.Mutex
}

// NewService builds a Service. db may be nil, which disables the taxonomy
// cache persistence, the inbox and the run log.
func NewService(db *storage.DB, cfg config.Config, profile config.Profile, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProgressLinkEvery <= 0 {
		cfg.ProgressLinkEvery = 20
	}
	if cfg.ProgressRowEvery <= 0 {
		cfg.ProgressRowEvery = 50
	}
	s := &Service{
		db:      db,
		cfg:     cfg,
		profile: profile,
		catalog: catalog.NewSyncService(db, catalog.NewIndex(), logger),
		logger:  logger,
	}
	if _, err := s.catalog.Restore(); err != nil {
		logger.Warn("catalog.restore.failed", "err", err)
	}
	return s
}

// Classify matches a single title against the current index.
func (s *Service) Classify(title string) internal.CategoryMatch {
	return s.catalog.Index().Match(title)
}

// CacheStatus reports the classifier index without changing it.
func (s *Service) CacheStatus() CacheInfo {
	st := s.catalog.Index().Status()
	return CacheInfo{Count: st.Count, BuildTime: st.BuildTime, IsCached: st.Initialized}
}

// LoadTaxonomy indexes the category sheet of a taxonomy workbook.
func (s *Service) LoadTaxonomy(content []byte) (CacheInfo, error) {
	wb, err := OpenWorkbook(content)
	if err != nil {
		return CacheInfo{}, fmt.Errorf("open taxonomy: %w", err)
	}
	defer wb.Close()
	return s.loadTaxonomySheet(wb, wb.TaxonomySheet())
}

func (s *Service) loadTaxonomySheet(wb *Workbook, sheet string) (CacheInfo, error) {
	rows, err := wb.KeyedRows(sheet)
	if err != nil {
		return CacheInfo{}, fmt.Errorf("read taxonomy sheet %q: %w", sheet, err)
	}
	res, err := s.catalog.Load(rows)
	info := CacheInfo{
		Count:       res.Status.Count,
		BuildTime:   res.Status.BuildTime,
		IsCached:    res.Cached,
		IsNewUpload: !res.Cached,
	}
	return info, err
}

// Start runs req in the background. Events arrive in order on the returned
// channel, which is closed after the single success or error event.
func (s *Service) Start(req RunRequest) <-chan Event {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		_, _ = s.Run(req, func(e Event) { ch <- e })
	}()
	return ch
}

// Run executes one listing run synchronously, reporting to sink. The run
// ends with exactly one success or error event. Artifacts are written only
// when both were built.
func (s *Service) Run(req RunRequest, sink Sink) (Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	traceID := uuid.NewString()
	log := s.logger.With("trace_id", traceID)

	res, counts, err := s.run(req, sink, log)
	res.TraceID = traceID
	timings := map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}
	if err != nil {
		log.Error("pipeline.run.failed", "err", err)
		s.recordRun(traceID, "error", err.Error(), timings, counts)
		sink.emit(Event{Kind: EventError, Message: err.Error(), Err: err})
		return res, err
	}

	log.Info("pipeline.run.ok", "items", res.Items, "listing", res.ListingFile, "upload", res.UploadFile)
	s.recordRun(traceID, "success", res.Summary, timings, counts)
	sink.emit(Event{Kind: EventSuccess, Message: res.Summary, Result: &res})
	return res, nil
}

func (s *Service) run(req RunRequest, sink Sink, log *slog.Logger) (Result, map[string]int, error) {
	counts := map[string]int{}

	if len(req.Manifest) == 0 {
		return Result{}, counts, ErrMissingManifest
	}
	datePrefix, err := FormatDateToSKU(req.Date)
	if err != nil {
		return Result{}, counts, err
	}
	invoices, inboxIDs, err := s.collectInvoices(req)
	if err != nil {
		return Result{}, counts, err
	}
	if len(invoices) == 0 {
		return Result{}, counts, ErrMissingInvoices
	}
	invoices = ApplyShippingDiscount(invoices, req.ShippingDiscount)
	counts["invoices"] = len(invoices)

	sink.progress("Loading manifest workbook...")
	wb, err := OpenWorkbook(req.Manifest)
	if err != nil {
		return Result{}, counts, fmt.Errorf("open manifest: %w", err)
	}
	defer wb.Close()
	sheetRows, err := wb.FirstSheetRows()
	if err != nil {
		return Result{}, counts, fmt.Errorf("read manifest: %w", err)
	}
	manifest, err := ParseManifest(sheetRows)
	if err != nil {
		return Result{}, counts, err
	}
	counts["rows"] = len(manifest.Rows)

	s.prepareTaxonomy(req, wb, sink, log)
	tiers, postageSource := s.preparePostage(req, wb, sink, log)

	sink.progress("Searching invoices for SKU prices...")
	linker := NewInvoiceLinker(invoices)
	for i, r := range manifest.Rows {
		linker.Link(r.SKU)
		if (i+1)%s.cfg.ProgressLinkEvery == 0 {
			sink.count("Searching invoices for SKU prices", i+1, len(manifest.Rows))
		}
	}
	links := linker.Links()
	found := 0
	for _, l := range links {
		if l.Found() {
			found++
		}
	}
	counts["linked"] = found
	counts["notFound"] = len(links) - found
	sink.emit(Event{Kind: EventExtracted, Extracted: &Extracted{Items: links, TotalShipping: TotalShipping(invoices)}})

	sink.progress("Allocating costs and shipping...")
	engine := &AllocationEngine{
		DatePrefix:    datePrefix,
		GroupBy:       s.cfg.CostGroupKey,
		Tiers:         tiers,
		Profile:       s.profile,
		Classifier:    s.catalog.Index(),
		ProgressEvery: s.cfg.ProgressRowEvery,
		Progress: func(done, total int) {
			sink.count("Building listing rows", done, total)
		},
	}
	rows := engine.Allocate(manifest.Rows, linker)

	matched := 0
	for _, a := range rows {
		if a.Category.CategoryID != internal.DefaultCategoryID {
			matched++
		}
	}
	counts["categorised"] = matched

	sink.progress("Generating listing workbook...")
	listing, err := BuildListingWorkbook(rows, manifest.Header, datePrefix, tiers, s.profile)
	if err != nil {
		return Result{}, counts, fmt.Errorf("build listing workbook: %w", err)
	}
	sink.progress("Generating upload CSV...")
	upload := BuildUploadCSV(rows, s.profile)

	listingPath := filepath.Join(s.cfg.OutputDir, ListingFilename(datePrefix))
	uploadPath := filepath.Join(s.cfg.OutputDir, UploadFilename(datePrefix))
	if err := writeArtifacts(map[string][]byte{listingPath: listing, uploadPath: upload}); err != nil {
		return Result{}, counts, err
	}

	if len(inboxIDs) > 0 && s.db != nil {
		if err := s.db.UpdateInvoiceStatus(inboxIDs, "used"); err != nil {
			log.Warn("inbox.mark_used.failed", "err", err)
		}
	}

	res := Result{
		ListingFile:       listingPath,
		UploadFile:        uploadPath,
		Items:             len(rows),
		CategoriesMatched: matched,
		PostageSource:     postageSource,
		PostageTiers:      len(tiers),
		Rows:              rows,
	}
	res.Summary = s.summary(res, datePrefix)
	return res, counts, nil
}

func (s *Service) collectInvoices(req RunRequest) ([]internal.InvoiceDocument, []int, error) {
	invoices := make([]internal.InvoiceDocument, 0, len(req.Invoices))
	invoices = append(invoices, req.Invoices...)

	var inboxIDs []int
	if req.IncludeInbox && s.db != nil {
		pending, err := s.db.ListInvoicesByStatus("pending", 1000)
		if err != nil {
			return nil, nil, fmt.Errorf("list inbox invoices: %w", err)
		}
		for _, inv := range pending {
			invoices = append(invoices, internal.InvoiceDocument{
				Filename:      inv.Filename,
				Text:          inv.Text,
				ShippingTotal: inv.Shipping,
				InvoiceDate:   inv.InvoiceDate,
				VendorNumber:  inv.VendorNumber,
			})
			inboxIDs = append(inboxIDs, inv.ID)
		}
	}

	for i := range invoices {
		invoices[i].Index = i
	}
	return invoices, inboxIDs, nil
}

// prepareTaxonomy builds or reuses the classifier index. Failures only
// leave the default category in effect.
func (s *Service) prepareTaxonomy(req RunRequest, manifest *Workbook, sink Sink, log *slog.Logger) {
	var (
		info CacheInfo
		err  error
	)
	switch {
	case len(req.Taxonomy) > 0:
		sink.progress("Loading & indexing category map...")
		info, err = s.LoadTaxonomy(req.Taxonomy)
	case !s.catalog.Index().Status().Initialized:
		sheet := manifest.FindSheet("category", "map")
		if sheet == "" {
			return
		}
		sink.progress("Indexing category sheet from manifest...")
		info, err = s.loadTaxonomySheet(manifest, sheet)
	default:
		st := s.catalog.Index().Status()
		info = CacheInfo{Count: st.Count, BuildTime: st.BuildTime, IsCached: true}
	}

	if err != nil {
		log.Warn("catalog.load.failed", "err", err)
		if errors.Is(err, catalog.ErrEmptyTaxonomy) {
			sink.progress("Category map has no usable rows; using default category 47155")
		} else {
			sink.progress(fmt.Sprintf("Category map could not be read (%v); using default category 47155", err))
		}
	}
	sink.emit(Event{Kind: EventCategoryCache, Cache: &info})
}

// preparePostage returns the active tier table and where it came from.
func (s *Service) preparePostage(req RunRequest, manifest *Workbook, sink Sink, log *slog.Logger) ([]internal.PostageTier, string) {
	var (
		rows   [][]string
		err    error
		source string
	)
	switch {
	case len(req.Postage) > 0:
		sink.progress("Loading postage rates...")
		source = postageSourceFile
		var wb *Workbook
		if wb, err = OpenWorkbook(req.Postage); err == nil {
			rows, err = wb.FirstSheetRows()
			_ = wb.Close()
		}
	default:
		sheet := manifest.FindSheet("postage")
		if sheet == "" {
			return DefaultPostageTiers(), postageSourceDefault
		}
		source = postageSourceManifest
		rows, err = manifest.Rows(sheet)
	}

	if err != nil {
		log.Warn("postage.load.failed", "err", err)
		sink.progress("Postage rates could not be read; using default postage rates")
		return DefaultPostageTiers(), postageSourceDefault
	}
	tiers := ParsePostageTiers(rows)
	if len(tiers) == 0 {
		sink.progress("Postage table has no usable tiers; using default postage rates")
		return DefaultPostageTiers(), postageSourceDefault
	}
	return tiers, source
}

func (s *Service) summary(res Result, datePrefix string) string {
	msg := fmt.Sprintf("Wrote %s and %s with %d items.", ListingFilename(datePrefix), UploadFilename(datePrefix), res.Items)
	if st := s.catalog.Index().Status(); st.Initialized && st.Count > 0 {
		msg += fmt.Sprintf(" Categories matched from %d options (%d items categorised).", st.Count, res.CategoriesMatched)
	} else {
		msg += " Using default category 47155."
	}
	switch res.PostageSource {
	case postageSourceFile:
		msg += fmt.Sprintf(" Postage rates from uploaded table (%d tiers).", res.PostageTiers)
	case postageSourceManifest:
		msg += fmt.Sprintf(" Postage rates from manifest sheet (%d tiers).", res.PostageTiers)
	default:
		msg += " Using default postage rates."
	}
	return msg
}

func (s *Service) recordRun(traceID, status, message string, timings map[string]float64, counts map[string]int) {
	if s.db == nil {
		return
	}
	if err := s.db.InsertRun(traceID, status, message, timings, counts); err != nil {
		s.logger.Warn("runs.insert.failed", "trace_id", traceID, "err", err)
	}
}

// writeArtifacts writes every file to a temporary name first and renames
// them only once all writes succeeded.
func writeArtifacts(files map[string][]byte) error {
	var tmps []string
	cleanup := func() {
		for _, t := range tmps {
			_ = os.Remove(t)
		}
	}
	for path, blob := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			cleanup()
			return err
		}
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, blob, 0o644); err != nil {
			cleanup()
			return err
		}
		tmps = append(tmps, tmp)
	}
	for path := range files {
		if err := os.Rename(path+".tmp", path); err != nil {
			cleanup()
			return err
		}
	}
	return nil
}
