package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/samogod/blockforge/pkg/cache"
	"github.com/samogod/blockforge/pkg/config"
	"github.com/samogod/blockforge/pkg/database"
	"github.com/samogod/blockforge/pkg/domain"
	"github.com/samogod/blockforge/pkg/elastic"
	"github.com/samogod/blockforge/pkg/render"
	"github.com/samogod/blockforge/pkg/session"
	"github.com/samogod/blockforge/pkg/sources"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var DebugLog func(string, ...interface{})

var ErrNoDomains = errors.New("no domains")

// NoDomainsError is returned when a list ends up empty and the list does
// not allow empty output.
type NoDomainsError struct {
	List string
}

func (e *NoDomainsError) Error() string {
	return fmt.Sprintf("list %s: no valid domains found", e.List)
}

func (e *NoDomainsError) Unwrap() error {
	return ErrNoDomains
}

type Orchestrator struct {
	config *config.Config
	logger *logrus.Logger
	loc    *time.Location
	cache  *cache.Store
	db     *database.DB
	es     *elastic.Client
	now    func() time.Time
}

type SourceStat struct {
	Name     string
	Location string
	Duration time.Duration
	Records  int
	Accepted int
	Rejected int
	Filtered int
	Err      error
	Skipped  bool
}

type Output struct {
	Format string
	Path   string
	Count  int
}

type BuildResult struct {
	List         string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalDomains int
	Previous     int
	Domains      []string
	Outputs      []Output
	SourceStats  []SourceStat
	Tracked      *database.TrackSummary
}

// NewOrchestrator loads the configuration at configPath (searching the
// default locations when empty) and connects the optional backends.
func NewOrchestrator(configPath string, logger *logrus.Logger) (*Orchestrator, error) {
	configManager := config.NewManager(configPath)
	if err := configManager.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return New(configManager.GetConfig(), logger)
}

// New builds an orchestrator for an already validated configuration.
// Backends that fail to connect are logged and disabled.
func New(cfg *config.Config, logger *logrus.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = logrus.New()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	o := &Orchestrator{
		config: cfg,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}

	if cfg.Cache.Enabled {
		store, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			logger.Warnf("Fetch cache disabled: %v", err)
		} else {
			o.cache = store
		}
	}

	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			logger.Warnf("Database initialization failed: %v", err)
		}
		o.db = db
	}

	if cfg.Elasticsearch.Enabled {
		es, err := elastic.New(cfg.Elasticsearch)
		if err != nil {
			logger.Warnf("Elasticsearch export disabled: %v", err)
		} else {
			o.es = es
		}
	}

	return o, nil
}

func (o *Orchestrator) GetConfig() *config.Config {
	return o.config
}

func (o *Orchestrator) GetDB() *database.DB {
	return o.db
}

func (o *Orchestrator) Close() error {
	return errors.Join(o.cache.Close(), o.db.Close())
}

type sourceOutcome struct {
	stat    SourceStat
	remote  bool
	domains []string
}

// BuildList runs the whole pipeline for one list and writes every
// requested format.
func (o *Orchestrator) BuildList(ctx context.Context, l config.ListConfig) (*BuildResult, error) {
	start := o.now()
	result := &BuildResult{
		List:      l.Name,
		StartTime: start,
	}

	formats := make([]render.Format, 0, len(l.Formats))
	seen := make(map[string]bool, len(l.Formats))
	for _, name := range l.Formats {
		f, ok := render.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("list %s: unknown format %q", l.Name, name)
		}
		if seen[f.Name()] {
			continue
		}
		seen[f.Name()] = true
		formats = append(formats, f)
	}

	sess, err := session.New(o.config, o.cache, o.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	filter := domain.NewKeywordFilter(l.Keywords, l.KeywordsIgnoreCase)
	if !filter.Empty() && DebugLog != nil {
		DebugLog("list %s: keeping domains matching %v", l.Name, filter.Keywords)
	}

	outcomes := o.collect(ctx, sess, l, filter)

	// sources cut short by cancellation must never reach the renderer
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list %s: build interrupted: %w", l.Name, err)
	}

	var (
		accepted  []string
		locations []string
		failures  []error
	)
	for i := range outcomes {
		out := &outcomes[i]
		if err := out.stat.Err; err != nil {
			if !out.remote || sources.IsFatal(err) {
				return nil, fmt.Errorf("list %s: source %s: %w", l.Name, out.stat.Name, err)
			}
			if l.OnSourceFailure == config.PolicyAbort {
				return nil, fmt.Errorf("list %s: source %s: %w", l.Name, out.stat.Name, err)
			}
			o.logger.Warnf("[%s] skipping source: %v", out.stat.Name, err)
			out.stat.Skipped = true
			failures = append(failures, err)
		} else {
			accepted = append(accepted, out.domains...)
			locations = append(locations, out.stat.Location)
		}
		result.SourceStats = append(result.SourceStats, out.stat)
	}

	if len(failures) > 0 && len(failures) == len(outcomes) {
		return nil, fmt.Errorf("list %s: every source failed: %w", l.Name, errors.Join(failures...))
	}

	var previous *domain.Set
	if l.MergePrevious {
		previous, err = o.loadPrevious(l, formats)
		if err != nil {
			return nil, fmt.Errorf("list %s: failed to read previous list: %w", l.Name, err)
		}
		result.Previous = previous.Len()
	}

	set := domain.Normalize(accepted, previous)

	if set.Len() == 0 {
		if !l.AllowEmpty {
			return nil, &NoDomainsError{List: l.Name}
		}
		o.logger.Warnf("List %s has no domains, writing empty lists", l.Name)
	}

	header := render.Header{
		Title:       l.Title,
		Description: l.Description,
		Homepage:    l.Homepage,
		Expires:     l.Expires,
		Sources:     locations,
		GeneratedAt: start,
		Location:    o.loc,
	}

	for _, f := range formats {
		rendered := render.Render(set, f, header)
		path := filepath.Join(o.config.DefaultSettings.OutputDir, render.FileName(l.Name, f))
		if err := render.WriteAtomic(path, rendered.Body); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, Output{Format: f.Name(), Path: path, Count: rendered.Count})
		o.logger.Infof("Wrote %s (%d domains)", path, rendered.Count)
	}

	result.Domains = set.Sorted()
	result.TotalDomains = len(result.Domains)

	o.publish(ctx, result)

	result.EndTime = o.now()
	result.Duration = result.EndTime.Sub(start)

	return result, nil
}

// BuildAll builds lists one after another. A failed list is logged and
// does not stop the others; the returned error joins every failure.
func (o *Orchestrator) BuildAll(ctx context.Context, lists []config.ListConfig) ([]*BuildResult, error) {
	var (
		results []*BuildResult
		errs    []error
	)

	for _, l := range lists {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if DebugLog != nil {
			DebugLog("building list %s", l.Name)
		}

		result, err := o.BuildList(ctx, l)
		if err != nil {
			o.logger.Errorf("Build failed for %s: %v", l.Name, err)
			errs = append(errs, err)
			continue
		}
		results = append(results, result)
	}

	return results, errors.Join(errs...)
}

// collect fans out one task per source and waits for all of them. Each
// task writes only its own slot.
func (o *Orchestrator) collect(ctx context.Context, sess *session.Session, l config.ListConfig, filter *domain.KeywordFilter) []sourceOutcome {
	outcomes := make([]sourceOutcome, len(l.Sources))

	var g errgroup.Group
	for i, sc := range l.Sources {
		i, sc := i, sc
		g.Go(func() error {
			outcomes[i] = o.runSource(ctx, sess, sc, filter)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

func (o *Orchestrator) runSource(ctx context.Context, sess *session.Session, sc config.SourceConfig, filter *domain.KeywordFilter) sourceOutcome {
	src := sources.FromConfig(sc)
	out := sourceOutcome{
		remote: sc.IsRemote(),
		stat:   SourceStat{Name: src.Name(), Location: src.Location()},
	}
	startTime := time.Now()

	var records []domain.Record
	for r := range src.Run(ctx, sess) {
		if r.Error != nil {
			out.stat.Err = r.Error
			continue
		}
		records = append(records, r.Record())
	}
	out.stat.Records = len(records)

	if out.stat.Err != nil {
		out.stat.Duration = time.Since(startTime)
		return out
	}

	ext := domain.NewExtractor(domain.WithSelector(domain.Selector{Field: sc.Field, Match: sc.Match}))
	res := o.extract(src.Name(), records, ext, filter)

	out.domains = res.accepted
	out.stat.Accepted = len(res.accepted)
	out.stat.Rejected = res.rejected
	out.stat.Filtered = res.filtered
	out.stat.Duration = time.Since(startTime)

	o.logger.Infof("[%s] %d records, %d accepted, %d rejected, %d filtered",
		src.Name(), out.stat.Records, out.stat.Accepted, out.stat.Rejected, out.stat.Filtered)

	return out
}

type chunkResult struct {
	accepted []string
	rejected int
	filtered int
}

// extract runs the extractor, validator and keyword filter over records.
// Large inputs are split into chunks processed concurrently; chunk results
// are concatenated in chunk order.
func (o *Orchestrator) extract(name string, records []domain.Record, ext *domain.Extractor, filter *domain.KeywordFilter) chunkResult {
	size := o.config.DefaultSettings.ChunkSize
	if size <= 0 || len(records) <= size {
		return processChunk(name, records, ext, filter)
	}

	n := (len(records) + size - 1) / size
	parts := make([]chunkResult, n)

	workers := o.config.DefaultSettings.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		lo, hi := i*size, min((i+1)*size, len(records))
		g.Go(func() error {
			parts[i] = processChunk(name, records[lo:hi], ext, filter)
			return nil
		})
	}
	g.Wait()

	if DebugLog != nil {
		DebugLog("[%s] processed %d records in %d chunks", name, len(records), n)
	}

	var total chunkResult
	for _, p := range parts {
		total.accepted = append(total.accepted, p.accepted...)
		total.rejected += p.rejected
		total.filtered += p.filtered
	}
	return total
}

func processChunk(name string, records []domain.Record, ext *domain.Extractor, filter *domain.KeywordFilter) chunkResult {
	var res chunkResult
	for _, r := range records {
		token, ok := ext.Extract(r)
		if !ok {
			continue
		}

		d, err := domain.Validate(token)
		if err != nil {
			res.rejected++
			if DebugLog != nil {
				DebugLog("[%s] %v", name, err)
			}
			continue
		}

		if !filter.Keep(d) {
			res.filtered++
			continue
		}

		res.accepted = append(res.accepted, d)
	}
	return res
}

// loadPrevious re-reads every existing rendered output of the list.
func (o *Orchestrator) loadPrevious(l config.ListConfig, formats []render.Format) (*domain.Set, error) {
	previous := domain.NewSet()

	for _, f := range formats {
		path := filepath.Join(o.config.DefaultSettings.OutputDir, render.FileName(l.Name, f))
		file, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}

		set, rejected, err := domain.ParseList(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		if DebugLog != nil {
			DebugLog("recovered %d domains from %s (%d unparsable lines)", set.Len(), path, rejected)
		}
		previous.Union(set)
	}

	if previous.Len() > 0 {
		o.logger.Infof("Merging %d domains from the previous %s list", previous.Len(), l.Name)
	}

	return previous, nil
}

// publish pushes the finished list to the optional tracking backends.
// Failures there never fail the build.
func (o *Orchestrator) publish(ctx context.Context, result *BuildResult) {
	if o.db.IsEnabled() {
		summary, err := o.db.TrackDomains(result.List, result.Domains)
		if err != nil {
			o.logger.Warnf("Failed to track domains in database: %v", err)
		} else {
			result.Tracked = &summary
		}
	}

	if o.es != nil {
		n, err := o.es.IndexDomains(ctx, result.List, result.Domains, result.StartTime)
		if err != nil {
			o.logger.Warnf("Failed to export %s to elasticsearch: %v", result.List, err)
		} else if DebugLog != nil {
			DebugLog("indexed %d documents for %s", n, result.List)
		}
	}
}
