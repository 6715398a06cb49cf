package detection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sourcegraph/conc/pool"
	"github.com/veilguard/doppel/internal/database"
	"github.com/veilguard/doppel/internal/database/types"
	"github.com/veilguard/doppel/internal/detection/analyzer"
	"github.com/veilguard/doppel/internal/detection/graph"
	"github.com/veilguard/doppel/internal/detection/report"
	"github.com/veilguard/doppel/internal/setup/config"
	"go.uber.org/zap"
)

// Phase identifies one stage of a scan for progress reporting.
type Phase string

// Scan phases in execution order.
const (
	PhaseFetch   Phase = "fetching members"
	PhaseSample  Phase = "sampling activity"
	PhaseLoad    Phase = "loading stored snapshot"
	PhasePersist Phase = "storing snapshot"
	PhaseAnalyse Phase = "running analysers"
	PhaseFuse    Phase = "building evidence graph"
	PhaseScore   Phase = "scoring groups"
	PhaseReport  Phase = "assembling report"
)

// ProgressFunc receives phase transitions during a scan.
type ProgressFunc func(phase Phase)

// analysisType marks report groups produced by the full scan pipeline.
const analysisType = "comprehensive"

// ScanOptions tunes one scan invocation.
type ScanOptions struct {
	// Threshold overrides the configured confidence cut-off; nil keeps
	// the default. Zero reports every scored group. Values outside 0–100
	// are rejected.
	Threshold *int
	// BypassCache forces every analyser to run fresh.
	BypassCache bool
	// Detailed asks for per-member summaries in the rendered report.
	Detailed bool
	// Progress, when set, receives phase transitions.
	Progress ProgressFunc
}

// memberStore persists and reloads member snapshots. *models.MemberModel
// satisfies it.
type memberStore interface {
	ReplaceGuildMembers(ctx context.Context, guildID uint64, members []*types.Member, timings []*types.MessageTiming) error
	GetGuildMembers(ctx context.Context, guildID uint64) ([]*types.Member, error)
	GetGuildTimings(ctx context.Context, guildID uint64) (map[uint64][]time.Time, error)
}

// analysisStore persists and lists candidate groups. *models.AnalysisModel
// satisfies it.
type analysisStore interface {
	RecordGroup(ctx context.Context, result *types.AnalysisResult) error
	RecentGroups(ctx context.Context, guildID uint64, within time.Duration) ([]*types.AnalysisResult, error)
}

// patternCache stores serialised analyser output. *models.CacheModel
// satisfies it.
type patternCache interface {
	Get(ctx context.Context, guildID uint64, patternType string) ([]byte, bool, error)
	Put(ctx context.Context, guildID uint64, patternType string, payload []byte, ttl time.Duration) error
}

// Scanner orchestrates a full guild scan: fetch, sample, persist, analyse,
// fuse, score and report.
type Scanner struct {
	members  memberStore
	analysis analysisStore
	cache    patternCache
	lock     *ScanLock
	fetcher  *Fetcher
	sampler  *Sampler
	cfg      *config.Detection
	logger   *zap.Logger

	// cacheHook observes analyser cache lookups, used by tests and debug
	// logging. Never nil.
	cacheHook func(tag string, hit bool)
}

// NewScanner wires the scan pipeline together.
func NewScanner(
	db *database.Repository, lock *ScanLock, fetcher *Fetcher, sampler *Sampler,
	cfg *config.Detection, logger *zap.Logger,
) *Scanner {
	return newScanner(db.Member(), db.Analysis(), db.Cache(), lock, fetcher, sampler, cfg, logger)
}

func newScanner(
	members memberStore, analysis analysisStore, cache patternCache,
	lock *ScanLock, fetcher *Fetcher, sampler *Sampler,
	cfg *config.Detection, logger *zap.Logger,
) *Scanner {
	return &Scanner{
		members:   members,
		analysis:  analysis,
		cache:     cache,
		lock:      lock,
		fetcher:   fetcher,
		sampler:   sampler,
		cfg:       cfg,
		logger:    logger.Named("scanner"),
		cacheHook: func(string, bool) {},
	}
}

// SetCacheHook installs an observer for analyser cache lookups.
func (s *Scanner) SetCacheHook(hook func(tag string, hit bool)) {
	if hook != nil {
		s.cacheHook = hook
	}
}

// Scan runs the full pipeline for one guild and returns its report. Only one
// scan per guild runs at a time; concurrent callers get ErrScanBusy.
func (s *Scanner) Scan(ctx context.Context, guildID uint64, opts ScanOptions) (*report.Report, error) {
	threshold, err := s.resolveThreshold(opts.Threshold)
	if err != nil {
		return nil, err
	}

	release, err := s.lock.Acquire(ctx, guildID)
	if err != nil {
		return nil, err
	}
	defer release()

	progress := opts.Progress
	if progress == nil {
		progress = func(Phase) {}
	}

	started := time.Now().UTC()

	progress(PhaseFetch)

	roster, err := s.fetcher.Fetch(ctx, guildID, started)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress(PhaseSample)

	sample, err := s.sampler.Sample(ctx, guildID, roster.Members, started)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress(PhasePersist)

	if err := s.members.ReplaceGuildMembers(ctx, guildID, roster.Members, sample.Timings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	snapshot := buildSnapshot(guildID, roster.Members, sample.TimingsByMember, started)

	stats := report.Stats{
		MembersScanned: len(roster.Members),
		BotsSkipped:    roster.BotsSkipped,
		MembersSampled: sample.MembersSampled,
	}

	return s.analyseSnapshot(ctx, snapshot, stats, sample.Degraded, threshold, opts, progress, started)
}

// Rescan re-runs the analysis pipeline over the guild's last stored snapshot
// without touching Discord. The roster and timings come straight from the
// database, so a moderator can re-score with a different threshold after the
// capture.
func (s *Scanner) Rescan(ctx context.Context, guildID uint64, opts ScanOptions) (*report.Report, error) {
	threshold, err := s.resolveThreshold(opts.Threshold)
	if err != nil {
		return nil, err
	}

	release, err := s.lock.Acquire(ctx, guildID)
	if err != nil {
		return nil, err
	}
	defer release()

	progress := opts.Progress
	if progress == nil {
		progress = func(Phase) {}
	}

	started := time.Now().UTC()

	progress(PhaseLoad)

	members, err := s.members.GetGuildMembers(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	if len(members) == 0 {
		return nil, fmt.Errorf("%w: guild %d", ErrNoStoredSnapshot, guildID)
	}

	timings, err := s.members.GetGuildTimings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	snapshot := buildSnapshot(guildID, members, timings, started)

	bots := 0
	for _, member := range members {
		if member.IsBot {
			bots++
		}
	}

	stats := report.Stats{
		MembersScanned: len(members),
		BotsSkipped:    bots,
		MembersSampled: len(timings),
	}

	return s.analyseSnapshot(ctx, snapshot, stats, false, threshold, opts, progress, started)
}

// analyseSnapshot runs the back half of the pipeline, analyse through report,
// over a frozen snapshot. Both the live scan and the stored-snapshot rescan
// funnel through here.
func (s *Scanner) analyseSnapshot(
	ctx context.Context, snapshot *analyzer.Snapshot, stats report.Stats,
	degraded bool, threshold int, opts ScanOptions, progress ProgressFunc, started time.Time,
) (*report.Report, error) {
	progress(PhaseAnalyse)

	edges, err := s.runAnalyzers(ctx, snapshot, opts.BypassCache)
	if err != nil {
		return nil, err
	}

	progress(PhaseFuse)

	g := graph.New()
	g.AddEdges(edges)
	components := g.Components()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress(PhaseScore)

	byID := make(map[uint64]*types.Member, len(snapshot.Members))
	for _, member := range snapshot.Members {
		byID[member.ID] = member
	}

	stats.Elapsed = time.Since(started)

	progress(PhaseReport)

	rep := report.NewBuilder(threshold, s.cfg.ReportLimit).
		Build(snapshot.GuildID, components, byID, stats, degraded, started)
	rep.Detailed = opts.Detailed

	s.storeGroups(ctx, rep)

	s.logger.Info("Guild scan completed",
		zap.Uint64("guildID", snapshot.GuildID),
		zap.Int("membersScanned", stats.MembersScanned),
		zap.Int("groupsFlagged", rep.TotalGroups),
		zap.Bool("degraded", rep.Degraded),
		zap.Duration("elapsed", stats.Elapsed))

	return rep, nil
}

// RecentReports lists stored candidate groups for a guild within the window.
func (s *Scanner) RecentReports(
	ctx context.Context, guildID uint64, within time.Duration,
) ([]*types.AnalysisResult, error) {
	return s.analysis.RecentGroups(ctx, guildID, within)
}

// resolveThreshold validates the caller's threshold, falling back to the
// configured default when unset.
func (s *Scanner) resolveThreshold(threshold *int) (int, error) {
	if threshold == nil {
		return s.cfg.ConfidenceThresholdDefault, nil
	}

	if *threshold < 0 || *threshold > 100 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidThreshold, *threshold)
	}

	return *threshold, nil
}

// buildSnapshot freezes the fetched roster into analyser input, ordered by
// account creation time.
func buildSnapshot(
	guildID uint64, members []*types.Member, timings map[uint64][]time.Time, now time.Time,
) *analyzer.Snapshot {
	ordered := make([]*types.Member, len(members))
	copy(ordered, members)

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}

		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	return &analyzer.Snapshot{
		GuildID: guildID,
		Members: ordered,
		Timings: timings,
		Now:     now,
	}
}

// runAnalyzers executes every analyser concurrently with a read-through
// cache per analyser tag. Cache failures degrade to a fresh run.
func (s *Scanner) runAnalyzers(
	ctx context.Context, snapshot *analyzer.Snapshot, bypassCache bool,
) ([]analyzer.Edge, error) {
	analyzers := analyzer.All()
	results := make([][]analyzer.Edge, len(analyzers))

	p := pool.New().WithContext(ctx)

	for i, a := range analyzers {
		p.Go(func(ctx context.Context) error {
			results[i] = s.runAnalyzer(ctx, snapshot, a, bypassCache)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}

	var edges []analyzer.Edge
	for _, result := range results {
		edges = append(edges, result...)
	}

	return edges, nil
}

// runAnalyzer returns cached output when fresh, running the analyser and
// refilling the cache otherwise.
func (s *Scanner) runAnalyzer(
	ctx context.Context, snapshot *analyzer.Snapshot, a analyzer.Analyzer, bypassCache bool,
) []analyzer.Edge {
	tag := a.Name()

	if !bypassCache {
		if cached, ok := s.loadCached(ctx, snapshot.GuildID, tag); ok {
			s.cacheHook(tag, true)
			return cached
		}
	}

	s.cacheHook(tag, false)

	edges := s.analyze(snapshot, a)
	s.storeCached(ctx, snapshot.GuildID, tag, edges)

	return edges
}

// analyze runs a single analyser, containing panics so that one misbehaving
// analyser degrades to zero edges instead of aborting the scan.
func (s *Scanner) analyze(snapshot *analyzer.Snapshot, a analyzer.Analyzer) (edges []analyzer.Edge) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Analyser panicked, treating as no edges",
				zap.String("analyzer", a.Name()),
				zap.Uint64("guild_id", snapshot.GuildID),
				zap.Any("panic", r))

			edges = nil
		}
	}()

	return a.Analyze(snapshot)
}

func (s *Scanner) loadCached(ctx context.Context, guildID uint64, tag string) ([]analyzer.Edge, bool) {
	payload, ok, err := s.cache.Get(ctx, guildID, tag)
	if err != nil {
		s.logger.Warn("Analyser cache read failed, running fresh",
			zap.String("analyzer", tag),
			zap.Error(err))

		return nil, false
	}

	if !ok {
		return nil, false
	}

	var edges []analyzer.Edge
	if err := sonic.Unmarshal(payload, &edges); err != nil {
		s.logger.Warn("Discarding undecodable analyser cache entry",
			zap.String("analyzer", tag),
			zap.Error(err))

		return nil, false
	}

	return edges, true
}

func (s *Scanner) storeCached(ctx context.Context, guildID uint64, tag string, edges []analyzer.Edge) {
	payload, err := sonic.Marshal(edges)
	if err != nil {
		s.logger.Warn("Failed to encode analyser output for caching",
			zap.String("analyzer", tag),
			zap.Error(err))

		return
	}

	ttl := time.Duration(s.cfg.CacheTTLHours) * time.Hour
	if err := s.cache.Put(ctx, guildID, tag, payload, ttl); err != nil {
		s.logger.Warn("Failed to store analyser cache entry",
			zap.String("analyzer", tag),
			zap.Error(err))
	}
}

// storeGroups persists the report's groups. Storage failures degrade the
// report rather than failing the scan, since the caller already has it.
func (s *Scanner) storeGroups(ctx context.Context, rep *report.Report) {
	for _, group := range rep.Groups {
		result := &types.AnalysisResult{
			GuildID:      rep.GuildID,
			MemberIDs:    group.MemberIDs,
			Confidence:   group.Confidence,
			Evidence:     group.Evidence,
			AnalysisType: analysisType,
			CreatedAt:    rep.GeneratedAt,
		}

		if err := s.analysis.RecordGroup(ctx, result); err != nil {
			rep.Degraded = true
			s.logger.Warn("Failed to store report group",
				zap.Uint64("guildID", rep.GuildID),
				zap.Error(err))
		}
	}
}
