package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/filigree-ai/go-filigree/pkg/filigree"
	"github.com/filigree-ai/go-filigree/pkg/logger"
)

// Scoring weights and floors for pairwise matching. Exact identifier
// matches carry full weight, tickers slightly less (symbols get reused),
// and alias agreements are downweighted because aliases are unvetted.
const (
	exactIdentifierScore = 1.0
	tickerScore          = 0.9
	nameSimilarityFloor  = 0.8
	aliasSimilarityFloor = 0.85
	aliasWeight          = 0.8
	matchConfidenceFloor = 0.3
	highConfidenceFloor  = 0.8

	defaultFuzzyThreshold   = 0.8
	defaultPartialThreshold = 0.6
)

// Graph projects entities and match edges into a graph database. The
// resolver treats projection as best-effort: failures are logged, never
// returned.
type Graph interface {
	// UpsertEntity creates or updates the node for an entity.
	UpsertEntity(ctx context.Context, entityID string, ids Identifiers) error

	// LinkMatches writes one MATCHES edge per match.
	LinkMatches(ctx context.Context, entityID string, matches []Match) error

	// RelatedEntities returns entities connected to entityID.
	RelatedEntities(ctx context.Context, entityID string) ([]Reference, error)

	Close(ctx context.Context) error
}

// Config configures a Resolver.
type Config struct {
	// Optional. Persists alias rows and match edges. Without a store the
	// resolver is purely in-memory and Relationships is unavailable.
	Store Store

	// Optional. Projects entities and matches into a graph database.
	Graph Graph

	// Optional. Minimum similarity for a fuzzy name lookup to resolve.
	// Defaults to 0.8.
	FuzzyThreshold float64

	// Optional. Confidence assigned to substring lookups. Defaults to 0.6.
	PartialThreshold float64

	// Optional. Defaults to a no-op logger.
	Logger *logger.Logger
}

// Resolver registers entities and resolves identifiers against them.
type Resolver struct {
	store            Store
	graph            Graph
	fuzzyThreshold   float64
	partialThreshold float64
	log              *logger.Logger

	mu          sync.RWMutex
	registry    map[string]Identifiers
	matchCache  map[string][]Match
	lookupCache map[string]Profile
}

// New creates a Resolver from the config.
func New(cfg Config) (*Resolver, error) {
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = defaultFuzzyThreshold
	}
	if cfg.PartialThreshold == 0 {
		cfg.PartialThreshold = defaultPartialThreshold
	}
	if cfg.FuzzyThreshold < 0 || cfg.FuzzyThreshold > 1 {
		return nil, fmt.Errorf("fuzzy threshold must be in (0, 1], got %g", cfg.FuzzyThreshold)
	}
	if cfg.PartialThreshold < 0 || cfg.PartialThreshold > 1 {
		return nil, fmt.Errorf("partial threshold must be in (0, 1], got %g", cfg.PartialThreshold)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Resolver{
		store:            cfg.Store,
		graph:            cfg.Graph,
		fuzzyThreshold:   cfg.FuzzyThreshold,
		partialThreshold: cfg.PartialThreshold,
		log:              cfg.Logger,
		registry:         make(map[string]Identifiers),
		matchCache:       make(map[string][]Match),
		lookupCache:      make(map[string]Profile),
	}, nil
}

// Register adds or replaces an entity in the registry. Identifier fields
// are cleaned the same way lookups clean their input, so exact matching
// compares like against like. With a store configured, one alias row is
// written per alias and per populated identifier field.
func (r *Resolver) Register(ctx context.Context, entityID string, ids Identifiers) error {
	if strings.TrimSpace(entityID) == "" {
		return fmt.Errorf("entity id is required")
	}
	clean := cleanIdentifiers(ids)

	r.mu.Lock()
	r.registry[entityID] = clean
	// Any cached matches scored against the old identifiers are stale.
	delete(r.matchCache, entityID)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveAliases(ctx, aliasRows(entityID, clean)); err != nil {
			return filigree.WrapErrorf(err, "save aliases for %s", entityID)
		}
	}
	if r.graph != nil {
		if err := r.graph.UpsertEntity(ctx, entityID, clean); err != nil {
			r.log.Warn(ctx, "graph upsert failed",
				logger.Attr("entity_id", entityID),
				logger.Attr("error", err.Error()))
		}
	}
	r.log.Debug(ctx, "entity registered",
		logger.Attr("entity_id", entityID),
		logger.Attr("name", clean.Name))
	return nil
}

// Registered returns the cleaned identifiers stored for an entity.
func (r *Resolver) Registered(entityID string) (Identifiers, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids, ok := r.registry[entityID]
	return ids, ok
}

// FindMatches scores an entity against candidates and returns everything
// above the confidence floor, highest confidence first. An empty candidate
// list scores against every other registered entity. Unregistered
// candidates are skipped. Results are cached and, with a store or graph
// configured, persisted best-effort.
func (r *Resolver) FindMatches(ctx context.Context, entityID string, candidateIDs []string) ([]Match, error) {
	type candidate struct {
		id  string
		ids Identifiers
	}

	r.mu.RLock()
	source, ok := r.registry[entityID]
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", filigree.ErrEntityNotFound, entityID)
	}
	if len(candidateIDs) == 0 {
		candidateIDs = make([]string, 0, len(r.registry))
		for id := range r.registry {
			candidateIDs = append(candidateIDs, id)
		}
		sort.Strings(candidateIDs)
	}
	candidates := make([]candidate, 0, len(candidateIDs))
	var unknown []string
	for _, id := range candidateIDs {
		if id == entityID {
			continue
		}
		ids, ok := r.registry[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		candidates = append(candidates, candidate{id: id, ids: ids})
	}
	r.mu.RUnlock()

	for _, id := range unknown {
		r.log.Warn(ctx, "match candidate not registered", logger.Attr("entity_id", id))
	}

	var matches []Match
	for _, cand := range candidates {
		confidence, fields, err := scoreCandidate(source, cand.ids)
		if err != nil {
			r.log.Warn(ctx, "candidate scoring failed",
				logger.Attr("entity_id", cand.id),
				logger.Attr("error", err.Error()))
			continue
		}
		if len(fields) == 0 || confidence <= matchConfidenceFloor {
			continue
		}
		matches = append(matches, Match{
			EntityID:   cand.id,
			Confidence: confidence,
			Type:       matchTypeFor(confidence),
			Fields:     fields,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].EntityID < matches[j].EntityID
	})

	r.mu.Lock()
	r.matchCache[entityID] = append([]Match(nil), matches...)
	r.mu.Unlock()

	if len(matches) > 0 {
		if r.store != nil {
			if err := r.store.SaveMatches(ctx, matchRecords(entityID, matches)); err != nil {
				r.log.Warn(ctx, "saving match edges failed",
					logger.Attr("entity_id", entityID),
					logger.Attr("error", err.Error()))
			}
		}
		if r.graph != nil {
			if err := r.graph.LinkMatches(ctx, entityID, matches); err != nil {
				r.log.Warn(ctx, "graph link failed",
					logger.Attr("entity_id", entityID),
					logger.Attr("error", err.Error()))
			}
		}
	}

	r.log.Debug(ctx, "match scoring complete",
		logger.Attr("entity_id", entityID),
		logger.Attr("matches", len(matches)))
	return matches, nil
}

// CachedMatches returns the result of the last FindMatches call for an
// entity without rescoring.
func (r *Resolver) CachedMatches(entityID string) ([]Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches, ok := r.matchCache[entityID]
	if !ok {
		return nil, false
	}
	return append([]Match(nil), matches...), true
}

// Lookup resolves a bare identifier string to a registered entity.
// KindAuto detects the kind from the identifier's shape. An exact field
// match resolves with full confidence; name lookups fall back to fuzzy
// similarity and, together with ticker lookups, to substring containment.
// Hits are cached under the cleaned identifier; misses return
// filigree.ErrEntityNotFound.
func (r *Resolver) Lookup(ctx context.Context, identifier string, kind IdentifierKind) (Profile, error) {
	if strings.TrimSpace(identifier) == "" {
		return Profile{}, fmt.Errorf("identifier is required")
	}
	if kind == "" || kind == KindAuto {
		kind = DetectIdentifierKind(identifier)
	}
	cleaned := CleanIdentifier(identifier, kind)
	cacheKey := string(kind) + ":" + cleaned

	r.mu.RLock()
	cached, ok := r.lookupCache[cacheKey]
	r.mu.RUnlock()
	if ok {
		r.log.Debug(ctx, "lookup served from cache", logger.Attr("key", cacheKey))
		return cached, nil
	}

	profile, found := r.search(ctx, cleaned, kind)
	if !found {
		return Profile{}, fmt.Errorf("%w: %s", filigree.ErrEntityNotFound, identifier)
	}

	r.mu.Lock()
	r.lookupCache[cacheKey] = profile
	r.mu.Unlock()

	r.log.Debug(ctx, "entity resolved",
		logger.Attr("entity_id", profile.EntityID),
		logger.Attr("match", string(profile.Match)),
		logger.Attr("confidence", profile.Confidence))
	return profile, nil
}

// search runs the exact, fuzzy and partial passes over the registry.
// Entities are visited in sorted id order so ties resolve the same way
// every call.
func (r *Resolver) search(ctx context.Context, cleaned string, kind IdentifierKind) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entityIDs := make([]string, 0, len(r.registry))
	for id := range r.registry {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	for _, id := range entityIDs {
		v := identifierField(r.registry[id], kind)
		if v != "" && strings.EqualFold(v, cleaned) {
			return r.profileLocked(id, 1.0, MatchExact), true
		}
	}

	// Fuzzy matching compares the raw lowercased strings rather than
	// normalized names: the caller's input has no suffix conventions to
	// strip.
	if kind == KindName {
		bestID, bestScore := "", 0.0
		for _, id := range entityIDs {
			name := r.registry[id].Name
			if name == "" {
				continue
			}
			sim, err := rawSimilarity(cleaned, name)
			if err != nil {
				r.log.Warn(ctx, "similarity failed",
					logger.Attr("entity_id", id),
					logger.Attr("error", err.Error()))
				continue
			}
			if sim > bestScore && sim >= r.fuzzyThreshold {
				bestID, bestScore = id, sim
			}
		}
		if bestID != "" {
			return r.profileLocked(bestID, bestScore, MatchFuzzy), true
		}
	}

	if kind == KindName || kind == KindTicker {
		upper := strings.ToUpper(cleaned)
		for _, id := range entityIDs {
			ids := r.registry[id]
			field := ids.Name
			if kind == KindTicker {
				field = ids.Ticker
			}
			if field != "" && strings.Contains(strings.ToUpper(field), upper) {
				return r.profileLocked(id, r.partialThreshold, MatchPartial), true
			}
		}
	}

	return Profile{}, false
}

// profileLocked builds a Profile for a registered entity. Callers hold at
// least a read lock.
func (r *Resolver) profileLocked(entityID string, confidence float64, match MatchType) Profile {
	ids := r.registry[entityID]
	return Profile{
		EntityID:    entityID,
		Name:        ids.Name,
		Type:        classifyEntity(ids.Name),
		Identifiers: ids,
		Confidence:  confidence,
		Match:       match,
		ResolvedAt:  time.Now().UTC(),
	}
}

// RelationshipReport summarizes everything persisted about one entity.
type RelationshipReport struct {
	EntityID       string        `json:"entity_id"`
	Matches        []MatchRecord `json:"matches"`
	Aliases        []AliasRecord `json:"aliases"`
	TotalMatches   int           `json:"total_matches"`
	HighConfidence int           `json:"high_confidence_matches"`
}

// Relationships loads the persisted match edges and alias rows for an
// entity. Matches at or above 0.8 confidence count as high confidence.
func (r *Resolver) Relationships(ctx context.Context, entityID string) (*RelationshipReport, error) {
	if r.store == nil {
		return nil, fmt.Errorf("no store configured")
	}
	matches, err := r.store.Matches(ctx, entityID)
	if err != nil {
		return nil, filigree.WrapErrorf(err, "load matches for %s", entityID)
	}
	aliases, err := r.store.Aliases(ctx, entityID)
	if err != nil {
		return nil, filigree.WrapErrorf(err, "load aliases for %s", entityID)
	}
	report := &RelationshipReport{
		EntityID:     entityID,
		Matches:      matches,
		Aliases:      aliases,
		TotalMatches: len(matches),
	}
	for _, m := range matches {
		if m.Confidence >= highConfidenceFloor {
			report.HighConfidence++
		}
	}
	return report, nil
}

// Related returns entities related to entityID. With a graph configured
// the projection answers; otherwise the references supplied at
// registration do.
func (r *Resolver) Related(ctx context.Context, entityID string) ([]Reference, error) {
	if r.graph != nil {
		return r.graph.RelatedEntities(ctx, entityID)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids, ok := r.registry[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", filigree.ErrEntityNotFound, entityID)
	}
	return append([]Reference(nil), ids.Related...), nil
}

// ClearCache drops all cached lookups and match results.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchCache = make(map[string][]Match)
	r.lookupCache = make(map[string]Profile)
}

// Close releases the store and graph connections.
func (r *Resolver) Close(ctx context.Context) error {
	var errs []error
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.graph != nil {
		if err := r.graph.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// scoreCandidate scores two identifier bundles. Exact LEI, CIK and CUSIP
// agreement scores 1.0 per field, ticker agreement 0.9, a name similarity
// above the floor contributes the similarity itself, and each alias pair
// above its floor contributes a downweighted similarity. The confidence is
// the mean of all contributions; no contribution means no match.
func scoreCandidate(source, cand Identifiers) (float64, []string, error) {
	var scores []float64
	var fields []string

	if source.LEI != "" && source.LEI == cand.LEI {
		scores = append(scores, exactIdentifierScore)
		fields = append(fields, "lei")
	}
	if source.CIK != "" && source.CIK == cand.CIK {
		scores = append(scores, exactIdentifierScore)
		fields = append(fields, "cik")
	}
	if source.CUSIP != "" && source.CUSIP == cand.CUSIP {
		scores = append(scores, exactIdentifierScore)
		fields = append(fields, "cusip")
	}
	if source.Ticker != "" && cand.Ticker != "" && strings.EqualFold(source.Ticker, cand.Ticker) {
		scores = append(scores, tickerScore)
		fields = append(fields, "ticker")
	}
	if source.Name != "" && cand.Name != "" {
		sim, err := nameSimilarity(source.Name, cand.Name)
		if err != nil {
			return 0, nil, err
		}
		if sim > nameSimilarityFloor {
			scores = append(scores, sim)
			fields = append(fields, "name")
		}
	}
	for _, sa := range source.Aliases {
		for _, ca := range cand.Aliases {
			sim, err := nameSimilarity(sa, ca)
			if err != nil {
				return 0, nil, err
			}
			if sim > aliasSimilarityFloor {
				scores = append(scores, sim*aliasWeight)
				fields = append(fields, "alias")
			}
		}
	}

	if len(scores) == 0 {
		return 0, nil, nil
	}
	var total float64
	for _, s := range scores {
		total += s
	}
	return total / float64(len(scores)), fields, nil
}

// cleanIdentifiers normalizes every populated identifier field the way
// lookups clean their input. Blank fields stay empty rather than being
// padded or cased.
func cleanIdentifiers(ids Identifiers) Identifiers {
	out := ids.normalized()
	out.LEI = cleanField(out.LEI, KindLEI)
	out.CIK = cleanField(out.CIK, KindCIK)
	out.CUSIP = cleanField(out.CUSIP, KindCUSIP)
	out.ISIN = cleanField(out.ISIN, KindISIN)
	out.Ticker = cleanField(out.Ticker, KindTicker)
	out.Name = cleanField(out.Name, KindName)
	return out
}

func cleanField(value string, kind IdentifierKind) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return CleanIdentifier(value, kind)
}

// identifierField returns the primary field matching an identifier kind.
func identifierField(ids Identifiers, kind IdentifierKind) string {
	switch kind {
	case KindLEI:
		return ids.LEI
	case KindCIK:
		return ids.CIK
	case KindCUSIP:
		return ids.CUSIP
	case KindISIN:
		return ids.ISIN
	case KindTicker:
		return ids.Ticker
	case KindName:
		return ids.Name
	default:
		return ""
	}
}

// aliasRows flattens an entity's identifiers into alias rows: manual
// aliases first, then each populated primary field under its own type.
func aliasRows(entityID string, ids Identifiers) []AliasRecord {
	now := time.Now().UTC()
	var rows []AliasRecord
	for _, alias := range ids.Aliases {
		rows = append(rows, AliasRecord{
			EntityID:  entityID,
			Alias:     alias,
			AliasType: "name_alias",
			Source:    "manual",
			CreatedAt: now,
		})
	}
	primary := []struct {
		value string
		kind  string
	}{
		{ids.LEI, "lei"},
		{ids.CIK, "cik"},
		{ids.CUSIP, "cusip"},
		{ids.ISIN, "isin"},
		{ids.Ticker, "ticker"},
		{ids.Name, "name"},
	}
	for _, p := range primary {
		if p.value == "" {
			continue
		}
		rows = append(rows, AliasRecord{
			EntityID:  entityID,
			Alias:     p.value,
			AliasType: p.kind,
			Source:    "primary",
			CreatedAt: now,
		})
	}
	return rows
}

// matchRecords converts scored matches into persistable edges.
func matchRecords(entityID string, matches []Match) []MatchRecord {
	now := time.Now().UTC()
	records := make([]MatchRecord, len(matches))
	for i, m := range matches {
		records[i] = MatchRecord{
			EntityID:        entityID,
			MatchedEntityID: m.EntityID,
			Confidence:      m.Confidence,
			MatchType:       m.Type,
			Fields:          append([]string(nil), m.Fields...),
			MatchedAt:       now,
		}
	}
	return records
}
