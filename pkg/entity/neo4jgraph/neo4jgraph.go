// Package neo4jgraph projects resolved entities and their match edges
// into Neo4j. The resolver treats the projection as best-effort, so every
// write here must be idempotent: nodes and edges are MERGEd, never
// duplicated.
package neo4jgraph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/filigree-ai/go-filigree/pkg/entity"
)

// Config configures the Neo4j connection.
type Config struct {
	// Required. Bolt URI, e.g. neo4j://localhost:7687.
	URI string

	// Optional. Basic auth credentials.
	Username string
	Password string

	// Optional. Defaults to the server's default database.
	Database string
}

// Graph implements entity.Graph on a Neo4j driver.
type Graph struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ entity.Graph = (*Graph)(nil)

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Graph, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Graph{driver: driver, database: cfg.Database}, nil
}

func (g *Graph) session(ctx context.Context) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
}

// UpsertEntity merges the entity node and refreshes its identifier
// properties.
func (g *Graph) UpsertEntity(ctx context.Context, entityID string, ids entity.Identifiers) error {
	session := g.session(ctx)
	defer session.Close(ctx)

	aliases := make([]any, len(ids.Aliases))
	for i, a := range ids.Aliases {
		aliases[i] = a
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
		MERGE (e:Entity {entity_id: $entityID})
		SET e.name = $name,
		    e.lei = $lei,
		    e.cik = $cik,
		    e.cusip = $cusip,
		    e.isin = $isin,
		    e.ticker = $ticker,
		    e.aliases = $aliases,
		    e.updated_at = datetime()
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"entityID": entityID,
			"name":     ids.Name,
			"lei":      ids.LEI,
			"cik":      ids.CIK,
			"cusip":    ids.CUSIP,
			"isin":     ids.ISIN,
			"ticker":   ids.Ticker,
			"aliases":  aliases,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", entityID, err)
	}
	return nil
}

// LinkMatches merges one MATCHES edge per match, refreshing confidence
// and match type when the edge already exists.
func (g *Graph) LinkMatches(ctx context.Context, entityID string, matches []entity.Match) error {
	if len(matches) == 0 {
		return nil
	}
	session := g.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
		MATCH (a:Entity {entity_id: $entityID})
		MERGE (b:Entity {entity_id: $matchedID})
		MERGE (a)-[r:MATCHES]->(b)
		SET r.confidence = $confidence,
		    r.match_type = $matchType,
		    r.updated_at = datetime()
		`
		for _, m := range matches {
			params := map[string]any{
				"entityID":   entityID,
				"matchedID":  m.EntityID,
				"confidence": m.Confidence,
				"matchType":  string(m.Type),
			}
			if _, err := tx.Run(ctx, query, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("link matches for %s: %w", entityID, err)
	}
	return nil
}

// RelatedEntities returns entities connected to entityID by a MATCHES
// edge in either direction, strongest edge first.
func (g *Graph) RelatedEntities(ctx context.Context, entityID string) ([]entity.Reference, error) {
	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
		MATCH (a:Entity {entity_id: $entityID})-[r:MATCHES]-(b:Entity)
		RETURN b.entity_id AS entity_id, b.name AS name, r.confidence AS confidence
		ORDER BY r.confidence DESC, entity_id ASC
		`
		records, err := tx.Run(ctx, query, map[string]any{"entityID": entityID})
		if err != nil {
			return nil, err
		}

		var refs []entity.Reference
		for records.Next(ctx) {
			record := records.Record()
			ref := entity.Reference{Relationship: "matches"}
			if v, ok := record.Get("entity_id"); ok {
				if s, ok := v.(string); ok {
					ref.EntityID = s
				}
			}
			if v, ok := record.Get("name"); ok {
				if s, ok := v.(string); ok {
					ref.Name = s
				}
			}
			if v, ok := record.Get("confidence"); ok {
				if f, ok := v.(float64); ok {
					ref.Confidence = f
				}
			}
			refs = append(refs, ref)
		}
		return refs, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("related entities for %s: %w", entityID, err)
	}
	refs, _ := result.([]entity.Reference)
	return refs, nil
}

// Close closes the driver.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
