// Package repositories provides the Neo4j persistence layer for the
// knowledge graph.  Vertices are nodes labeled by collection with the typed
// entity serialized into a `data` property; relationships carry the
// deterministic storage key so re-applying a bundle never duplicates them.
package repositories

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/RxGraph-Intelligence/internal/domain/extraction"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/graph"
	"github.com/turtacn/RxGraph-Intelligence/internal/domain/profile"
	driver "github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/neo4j"
	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxGraph-Intelligence/pkg/errors"
)

// vertexLabels is the closed set of node labels.  Collection names are
// interpolated into Cypher, so anything outside this set is rejected.
var vertexLabels = map[string]struct{}{
	graph.CollectionSubstances:    {},
	graph.CollectionDrugs:         {},
	graph.CollectionManufacturers: {},
	graph.CollectionRoutes:        {},
	graph.CollectionDosageForms:   {},
	graph.CollectionPharmClasses:  {},
	graph.CollectionReactions:     {},
	graph.CollectionInteractions:  {},
	graph.CollectionDrugLabels:    {},
	graph.CollectionApplications:  {},
	graph.CollectionProducts:      {},
	graph.CollectionProfiles:      {},
	graph.CollectionExtractions:   {},
}

// relationshipTypes maps edge collections to their Neo4j relationship types.
var relationshipTypes = map[string]string{
	graph.EdgeDrugHasSubstance:             "DRUG_HAS_SUBSTANCE",
	graph.EdgeDrugHasRoute:                 "DRUG_HAS_ROUTE",
	graph.EdgeDrugHasForm:                  "DRUG_HAS_FORM",
	graph.EdgeDrugInClass:                  "DRUG_IN_CLASS",
	graph.EdgeDrugByManufacturer:           "DRUG_BY_MANUFACTURER",
	graph.EdgeApplicationForDrug:           "APPLICATION_FOR_DRUG",
	graph.EdgeProductOfDrug:                "PRODUCT_OF_DRUG",
	graph.EdgeDrugCausesReaction:           "DRUG_CAUSES_REACTION",
	graph.EdgeDrugInteractsWith:            "DRUG_INTERACTS_WITH",
	graph.EdgeDrugHasLabel:                 "DRUG_HAS_LABEL",
	graph.EdgeDrugAliasOf:                  "DRUG_ALIAS_OF",
	graph.EdgeProfileHasExtraction:         "PROFILE_HAS_EXTRACTION",
	graph.EdgeProfileInterestedInSubstance: "PROFILE_INTERESTED_IN_SUBSTANCE",
}

// emptyVertex returns a zero value of the typed vertex for a collection, the
// decode target for the node's data property.
func emptyVertex(collection string) graph.Vertex {
	switch collection {
	case graph.CollectionSubstances:
		return &graph.Substance{}
	case graph.CollectionDrugs:
		return &graph.Drug{}
	case graph.CollectionManufacturers:
		return &graph.Manufacturer{}
	case graph.CollectionRoutes:
		return &graph.Route{}
	case graph.CollectionDosageForms:
		return &graph.DosageForm{}
	case graph.CollectionPharmClasses:
		return &graph.PharmClass{}
	case graph.CollectionReactions:
		return &graph.Reaction{}
	case graph.CollectionInteractions:
		return &graph.Interaction{}
	case graph.CollectionDrugLabels:
		return &graph.DrugLabel{}
	case graph.CollectionApplications:
		return &graph.Application{}
	case graph.CollectionProducts:
		return &graph.Product{}
	case graph.CollectionProfiles:
		return &profile.Profile{}
	case graph.CollectionExtractions:
		return &extraction.Record{}
	default:
		return nil
	}
}

// GraphStore is the Neo4j implementation of graph.Store.  One Apply runs in
// one write transaction, which gives per-key serialization through Neo4j's
// node locks and makes the whole bundle atomic.
type GraphStore struct {
	driver driver.DriverInterface
	logger logging.Logger
}

// NewGraphStore constructs a GraphStore.
func NewGraphStore(d driver.DriverInterface, log logging.Logger) *GraphStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &GraphStore{driver: d, logger: log.Named("neo4j_graph")}
}

var _ graph.Store = (*GraphStore)(nil)

// Apply commits the bundle.  Vertices are merged following the platform
// rules (non-zero overwrites, zero never erases, lists union, enrichment
// monotonic); edges are deduplicated by storage key; dangling edge endpoints
// get stub nodes.
func (s *GraphStore) Apply(ctx context.Context, bundle *graph.Bundle) (graph.ApplyStats, error) {
	if bundle == nil {
		return graph.ApplyStats{}, nil
	}

	res, err := s.driver.ExecuteWrite(ctx, func(tx driver.Transaction) (interface{}, error) {
		var stats graph.ApplyStats
		for _, collection := range bundle.Collections() {
			for _, v := range bundle.Vertices(collection) {
				if err := s.applyVertex(ctx, tx, v, &stats); err != nil {
					return nil, err
				}
			}
		}
		for _, e := range bundle.Edges() {
			if err := s.applyEdge(ctx, tx, bundle, e, &stats); err != nil {
				return nil, err
			}
		}
		return stats, nil
	})
	if err != nil {
		return graph.ApplyStats{}, errors.Wrap(err, errors.ErrCodeGraphApplyFailed, "failed to apply bundle")
	}

	stats := res.(graph.ApplyStats)
	s.logger.Debug("bundle applied",
		logging.String("search_term", bundle.SearchTerm),
		logging.Int("vertices_created", stats.VerticesCreated),
		logging.Int("vertices_updated", stats.VerticesUpdated),
		logging.Int("edges_created", stats.EdgesCreated),
		logging.Int("stubs_created", stats.StubsCreated))
	return stats, nil
}

func (s *GraphStore) applyVertex(ctx context.Context, tx driver.Transaction, v graph.Vertex, stats *graph.ApplyStats) error {
	label := v.Collection()
	if _, ok := vertexLabels[label]; !ok {
		return errors.New(errors.ErrCodeCollectionUnknown, "unknown vertex collection").
			WithDetail("collection=" + label)
	}

	result, err := tx.Run(ctx,
		"MERGE (n:"+label+" {key: $key}) RETURN n.data AS data, n.stub AS stub",
		map[string]any{"key": v.Key()})
	if err != nil {
		return err
	}
	storedData, wasStub, err := readNodeState(ctx, result)
	if err != nil {
		return err
	}

	switch {
	case storedData == "":
		// Fresh node (MERGE created it or a concurrent stub left no data).
		if err := s.writeVertexState(ctx, tx, label, v.Key(), v); err != nil {
			return err
		}
		stats.VerticesCreated++
	case wasStub:
		// First real observation replaces the stub outright.
		if err := s.writeVertexState(ctx, tx, label, v.Key(), v); err != nil {
			return err
		}
		stats.VerticesUpdated++
	default:
		existing := emptyVertex(label)
		if err := json.Unmarshal([]byte(storedData), existing); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode stored vertex").
				WithDetail("collection=" + label + " key=" + v.Key())
		}
		existing.Merge(v)
		merged, err := json.Marshal(existing)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode merged vertex")
		}
		if string(merged) == storedData {
			return nil
		}
		if err := s.writeVertexState(ctx, tx, label, v.Key(), existing); err != nil {
			return err
		}
		stats.VerticesUpdated++
	}
	return nil
}

// writeVertexState serializes the vertex into the node.  Substances also get
// name and is_enriched as first-class properties so lookups never decode
// every node.
func (s *GraphStore) writeVertexState(ctx context.Context, tx driver.Transaction, label, key string, v graph.Vertex) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode vertex")
	}
	params := map[string]any{"key": key, "data": string(data)}

	cypher := "MATCH (n:" + label + " {key: $key}) SET n.data = $data, n.stub = false"
	if sub, ok := v.(*graph.Substance); ok {
		cypher += ", n.name = $name, n.is_enriched = $enriched"
		params["name"] = sub.Name
		params["enriched"] = sub.IsEnriched
	}
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

func (s *GraphStore) applyEdge(ctx context.Context, tx driver.Transaction, bundle *graph.Bundle, e graph.Edge, stats *graph.ApplyStats) error {
	relType, ok := relationshipTypes[e.EdgeCollection]
	if !ok {
		return errors.New(errors.ErrCodeCollectionUnknown, "unknown edge collection").
			WithDetail("collection=" + e.EdgeCollection)
	}
	for _, endpoint := range []struct{ coll, key string }{
		{e.FromCollection, e.FromKey},
		{e.ToCollection, e.ToKey},
	} {
		if bundle.Vertex(endpoint.coll, endpoint.key) != nil {
			continue // applied above
		}
		if err := s.ensureEndpoint(ctx, tx, endpoint.coll, endpoint.key, stats); err != nil {
			return err
		}
	}

	props := "{}"
	if len(e.Properties) > 0 {
		data, err := json.Marshal(e.Properties)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode edge properties")
		}
		props = string(data)
	}

	result, err := tx.Run(ctx,
		"MATCH (a:"+e.FromCollection+" {key: $from}), (b:"+e.ToCollection+" {key: $to}) "+
			"MERGE (a)-[r:"+relType+" {storage_key: $sk}]->(b) "+
			"ON CREATE SET r.props = $props",
		map[string]any{
			"from":  e.FromKey,
			"to":    e.ToKey,
			"sk":    e.StorageKey(),
			"props": props,
		})
	if err != nil {
		return err
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return err
	}
	if summary != nil {
		stats.EdgesCreated += summary.Counters().RelationshipsCreated()
	}
	return nil
}

// ensureEndpoint creates a stub node for an edge endpoint the bundle did not
// carry.  Substance stubs keep a decodable typed payload so GetSubstance
// still finds them.
func (s *GraphStore) ensureEndpoint(ctx context.Context, tx driver.Transaction, collection, key string, stats *graph.ApplyStats) error {
	if _, ok := vertexLabels[collection]; !ok {
		return errors.New(errors.ErrCodeCollectionUnknown, "unknown vertex collection").
			WithDetail("collection=" + collection)
	}
	result, err := tx.Run(ctx,
		"MERGE (n:"+collection+" {key: $key}) RETURN n.data AS data, n.stub AS stub",
		map[string]any{"key": key})
	if err != nil {
		return err
	}
	storedData, _, err := readNodeState(ctx, result)
	if err != nil {
		return err
	}
	if storedData != "" {
		return nil
	}

	params := map[string]any{"key": key, "data": ""}
	cypher := "MATCH (n:" + collection + " {key: $key}) SET n.stub = true, n.data = $data"
	if collection == graph.CollectionSubstances {
		data, err := json.Marshal(&graph.Substance{VertexKey: key})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode substance stub")
		}
		params["data"] = string(data)
		cypher += ", n.name = $name, n.is_enriched = false"
		params["name"] = key
	}
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	if _, err := res.Consume(ctx); err != nil {
		return err
	}
	stats.StubsCreated++
	return nil
}

// readNodeState consumes a single-row result of (data, stub).
func readNodeState(ctx context.Context, result driver.Result) (data string, stub bool, err error) {
	if !result.Next(ctx) {
		return "", false, result.Err()
	}
	rec := result.Record()
	if rec == nil {
		return "", false, nil
	}
	if v, ok := rec.Get("data"); ok {
		if s, ok := v.(string); ok {
			data = s
		}
	}
	if v, ok := rec.Get("stub"); ok {
		if b, ok := v.(bool); ok {
			stub = b
		}
	}
	return data, stub, nil
}

// GetSubstance loads one substance by its normalized key.
func (s *GraphStore) GetSubstance(ctx context.Context, key string) (*graph.Substance, error) {
	res, err := s.driver.ExecuteRead(ctx, func(tx driver.Transaction) (interface{}, error) {
		result, err := tx.Run(ctx,
			"MATCH (n:"+graph.CollectionSubstances+" {key: $key}) RETURN n.data AS data",
			map[string]any{"key": key})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return decodeSubstanceRecord(result.Record())
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New(errors.ErrCodeSubstanceNotFound, "substance not found").
			WithDetail("key=" + key)
	}
	return res.(*graph.Substance), nil
}

// FindEnrichedByNames returns the enriched substances among the given names,
// keyed by normalized key.
func (s *GraphStore) FindEnrichedByNames(ctx context.Context, names []string) (map[string]*graph.Substance, error) {
	if len(names) == 0 {
		return nil, nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = graph.NormalizeKey(name)
	}

	res, err := s.driver.ExecuteRead(ctx, func(tx driver.Transaction) (interface{}, error) {
		result, err := tx.Run(ctx,
			"MATCH (n:"+graph.CollectionSubstances+") WHERE n.key IN $keys AND n.is_enriched "+
				"RETURN n.data AS data",
			map[string]any{"keys": keys})
		if err != nil {
			return nil, err
		}
		out := make(map[string]*graph.Substance)
		for result.Next(ctx) {
			sub, err := decodeSubstanceRecord(result.Record())
			if err != nil {
				return nil, err
			}
			if sub != nil {
				out[sub.Key()] = sub
			}
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]*graph.Substance), nil
}

// SearchSubstances matches query case-insensitively against substance names
// and keys.  A non-positive limit means no limit.
func (s *GraphStore) SearchSubstances(ctx context.Context, query string, limit int) ([]*graph.Substance, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 1000
	}

	res, err := s.driver.ExecuteRead(ctx, func(tx driver.Transaction) (interface{}, error) {
		result, err := tx.Run(ctx,
			"MATCH (n:"+graph.CollectionSubstances+") "+
				"WHERE toLower(n.name) CONTAINS $q OR n.key CONTAINS $q "+
				"RETURN n.data AS data ORDER BY n.key LIMIT $limit",
			map[string]any{"q": q, "limit": limit})
		if err != nil {
			return nil, err
		}
		var out []*graph.Substance
		for result.Next(ctx) {
			sub, err := decodeSubstanceRecord(result.Record())
			if err != nil {
				return nil, err
			}
			if sub != nil {
				out = append(out, sub)
			}
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]*graph.Substance), nil
}

// CollectionCounts returns vertex counts per label plus the relationship
// total under "edges".
func (s *GraphStore) CollectionCounts(ctx context.Context) (map[string]int, error) {
	res, err := s.driver.ExecuteRead(ctx, func(tx driver.Transaction) (interface{}, error) {
		counts := make(map[string]int)

		result, err := tx.Run(ctx,
			"MATCH (n) UNWIND labels(n) AS label RETURN label, count(*) AS c", nil)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			rec := result.Record()
			label, _ := rec.Get("label")
			c, _ := rec.Get("c")
			if name, ok := label.(string); ok {
				counts[name] = int(asInt64(c))
			}
		}
		if err := result.Err(); err != nil {
			return nil, err
		}

		result, err = tx.Run(ctx, "MATCH ()-[r]->() RETURN count(r) AS c", nil)
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			c, _ := result.Record().Get("c")
			counts["edges"] = int(asInt64(c))
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]int), nil
}

func decodeSubstanceRecord(rec *neo4j.Record) (*graph.Substance, error) {
	if rec == nil {
		return nil, nil
	}
	v, ok := rec.Get("data")
	if !ok {
		return nil, nil
	}
	data, ok := v.(string)
	if !ok || data == "" {
		return nil, nil
	}
	var sub graph.Substance
	if err := json.Unmarshal([]byte(data), &sub); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode substance")
	}
	return &sub, nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
