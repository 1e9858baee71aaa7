package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"opskb/internal/config"
	milvusdb "opskb/internal/database/milvus"
	"opskb/pkg/logger"
)

const (
	fieldID         = "id"
	fieldEmbedding  = "embedding"
	fieldDocumentID = "document_id"
	fieldChunkIndex = "chunk_index"
)

// MilvusStore is the networked backend over a shared Milvus deployment.
type MilvusStore struct {
	conn       *milvusdb.Client
	collection string
	dim        int
	log        *logger.Logger
}

// OpenMilvus connects to Milvus, ensures the chunk collection exists with the
// expected schema, and loads it for search. Any error here (unreachable
// server, schema drift, dimension mismatch) surfaces to the caller so Open
// can decide whether to fail over.
func OpenMilvus(ctx context.Context, cfg *config.MilvusConfig, dim int, log *logger.Logger) (*MilvusStore, error) {
	conn, err := milvusdb.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &MilvusStore{conn: conn, collection: cfg.Collection, dim: dim, log: log}
	if err := s.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) Name() string { return "milvus" }

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.conn.Client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(s.collection).
			WithDescription("document chunk embeddings").
			WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim))).
			WithField(entity.NewField().WithName(fieldDocumentID).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldChunkIndex).WithDataType(entity.FieldTypeInt64))

		if err := s.conn.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("create collection %s: %w", s.collection, err)
		}
		idx, err := entity.NewIndexIvfFlat(entity.COSINE, 128)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		if err := s.conn.Client.CreateIndex(ctx, s.collection, fieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("create index on %s: %w", fieldEmbedding, err)
		}
		s.log.WithField("collection", s.collection).Info("created milvus collection")
	} else if err := s.checkDimension(ctx); err != nil {
		return err
	}

	if err := s.conn.Client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("load collection %s: %w", s.collection, err)
	}
	return nil
}

// checkDimension guards against pointing a collection built for one embedding
// model at another. Searching across dimensionalities is silent garbage, so
// a mismatch refuses to open.
func (s *MilvusStore) checkDimension(ctx context.Context) error {
	coll, err := s.conn.Client.DescribeCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("describe collection %s: %w", s.collection, err)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != fieldEmbedding {
			continue
		}
		dimStr, ok := f.TypeParams[entity.TypeParamDim]
		if !ok {
			return fmt.Errorf("collection %s: field %s has no dimension", s.collection, fieldEmbedding)
		}
		dim, err := strconv.Atoi(dimStr)
		if err != nil {
			return fmt.Errorf("collection %s: parse dimension %q: %w", s.collection, dimStr, err)
		}
		if dim != s.dim {
			return fmt.Errorf("collection %s has dimension %d, embedding provider produces %d", s.collection, dim, s.dim)
		}
		return nil
	}
	return fmt.Errorf("collection %s has no %s field", s.collection, fieldEmbedding)
}

func (s *MilvusStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	docIDs := make([]int64, len(records))
	chunkIdx := make([]int64, len(records))
	for i, r := range records {
		if len(r.Vector) != s.dim {
			return fmt.Errorf("record %s has dimension %d, want %d", r.ID, len(r.Vector), s.dim)
		}
		ids[i] = r.ID
		vectors[i] = r.Vector
		docIDs[i] = int64(r.DocumentID)
		chunkIdx[i] = int64(r.ChunkIndex)
	}

	_, err := s.conn.Client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldEmbedding, s.dim, vectors),
		entity.NewColumnInt64(fieldDocumentID, docIDs),
		entity.NewColumnInt64(fieldChunkIndex, chunkIdx),
	)
	if err != nil {
		return fmt.Errorf("upsert %d records: %w", len(records), err)
	}
	return nil
}

func (s *MilvusStore) DeleteByDocument(ctx context.Context, documentID uint) error {
	expr := fmt.Sprintf("%s == %d", fieldDocumentID, documentID)
	if err := s.conn.Client.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("delete vectors for document %d: %w", documentID, err)
	}
	return nil
}

func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query dimension %d, want %d", len(vector), s.dim)
	}
	if topK <= 0 {
		return nil, nil
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(10)
	if err != nil {
		return nil, fmt.Errorf("build search params: %w", err)
	}
	results, err := s.conn.Client.Search(
		ctx,
		s.collection,
		nil,
		"",
		[]string{fieldDocumentID, fieldChunkIndex},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var hits []Hit
	for _, res := range results {
		parsed, err := s.parseResult(res)
		if err != nil {
			return nil, err
		}
		hits = append(hits, parsed...)
	}
	return hits, nil
}

func (s *MilvusStore) parseResult(res client.SearchResult) ([]Hit, error) {
	idCol, ok := res.IDs.(*entity.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("unexpected id column type %T", res.IDs)
	}
	docCol, err := int64Column(res.Fields.GetColumn(fieldDocumentID))
	if err != nil {
		return nil, err
	}
	idxCol, err := int64Column(res.Fields.GetColumn(fieldChunkIndex))
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		id, err := idCol.ValueByIdx(i)
		if err != nil {
			return nil, fmt.Errorf("read id at %d: %w", i, err)
		}
		hits = append(hits, Hit{
			ID:         id,
			Score:      res.Scores[i],
			DocumentID: uint(docCol.Data()[i]),
			ChunkIndex: int(idxCol.Data()[i]),
		})
	}
	return hits, nil
}

func int64Column(col entity.Column) (*entity.ColumnInt64, error) {
	if col == nil {
		return nil, fmt.Errorf("missing output field in search result")
	}
	c, ok := col.(*entity.ColumnInt64)
	if !ok {
		return nil, fmt.Errorf("unexpected column type %T for %s", col, col.Name())
	}
	return c, nil
}

func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	stats, err := s.conn.Client.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("collection statistics: %w", err)
	}
	n, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse row_count %q: %w", stats["row_count"], err)
	}
	return n, nil
}

func (s *MilvusStore) Close() error {
	return s.conn.Close()
}
