package keyword

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/pdfchat/internal/models"
)

const maxFuzziness = 2

// chunkDoc is the Bleve document for one chunk.
type chunkDoc struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Filename   string `json:"filename"`
	Content    string `json:"content"`
}

// BleveIndex implements KeywordIndex with an in-memory Bleve index.
// Chunk IDs are "<document id>#<chunk index>".
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates an empty in-memory index. Nothing is written to disk
// because vector indexes are lost on restart as well.
func NewBleveIndex() (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so exact words match.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("filename", textFieldMapping)
	docMapping.AddFieldMappingsAt("document_id", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("chunk_index", bleve.NewNumericFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks indexes every chunk of docID in a single batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, docID, filename string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	name := normalizeFilename(filename)
	for i, ch := range chunks {
		doc := chunkDoc{
			DocumentID: docID,
			ChunkIndex: i,
			Filename:   name,
			Content:    ch.Text,
		}
		if err := batch.Index(chunkID(docID, i), doc); err != nil {
			return fmt.Errorf("failed to add chunk %d to batch: %w", i, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	return nil
}

// Search runs a match query over chunk content, optionally boosted by filename
// matches and made typo tolerant, and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []*KeywordResult{}, nil
	}
	filenameBoost := 1.0
	fuzziness := 0
	if opts != nil {
		if opts.FilenameBoost > 0 {
			filenameBoost = opts.FilenameBoost
		}
		fuzziness = min(max(opts.Fuzziness, 0), maxFuzziness)
	}

	content := bleve.NewMatchQuery(query)
	content.SetField("content")
	content.SetFuzziness(fuzziness)

	var q blevequery.Query = content
	if filenameBoost > 1.0 {
		fq := bleve.NewMatchQuery(query)
		fq.SetField("filename")
		fq.SetFuzziness(fuzziness)
		fq.SetBoost(filenameBoost)
		q = bleve.NewDisjunctionQuery(content, fq)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"content"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*KeywordResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		docID, idx, ok := parseChunkID(hit.ID)
		if !ok {
			continue
		}
		text, _ := hit.Fields["content"].(string)
		out = append(out, &KeywordResult{
			DocumentID: docID,
			ChunkIndex: idx,
			Score:      hit.Score,
			Content:    text,
		})
	}
	return out, nil
}

// Delete removes every chunk belonging to docID.
func (b *BleveIndex) Delete(ctx context.Context, docID string) error {
	total, err := b.index.DocCount()
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	if total == 0 {
		return nil
	}
	tq := bleve.NewTermQuery(docID)
	tq.SetField("document_id")
	req := bleve.NewSearchRequestOptions(tq, int(total), 0, false)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to find chunks of %s: %w", docID, err)
	}
	if len(results.Hits) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	return b.index.Batch(batch)
}

// DocCount returns the total number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// normalizeFilename replaces separators with spaces so the standard analyzer
// splits "annual_report-2023.pdf" into searchable words.
func normalizeFilename(name string) string {
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}

func chunkID(docID string, index int) string {
	return docID + "#" + strconv.Itoa(index)
}

func parseChunkID(id string) (string, int, bool) {
	i := strings.LastIndexByte(id, '#')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, false
	}
	return id[:i], n, true
}
