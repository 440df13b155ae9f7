package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/collager/internal/models"
	"github.com/parquet-go/parquet-go"
)

// DatasetRecord is one archive item in an offline dataset snapshot.
// Snapshots are distributed as Parquet or JSONL files.
type DatasetRecord struct {
	Identifier  string `json:"identifier" parquet:"identifier"`
	Title       string `json:"title" parquet:"title"`
	Creator     string `json:"creator" parquet:"creator"`
	Date        string `json:"date" parquet:"date"`
	Description string `json:"description" parquet:"description"`
	Collection  string `json:"collection" parquet:"collection"`
	Subject     string `json:"subject" parquet:"subject"`
	Mediatype   string `json:"mediatype" parquet:"mediatype"`
}

// OfflineSearcher answers search queries from a local dataset snapshot
// instead of the live archive API. Useful for dry runs and tests where
// network access is unavailable or reproducibility matters.
type OfflineSearcher struct {
	records []DatasetRecord
}

// NewOfflineSearcher loads a dataset snapshot (.parquet or .jsonl) into memory
func NewOfflineSearcher(datasetPath string) (*OfflineSearcher, error) {
	records, err := loadDataset(datasetPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded offline dataset", "path", datasetPath, "records", len(records))
	return &OfflineSearcher{records: records}, nil
}

// SearchImages matches query keywords against the snapshot's title,
// description, and subject fields. Lucene operators are not interpreted;
// each bare term is treated as an OR alternative, mirroring the keyword
// disjunction the live backend applies.
func (o *OfflineSearcher) SearchImages(ctx context.Context, query SearchQuery) ([]models.SourceImage, error) {
	terms := extractTerms(query.Keywords)
	max := query.MaxResults
	if max <= 0 {
		max = defaultImageRows
	}

	results := make([]models.SourceImage, 0, max)
	for _, rec := range o.records {
		if rec.Identifier == "" {
			continue
		}
		if rec.Mediatype != "" && rec.Mediatype != "image" {
			continue
		}
		if query.Collection != "" && rec.Collection != query.Collection {
			continue
		}
		if !matchesAny(rec, terms) {
			continue
		}
		results = append(results, models.SourceImage{
			ExternalID:  rec.Identifier,
			Title:       rec.Title,
			Description: rec.Description,
			Metadata: map[string]string{
				models.MetaCreator:      rec.Creator,
				models.MetaYear:         rec.Date,
				models.MetaThumbnailURL: fmt.Sprintf(thumbnailURLTemplate, rec.Identifier),
				models.MetaDetailsURL:   fmt.Sprintf(detailsURLTemplate, rec.Identifier),
			},
		})
		if len(results) >= max {
			break
		}
	}
	return results, nil
}

// FindCollections lists the distinct collections in the snapshot whose
// identifier or title matches the keywords.
func (o *OfflineSearcher) FindCollections(ctx context.Context, keywords string, maxResults int) ([]Collection, error) {
	terms := extractTerms(keywords)
	if maxResults <= 0 {
		maxResults = defaultCollectionRows
	}

	seen := make(map[string]bool)
	var results []Collection
	for _, rec := range o.records {
		if rec.Collection == "" || seen[rec.Collection] {
			continue
		}
		for _, t := range terms {
			if strings.Contains(strings.ToLower(rec.Collection), t) {
				seen[rec.Collection] = true
				results = append(results, Collection{
					Identifier: rec.Collection,
					Title:      rec.Collection,
					DetailsURL: fmt.Sprintf(detailsURLTemplate, rec.Collection),
				})
				break
			}
		}
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

func matchesAny(rec DatasetRecord, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(rec.Title + " " + rec.Description + " " + rec.Subject)
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

// extractTerms lowercases the keyword string and strips Lucene operators
// and grouping so a planning-agent query still matches offline.
func extractTerms(keywords string) []string {
	cleaned := strings.NewReplacer("(", " ", ")", " ", "\"", " ").Replace(keywords)
	var terms []string
	for _, tok := range strings.Fields(cleaned) {
		switch tok {
		case "AND", "OR", "NOT":
			continue
		}
		terms = append(terms, strings.ToLower(tok))
	}
	return terms
}

// loadDataset loads snapshot records from a Parquet or JSONL file
func loadDataset(datasetPath string) ([]DatasetRecord, error) {
	ext := strings.ToLower(filepath.Ext(datasetPath))
	switch ext {
	case ".parquet":
		return loadParquet(datasetPath)
	case ".jsonl", ".json":
		return loadJSONL(datasetPath)
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s (supported: .parquet, .jsonl)", ext)
	}
}

func loadParquet(datasetPath string) ([]DatasetRecord, error) {
	file, err := os.Open(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[DatasetRecord](pf)
	defer reader.Close()

	var records []DatasetRecord
	rows := make([]DatasetRecord, 128)
	for {
		n, err := reader.Read(rows)
		records = append(records, rows[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return records, nil
}

func loadJSONL(datasetPath string) ([]DatasetRecord, error) {
	file, err := os.Open(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var records []DatasetRecord
	scanner := bufio.NewScanner(file)

	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record DatasetRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}
	return records, nil
}
