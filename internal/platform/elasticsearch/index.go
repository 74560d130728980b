package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// DefaultReportsIndex is used when ELASTICSEARCH_REPORTS_INDEX is empty.
const DefaultReportsIndex = "reports"

// ReportsMapping returns the mapping of the reports index.
func ReportsMapping() (string, error) {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"task":        map[string]interface{}{"type": "text"},
				"report":      map[string]interface{}{"type": "text"},
				"subtopics":   map[string]interface{}{"type": "text"},
				"owner_id":    map[string]interface{}{"type": "keyword"},
				"report_type": map[string]interface{}{"type": "keyword"},
				"source":      map[string]interface{}{"type": "keyword"},
				"format":      map[string]interface{}{"type": "keyword"},
				"urls":        map[string]interface{}{"type": "keyword"},
				"created_on":  map[string]interface{}{"type": "date"},
			},
		},
	}
	b, err := json.Marshal(mapping)
	if err != nil {
		return "", fmt.Errorf("error marshalling reports mapping to JSON: %w", err)
	}
	return string(b), nil
}

// CreateIndexIfNotExists creates index with mapping unless it already exists.
func CreateIndexIfNotExists(ctx context.Context, client *ESClientWrapper, index, mapping string, logger *zap.Logger) error {
	log := logger.Named("elasticsearch_index_setup")

	res, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error checking if index exists", zap.String("index_name", index), zap.Error(err))
		return fmt.Errorf("error checking if index %s exists: %w", index, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		log.Debug("Index already exists", zap.String("index_name", index))
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error checking if index %s exists: status %s", index, res.Status())
	}

	createRes, err := esapi.IndicesCreateRequest{Index: index, Body: strings.NewReader(mapping)}.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error creating index", zap.String("index_name", index), zap.Error(err))
		return fmt.Errorf("error creating index %s: %w", index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		log.Error("Failed to create index",
			zap.String("status", createRes.Status()),
			zap.Any("error_details", ErrorBody(createRes)),
			zap.String("index_name", index),
		)
		return fmt.Errorf("failed to create index %s: status %s", index, createRes.Status())
	}

	log.Info("Index created successfully", zap.String("index_name", index))
	return nil
}

// BulkItem is one document of a bulk index request.
type BulkItem struct {
	ID  string
	Doc interface{}
}

// BulkIndex writes items to index in one request and returns how many were indexed.
// refresh is passed through as the bulk refresh policy ("true", "false" or "wait_for").
func BulkIndex(ctx context.Context, client *ESClientWrapper, index string, items []BulkItem, refresh string, logger *zap.Logger) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	var body strings.Builder
	for _, it := range items {
		doc, err := json.Marshal(it.Doc)
		if err != nil {
			logger.Error("Failed to encode bulk document", zap.String("id", it.ID), zap.Error(err))
			continue
		}
		fmt.Fprintf(&body, `{"index":{"_index":%q,"_id":%q}}`+"\n", index, it.ID)
		body.Write(doc)
		body.WriteByte('\n')
	}

	res, err := esapi.BulkRequest{Body: strings.NewReader(body.String()), Refresh: refresh}.Do(ctx, client.Client)
	if err != nil {
		return 0, fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("bulk request: status %s", res.Status())
	}

	var out struct {
		Errors bool `json:"errors"`
		Items  []struct {
			Index struct {
				ID    string                 `json:"_id"`
				Error map[string]interface{} `json:"error,omitempty"`
			} `json:"index"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}
	indexed := 0
	for _, it := range out.Items {
		if it.Index.Error != nil {
			logger.Error("Failed to index document in bulk batch", zap.String("id", it.Index.ID), zap.Any("error", it.Index.Error))
			continue
		}
		indexed++
	}
	return indexed, nil
}
