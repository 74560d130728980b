package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/config"
	"texplicit_backend/internal/domain"
	platformES "texplicit_backend/internal/platform/elasticsearch"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// ErrSearchDisabled is returned by searches when no elasticsearch cluster is configured.
var ErrSearchDisabled = common.NewAPIError(http.StatusServiceUnavailable, "SEARCH_DISABLED", common.MsgErrorSearchDisabled)

// Index keeps finished reports searchable.
type Index interface {
	Index(ctx context.Context, r *Report) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, ownerID, query string, limit, offset int) ([]SearchHit, error)
}

// indexDoc is the elasticsearch document of a report.
type indexDoc struct {
	Task       string              `json:"task"`
	Report     string              `json:"report"`
	Subtopics  []string            `json:"subtopics"`
	OwnerID    string              `json:"owner_id"`
	ReportType domain.ReportType   `json:"report_type"`
	Source     domain.ReportSource `json:"source"`
	Format     string              `json:"format"`
	URLs       []string            `json:"urls"`
	CreatedOn  time.Time           `json:"created_on"`
}

func toIndexDoc(r *Report) indexDoc {
	return indexDoc{
		Task:       r.Task,
		Report:     r.Report,
		Subtopics:  r.Subtopics,
		OwnerID:    r.OwnerHex(),
		ReportType: r.ReportType,
		Source:     r.Source,
		Format:     r.Format,
		URLs:       r.URLs,
		CreatedOn:  r.CreatedOn,
	}
}

// ElasticIndex stores reports in an elasticsearch index.
type ElasticIndex struct {
	client *platformES.ESClientWrapper
	index  string
	logger *zap.Logger
}

// NewIndex returns the elasticsearch index, or a disabled one when client is nil.
func NewIndex(client *platformES.ESClientWrapper, cfg *config.Config, logger *zap.Logger) Index {
	if client == nil {
		return disabledIndex{}
	}
	return NewElasticIndex(client, cfg, logger)
}

func NewElasticIndex(client *platformES.ESClientWrapper, cfg *config.Config, logger *zap.Logger) *ElasticIndex {
	index := cfg.ElasticsearchReportsIndex
	if index == "" {
		index = platformES.DefaultReportsIndex
	}
	return &ElasticIndex{client: client, index: index, logger: logger.Named("report_index")}
}

// EnsureIndex creates the index with the reports mapping when it is missing.
func (e *ElasticIndex) EnsureIndex(ctx context.Context) error {
	mapping, err := platformES.ReportsMapping()
	if err != nil {
		return err
	}
	return platformES.CreateIndexIfNotExists(ctx, e.client, e.index, mapping, e.logger)
}

func (e *ElasticIndex) Index(ctx context.Context, r *Report) error {
	body, err := json.Marshal(toIndexDoc(r))
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ID.Hex(), err)
	}
	res, err := esapi.IndexRequest{Index: e.index, DocumentID: r.ID.Hex(), Body: bytes.NewReader(body)}.Do(ctx, e.client.Client)
	if err != nil {
		return fmt.Errorf("index report %s: %w", r.ID.Hex(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		e.logger.Error("Failed to index report", zap.String("reportID", r.ID.Hex()), zap.String("status", res.Status()), zap.Any("error_details", platformES.ErrorBody(res)))
		return fmt.Errorf("index report %s: status %s", r.ID.Hex(), res.Status())
	}
	return nil
}

// Delete removes a report. Reports that were never indexed are not an error.
func (e *ElasticIndex) Delete(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: e.index, DocumentID: id}.Do(ctx, e.client.Client)
	if err != nil {
		return fmt.Errorf("delete report %s from index: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete report %s from index: status %s", id, res.Status())
	}
	return nil
}

// Reindex bulk-writes reports and returns how many were accepted.
func (e *ElasticIndex) Reindex(ctx context.Context, reports []*Report, refresh string) (int, error) {
	items := make([]platformES.BulkItem, 0, len(reports))
	for _, r := range reports {
		items = append(items, platformES.BulkItem{ID: r.ID.Hex(), Doc: toIndexDoc(r)})
	}
	return platformES.BulkIndex(ctx, e.client, e.index, items, refresh, e.logger)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID        string              `json:"_id"`
			Score     float64             `json:"_score"`
			Source    indexDoc            `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticIndex) Search(ctx context.Context, ownerID, query string, limit, offset int) ([]SearchHit, error) {
	body := map[string]interface{}{
		"from": offset,
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"task^2", "report", "subtopics"},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"owner_id": ownerID}},
				},
			},
		},
		"_source": []string{"task", "report_type", "created_on"},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{"report": map[string]interface{}{}, "task": map[string]interface{}{}},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	es := e.client.Client
	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(e.index),
		es.Search.WithBody(bytes.NewReader(raw)),
	)
	if err != nil {
		return nil, fmt.Errorf("search reports: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		e.logger.Error("Report search failed", zap.String("status", res.Status()), zap.Any("error_details", platformES.ErrorBody(res)))
		return nil, fmt.Errorf("search reports: status %s", res.Status())
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]SearchHit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		var highlights []string
		for _, field := range []string{"task", "report"} {
			highlights = append(highlights, h.Highlight[field]...)
		}
		for i := range highlights {
			highlights[i] = strings.TrimSpace(highlights[i])
		}
		hits = append(hits, SearchHit{
			ID:         h.ID,
			Task:       h.Source.Task,
			ReportType: h.Source.ReportType,
			Score:      h.Score,
			Highlights: highlights,
			CreatedOn:  h.Source.CreatedOn,
		})
	}
	return hits, nil
}

type disabledIndex struct{}

func (disabledIndex) Index(context.Context, *Report) error { return nil }
func (disabledIndex) Delete(context.Context, string) error { return nil }
func (disabledIndex) Search(context.Context, string, string, int, int) ([]SearchHit, error) {
	return nil, ErrSearchDisabled
}
