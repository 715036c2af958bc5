package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samogod/blockforge/pkg/config"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

const DefaultIndex = "blockforge_domains"

type Client struct {
	es    *es8.Client
	index string
}

// Document is one list entry as stored in the index.
type Document struct {
	List        string    `json:"list"`
	Domain      string    `json:"domain"`
	GeneratedAt time.Time `json:"generated_at"`
}

func New(cfg config.Elasticsearch) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("elasticsearch URL is required")
	}
	index := cfg.Index
	if strings.TrimSpace(index) == "" {
		index = DefaultIndex
	}

	es, err := es8.NewClient(es8.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info returned %s", res.Status())
	}

	return &Client{es: es, index: index}, nil
}

// IndexDomains bulk-indexes the entries of one rendered list. Document ids
// are derived from list and domain so repeated runs overwrite in place.
func (c *Client) IndexDomains(ctx context.Context, list string, domains []string, generatedAt time.Time) (int, error) {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     c.es,
		Index:      c.index,
		NumWorkers: 4,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	for _, d := range domains {
		body, err := json.Marshal(Document{List: list, Domain: d, GeneratedAt: generatedAt})
		if err != nil {
			return 0, fmt.Errorf("failed to encode %s: %w", d, err)
		}

		item := esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: list + ":" + d,
			Body:       bytes.NewReader(body),
		}
		if err := bi.Add(ctx, item); err != nil {
			return 0, fmt.Errorf("bulk add failed: %w", err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return 0, fmt.Errorf("bulk indexer close failed: %w", err)
	}

	stats := bi.Stats()
	if stats.NumFailed > 0 {
		return int(stats.NumFlushed), fmt.Errorf("%d of %d documents failed to index", stats.NumFailed, stats.NumAdded)
	}

	return int(stats.NumFlushed), nil
}
