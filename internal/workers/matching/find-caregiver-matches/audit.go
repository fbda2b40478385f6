package findcaregivermatches

import (
	"context"
	"encoding/json"
	"fmt"
)

// Auditor records completed match runs.
type Auditor interface {
	RecordRun(ctx context.Context, run MatchRun) error
}

// DocumentIndexer is satisfied by *database.ElasticsearchClient.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, id string, body []byte) error
}

// ESAuditor indexes one document per run, keyed by run id.
type ESAuditor struct {
	indexer DocumentIndexer
	index   string
}

func NewESAuditor(indexer DocumentIndexer, index string) *ESAuditor {
	return &ESAuditor{indexer: indexer, index: index}
}

func (a *ESAuditor) RecordRun(ctx context.Context, run MatchRun) error {
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode match run: %w", err)
	}
	return a.indexer.IndexDocument(ctx, a.index, run.RunID, body)
}
