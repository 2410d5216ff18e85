package indices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"maintflow/client/es"
	"maintflow/event"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

const handlerIdentifier = "audit-indexer"

var (
	AuditIndexName = "maintflow-transitions"
	IndexTimeout   = 5 * time.Second
)

// AuditDocumentID is unique per committed transition since states never repeat for an entity.
func AuditDocumentID(e *event.TransitionEvent) string {
	return e.EntityID.String() + "-" + string(e.ToState)
}

// AuditEventHandler indexes every transition event into the audit index.
func AuditEventHandler(e *event.TransitionEvent) *event.EventHandleResult {
	ctx, cancel := context.WithTimeout(context.Background(), IndexTimeout)
	defer cancel()

	id := AuditDocumentID(e)
	if err := es.IndexFunc(ctx, AuditIndexName, id, e); err != nil {
		logrus.Warnf("index transition %s failed: %v", id, err)
		return &event.EventHandleResult{Success: false, Message: err.Error(), HandlerIdentifier: handlerIdentifier}
	}
	return &event.EventHandleResult{Success: true, Message: "indexed " + id, HandlerIdentifier: handlerIdentifier}
}

// SearchTransitions returns the indexed transition events of an entity, oldest first.
func SearchTransitions(ctx context.Context, entityID types.ID) ([]event.TransitionEvent, error) {
	query := es.H{
		"query": es.H{"term": es.H{"entityId": entityID.String()}},
		"sort":  []es.H{{"timestamp": es.H{"order": "asc"}}},
		"size":  100,
	}
	r, err := es.SearchFunc(ctx, AuditIndexName, query)
	if err != nil {
		return nil, err
	}
	events := make([]event.TransitionEvent, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		e := event.TransitionEvent{}
		if err := json.Unmarshal(hit.Source, &e); err != nil {
			return nil, fmt.Errorf("decode audit document %s: %w", hit.Id, err)
		}
		events = append(events, e)
	}
	return events, nil
}
