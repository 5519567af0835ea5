package citation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/siherrmann/retriever/model"
)

// MostCitedSources aggregates how often each source URL was cited across
// all persisted records, most cited first. Records without a usable
// citation payload are skipped, never failing the aggregation.
func (t *Tracker) MostCitedSources(limit int) ([]*model.SourceCount, error) {
	records, err := t.records.SelectAllCitationRecords(0)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]*model.SourceCount)
	order := make([]string, 0)
	for _, record := range records {
		if record == nil || len(record.Citations) == 0 {
			continue
		}
		for _, citation := range record.Citations {
			if citation.SourceURL == "" {
				continue
			}
			count, ok := counts[citation.SourceURL]
			if !ok {
				count = &model.SourceCount{SourceURL: citation.SourceURL, Title: citation.Title}
				counts[citation.SourceURL] = count
				order = append(order, citation.SourceURL)
			}
			count.Count++
			if count.Title == "" {
				count.Title = citation.Title
			}
		}
	}

	aggregated := make([]*model.SourceCount, 0, len(order))
	for _, sourceURL := range order {
		aggregated = append(aggregated, counts[sourceURL])
	}
	sort.SliceStable(aggregated, func(i, j int) bool {
		return aggregated[i].Count > aggregated[j].Count
	})

	if limit > 0 && len(aggregated) > limit {
		aggregated = aggregated[:limit]
	}
	return aggregated, nil
}

// ConversationStats summarizes the citations of one conversation. Records
// without a usable citation payload are skipped.
func (t *Tracker) ConversationStats(conversationID uuid.UUID) (*model.ConversationCitationStats, error) {
	records, err := t.records.SelectCitationRecordsByConversation(conversationID)
	if err != nil {
		return nil, err
	}

	stats := &model.ConversationCitationStats{ConversationID: conversationID}
	uniqueSources := make(map[string]struct{})
	for _, record := range records {
		if record == nil || len(record.Citations) == 0 {
			continue
		}
		stats.Messages++
		for _, citation := range record.Citations {
			stats.Citations++
			if citation.SourceURL != "" {
				uniqueSources[citation.SourceURL] = struct{}{}
			}
		}
	}
	stats.UniqueSources = len(uniqueSources)

	return stats, nil
}
