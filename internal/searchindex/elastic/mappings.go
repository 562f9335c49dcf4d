package elastic

// Documents are stored as {"entity": {...}, "deleted", "version", "indexedAt"}
// so tombstones share the index with live documents.
func indexDefinition(entityType string) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards": 1,
		},
		"mappings": map[string]any{
			"dynamic": false,
			"properties": map[string]any{
				"deleted":   map[string]any{"type": "boolean"},
				"version":   map[string]any{"type": "long"},
				"indexedAt": map[string]any{"type": "date"},
				"entity": map[string]any{
					"type":       "object",
					"properties": entityProperties(entityType),
				},
			},
		},
	}
}

func keyword() map[string]any   { return map[string]any{"type": "keyword"} }
func text() map[string]any      { return map[string]any{"type": "text"} }
func asYouType() map[string]any { return map[string]any{"type": "search_as_you_type"} }
func emailField() map[string]any {
	return map[string]any{
		"type":   "keyword",
		"fields": map[string]any{"text": map[string]any{"type": "text"}},
	}
}

func entityProperties(entityType string) map[string]any {
	switch entityType {
	case "property":
		return map[string]any{
			"id":          keyword(),
			"name":        asYouType(),
			"description": text(),
			"addressText": asYouType(),
			"location":    map[string]any{"type": "geo_point"},
			"price":       map[string]any{"type": "long"},
			"type":        keyword(),
			"status":      keyword(),
			"agentIds":    keyword(),
		}
	case "agent":
		return map[string]any{
			"id":               keyword(),
			"firstName":        asYouType(),
			"lastName":         asYouType(),
			"fullName":         asYouType(),
			"email":            emailField(),
			"phone":            keyword(),
			"propertyIds":      keyword(),
			"contactedLeads":   map[string]any{"type": "integer"},
			"uncontactedLeads": map[string]any{"type": "integer"},
		}
	case "lead":
		return map[string]any{
			"id":            keyword(),
			"fullName":      asYouType(),
			"email":         emailField(),
			"phone":         keyword(),
			"contactStatus": keyword(),
		}
	default:
		return map[string]any{"id": keyword()}
	}
}
