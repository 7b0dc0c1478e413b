package models

import (
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
		check   func(*SearchQuery) bool
	}{
		{"empty query", &SearchQuery{Query: ""}, true, nil},
		{"whitespace query", &SearchQuery{Query: "   "}, true, nil},
		{"valid query", &SearchQuery{Query: "a dog on a beach"}, false, nil},
		{"trims query", &SearchQuery{Query: "  dog "}, false, func(q *SearchQuery) bool { return q.Query == "dog" }},
		{"caps top_k", &SearchQuery{Query: "x", TopK: 5000}, false, func(q *SearchQuery) bool { return q.TopK == MaxTopK }},
		{"negative top_k means default", &SearchQuery{Query: "x", TopK: -3}, false, func(q *SearchQuery) bool { return q.TopK == 0 }},
		{"negative window clamped", &SearchQuery{Query: "x", Window: -1}, false, func(q *SearchQuery) bool { return q.Window == 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(tt.query) {
				t.Errorf("unexpected query after Validate: %+v", tt.query)
			}
		})
	}
}
