package core

import "encoding/json"

// TimelineEvent is the single server→client frame on the realtime socket.
// Resource carries the affected record when the server includes it; its
// concrete shape depends on the document type.
type TimelineEvent struct {
	Timeline  string          `json:"timeline"`
	Item      TimelineItem    `json:"item"`
	Resource  json.RawMessage `json:"resource,omitempty"`
	Document  string          `json:"document,omitempty"`
	Signature string          `json:"signature,omitempty"`

	parsedDoc *DocumentBase[json.RawMessage]
}

// ParsedDocument decodes the embedded document once and memoizes it.
// Events without a document yield a zero base and no error.
func (e *TimelineEvent) ParsedDocument() (DocumentBase[json.RawMessage], error) {
	if e.parsedDoc != nil {
		return *e.parsedDoc, nil
	}
	if e.Document == "" {
		return DocumentBase[json.RawMessage]{}, nil
	}
	doc, err := ParseDocument(e.Document)
	if err != nil {
		return DocumentBase[json.RawMessage]{}, err
	}
	e.parsedDoc = &doc
	return doc, nil
}
