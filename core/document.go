package core

import (
	"encoding/json"
	"time"
)

// Document types carried in the "type" field of a signed document.
const (
	DocTypeMessage      = "message"
	DocTypeAssociation  = "association"
	DocTypeProfile      = "profile"
	DocTypeTimeline     = "timeline"
	DocTypeTimelineItem = "timelineItem"
	DocTypeSubscription = "subscription"
	DocTypeSubscribe    = "subscribe"
	DocTypeUnsubscribe  = "unsubscribe"
	DocTypeAffiliation  = "affiliation"
	DocTypeTombstone    = "tombstone"
	DocTypeAck          = "ack"
	DocTypeUnack        = "unack"
	DocTypeEnact        = "enact"
	DocTypeRevoke       = "revoke"
	DocTypeDelete       = "delete"
)

// DocumentBase is the common shape of every signed document. Body holds the
// type-specific payload.
type DocumentBase[T any] struct {
	ID           string          `json:"id,omitempty"`
	Signer       string          `json:"signer"`
	Type         string          `json:"type"`
	Schema       string          `json:"schema,omitempty"`
	KeyID        string          `json:"keyID,omitempty"`
	Body         T               `json:"body,omitempty"`
	Meta         json.RawMessage `json:"meta,omitempty"`
	SemanticID   string          `json:"semanticID,omitempty"`
	Policy       string          `json:"policy,omitempty"`
	PolicyParams string          `json:"policyParams,omitempty"`
	SignedAt     time.Time       `json:"signedAt"`
}

// MessageDocument carries a message body and the timelines it posts to.
type MessageDocument[T any] struct {
	DocumentBase[T]
	Timelines []string `json:"timelines"`
}

// AssociationDocument points at a target resource with an optional variant.
type AssociationDocument[T any] struct {
	DocumentBase[T]
	Target    string   `json:"target"`
	Variant   string   `json:"variant,omitempty"`
	Timelines []string `json:"timelines,omitempty"`
}

// TimelineDocument declares a timeline and its indexability.
type TimelineDocument[T any] struct {
	DocumentBase[T]
	Indexable   bool `json:"indexable"`
	DomainOwned bool `json:"domainOwned,omitempty"`
}

// SubscriptionDocument declares a subscription set.
type SubscriptionDocument[T any] struct {
	DocumentBase[T]
	Indexable   bool `json:"indexable"`
	DomainOwned bool `json:"domainOwned,omitempty"`
}

// SubscribeDocument adds a timeline to a subscription.
type SubscribeDocument struct {
	DocumentBase[struct{}]
	Target       string `json:"target"`
	Subscription string `json:"subscription"`
}

// UnsubscribeDocument removes a timeline from a subscription.
type UnsubscribeDocument struct {
	DocumentBase[struct{}]
	Target       string `json:"target"`
	Subscription string `json:"subscription"`
}

// AffiliationDocument binds an entity to a home domain.
type AffiliationDocument struct {
	DocumentBase[struct{}]
	Domain string `json:"domain"`
}

// TombstoneDocument marks an entity as retired.
type TombstoneDocument struct {
	DocumentBase[struct{}]
	Reason string `json:"reason,omitempty"`
}

// AckDocument acknowledges another entity.
type AckDocument struct {
	DocumentBase[struct{}]
	From string `json:"from"`
	To   string `json:"to"`
}

// EnactDocument activates a sub-key under a root key.
type EnactDocument struct {
	DocumentBase[struct{}]
	Target string `json:"target"`
	Root   string `json:"root"`
	Parent string `json:"parent"`
}

// RevokeDocument deactivates a sub-key.
type RevokeDocument struct {
	DocumentBase[struct{}]
	Target string `json:"target"`
}

// DeleteDocument removes a resource by id.
type DeleteDocument struct {
	DocumentBase[struct{}]
	Target string `json:"target"`
}

// Signable is satisfied by any document embedding [DocumentBase]; the commit
// pipeline uses it to stamp the signer identity before serialization.
type Signable interface {
	SetSigner(signer string)
	SetKeyID(keyID string)
	SetSignedAt(t time.Time)
}

// SetSigner stamps the signing identity.
func (d *DocumentBase[T]) SetSigner(signer string) { d.Signer = signer }

// SetKeyID stamps the active sub-key, if any.
func (d *DocumentBase[T]) SetKeyID(keyID string) { d.KeyID = keyID }

// SetSignedAt stamps the signing time.
func (d *DocumentBase[T]) SetSignedAt(t time.Time) { d.SignedAt = t }

// ParseDocument decodes a signed document text into its base shape with the
// body left raw for the caller to promote.
func ParseDocument(text string) (DocumentBase[json.RawMessage], error) {
	var doc DocumentBase[json.RawMessage]
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return DocumentBase[json.RawMessage]{}, err
	}
	return doc, nil
}
