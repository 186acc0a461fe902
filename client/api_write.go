package client

import (
	"context"
	"encoding/json"

	"github.com/concrnt/concrnt-go/core"
)

// CreateMessage commits a message document posting body to the given
// timelines. Generic helpers are package functions; Go methods cannot carry
// their own type parameters.
func CreateMessage[T any](ctx context.Context, c *Client, schema string, body T, timelines []string, opts *CommitOptions) (*core.Message, error) {
	doc := &core.MessageDocument[T]{
		DocumentBase: core.DocumentBase[T]{
			Type:   core.DocTypeMessage,
			Schema: schema,
			Body:   body,
		},
		Timelines: timelines,
	}
	return Commit[core.Message](ctx, c, doc, opts)
}

// CreateAssociation commits an association document attached to target.
func CreateAssociation[T any](ctx context.Context, c *Client, schema string, body T, target, variant string, timelines []string, opts *CommitOptions) (*core.Association, error) {
	doc := &core.AssociationDocument[T]{
		DocumentBase: core.DocumentBase[T]{
			Type:   core.DocTypeAssociation,
			Schema: schema,
			Body:   body,
		},
		Target:    target,
		Variant:   variant,
		Timelines: timelines,
	}
	return Commit[core.Association](ctx, c, doc, opts)
}

// UpsertProfile commits a profile document. A non-empty id edits an
// existing profile; semanticID names it within the owner's namespace.
func UpsertProfile[T any](ctx context.Context, c *Client, schema string, body T, id, semanticID string, opts *CommitOptions) (*core.Profile, error) {
	doc := &core.DocumentBase[T]{
		ID:         id,
		Type:       core.DocTypeProfile,
		Schema:     schema,
		Body:       body,
		SemanticID: semanticID,
	}
	return Commit[core.Profile](ctx, c, doc, opts)
}

// UpsertTimeline commits a timeline document.
func UpsertTimeline[T any](ctx context.Context, c *Client, schema string, body T, id string, indexable bool, opts *CommitOptions) (*core.Timeline, error) {
	doc := &core.TimelineDocument[T]{
		DocumentBase: core.DocumentBase[T]{
			ID:     id,
			Type:   core.DocTypeTimeline,
			Schema: schema,
			Body:   body,
		},
		Indexable: indexable,
	}
	return Commit[core.Timeline](ctx, c, doc, opts)
}

// UpsertSubscription commits a subscription document.
func UpsertSubscription[T any](ctx context.Context, c *Client, schema string, body T, id string, indexable bool, opts *CommitOptions) (*core.Subscription, error) {
	doc := &core.SubscriptionDocument[T]{
		DocumentBase: core.DocumentBase[T]{
			ID:     id,
			Type:   core.DocTypeSubscription,
			Schema: schema,
			Body:   body,
		},
		Indexable: indexable,
	}
	return Commit[core.Subscription](ctx, c, doc, opts)
}

// Subscribe adds a timeline to a subscription set.
func (c *Client) Subscribe(ctx context.Context, target, subscription string, opts *CommitOptions) (*core.SubscriptionItem, error) {
	doc := &core.SubscribeDocument{
		DocumentBase: core.DocumentBase[struct{}]{Type: core.DocTypeSubscribe},
		Target:       target,
		Subscription: subscription,
	}
	return Commit[core.SubscriptionItem](ctx, c, doc, opts)
}

// Unsubscribe removes a timeline from a subscription set.
func (c *Client) Unsubscribe(ctx context.Context, target, subscription string, opts *CommitOptions) (*core.SubscriptionItem, error) {
	doc := &core.UnsubscribeDocument{
		DocumentBase: core.DocumentBase[struct{}]{Type: core.DocTypeUnsubscribe},
		Target:       target,
		Subscription: subscription,
	}
	return Commit[core.SubscriptionItem](ctx, c, doc, opts)
}

// Ack acknowledges another entity.
func (c *Client) Ack(ctx context.Context, to string, opts *CommitOptions) (*core.Ack, error) {
	ccid, err := c.provider.CCID()
	if err != nil {
		return nil, err
	}
	doc := &core.AckDocument{
		DocumentBase: core.DocumentBase[struct{}]{Type: core.DocTypeAck},
		From:         ccid,
		To:           to,
	}
	return Commit[core.Ack](ctx, c, doc, opts)
}

// Unack withdraws an acknowledgement.
func (c *Client) Unack(ctx context.Context, to string, opts *CommitOptions) (*core.Ack, error) {
	ccid, err := c.provider.CCID()
	if err != nil {
		return nil, err
	}
	doc := &core.AckDocument{
		DocumentBase: core.DocumentBase[struct{}]{Type: core.DocTypeUnack},
		From:         ccid,
		To:           to,
	}
	return Commit[core.Ack](ctx, c, doc, opts)
}

// EnactSubKey activates a sub-key under the provider's root key.
func (c *Client) EnactSubKey(ctx context.Context, ckid string, opts *CommitOptions) (*core.Key, error) {
	ccid, err := c.provider.CCID()
	if err != nil {
		return nil, err
	}
	parent := ccid
	if active, err := c.provider.CKID(); err == nil && active != "" {
		parent = active
	}
	doc := &core.EnactDocument{
		DocumentBase: core.DocumentBase[struct{}]{Type: core.DocTypeEnact},
		Target:       ckid,
		Root:         ccid,
		Parent:       parent,
	}
	return Commit[core.Key](ctx, c, doc, opts)
}

// RevokeSubKey deactivates a sub-key.
func (c *Client) RevokeSubKey(ctx context.Context, ckid string, opts *CommitOptions) (*core.Key, error) {
	doc := &core.RevokeDocument{
		DocumentBase: core.DocumentBase[struct{}]{Type: core.DocTypeRevoke},
		Target:       ckid,
	}
	return Commit[core.Key](ctx, c, doc, opts)
}

// Delete commits a delete document for the resource with the given id.
func (c *Client) Delete(ctx context.Context, target string, opts *CommitOptions) error {
	doc := &core.DeleteDocument{
		DocumentBase: core.DocumentBase[struct{}]{Type: core.DocTypeDelete},
		Target:       target,
	}
	_, err := Commit[json.RawMessage](ctx, c, doc, opts)
	return err
}

// Register affiliates the provider's identity with a domain. Registration
// reuses the commit endpoint with an option payload; a captcha token may be
// required by the target domain.
func (c *Client) Register(ctx context.Context, domainFQDN string, info json.RawMessage, invitation, captchaToken string) (*core.Entity, error) {
	doc := &core.AffiliationDocument{
		DocumentBase: core.DocumentBase[struct{}]{Type: core.DocTypeAffiliation},
		Domain:       domainFQDN,
	}
	return Commit[core.Entity](ctx, c, doc, &CommitOptions{
		Host:         domainFQDN,
		CaptchaToken: captchaToken,
		Option: &core.CommitOption{
			Info:       info,
			Invitation: invitation,
		},
	})
}
