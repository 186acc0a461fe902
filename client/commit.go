package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/concrnt/concrnt-go/core"
)

const commitPath = "/api/v1/commit"

// CommitOptions tunes a single commit.
type CommitOptions struct {
	// Host overrides the target domain (default: the client's home).
	Host string
	// Option carries registration extras alongside the document.
	Option *core.CommitOption
	// CaptchaToken is forwarded in the captcha header when the server
	// requires one for registration.
	CaptchaToken string
}

// Commit signs a document, posts it, and invalidates the cache entries the
// write supersedes. The server's returned entity is authoritative and is
// promoted to T.
func Commit[T any](ctx context.Context, c *Client, doc core.Signable, opts *CommitOptions) (*T, error) {
	ccid, err := c.provider.CCID()
	if err != nil {
		return nil, fmt.Errorf("commit requires an identity: %w", err)
	}
	doc.SetSigner(ccid)
	if ckid, err := c.provider.CKID(); err == nil && ckid != "" {
		doc.SetKeyID(ckid)
	}
	doc.SetSignedAt(time.Now())

	docText, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	signature, err := c.provider.Sign(docText)
	if err != nil {
		return nil, fmt.Errorf("sign document: %w", err)
	}

	o := CommitOptions{}
	if opts != nil {
		o = *opts
	}
	body, err := json.Marshal(core.CommitRequest{
		Document:  string(docText),
		Signature: signature,
		Option:    o.Option,
	})
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"content-type": "application/json"}
	if o.CaptchaToken != "" {
		headers["captcha"] = o.CaptchaToken
	}

	content, err := fetchJSON[T](ctx, c, o.Host, http.MethodPost, commitPath, body, headers, false)
	if err != nil {
		return nil, err
	}
	c.invalidateForDocument(ctx, docText)
	return &content, nil
}

// committedDocument is the loose shape invalidation reads back out of a
// serialized document: enough to derive the affected cache keys.
type committedDocument struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Signer       string `json:"signer"`
	SemanticID   string `json:"semanticID"`
	Target       string `json:"target"`
	Subscription string `json:"subscription"`
	From         string `json:"from"`
	To           string `json:"to"`
}

// invalidateForDocument drops the cache entries a committed document makes
// stale. The next read refreshes them from the server.
func (c *Client) invalidateForDocument(ctx context.Context, docText []byte) {
	var doc committedDocument
	if err := json.Unmarshal(docText, &doc); err != nil {
		c.log.Warn("commit invalidation skipped", "err", err)
		return
	}

	var keys []string
	switch doc.Type {
	case core.DocTypeProfile:
		if doc.ID != "" {
			keys = append(keys, "profile:"+doc.ID)
		}
		if doc.SemanticID != "" {
			keys = append(keys, "profile:"+doc.SemanticID+"@"+doc.Signer)
		}
	case core.DocTypeTimeline:
		keys = append(keys, "timeline:"+doc.ID)
	case core.DocTypeSubscription:
		keys = append(keys, "subscription:"+doc.ID)
	case core.DocTypeSubscribe, core.DocTypeUnsubscribe:
		keys = append(keys, "subscription:"+doc.Subscription)
	case core.DocTypeAssociation:
		keys = append(keys, "message:"+doc.Target)
	case core.DocTypeAck, core.DocTypeUnack:
		keys = append(keys, "acking:"+doc.From, "acker:"+doc.To)
	case core.DocTypeEnact, core.DocTypeRevoke:
		keys = append(keys, "key:"+doc.Target)
	case core.DocTypeAffiliation, core.DocTypeTombstone:
		keys = append(keys, "entity:"+doc.Signer)
	case core.DocTypeDelete:
		if doc.Target != "" {
			switch doc.Target[0] {
			case 'm':
				keys = append(keys, "message:"+doc.Target)
			case 'a':
				keys = append(keys, "association:"+doc.Target)
			case 'p':
				keys = append(keys, "profile:"+doc.Target)
			case 't':
				keys = append(keys, "timeline:"+doc.Target)
			}
		}
	}

	for _, key := range keys {
		if err := c.store.Invalidate(ctx, key); err != nil {
			c.log.Warn("commit invalidation failed", "key", key, "err", err)
		}
	}
}
