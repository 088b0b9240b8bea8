package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"hookrelay/internal/domain/event"
	"hookrelay/internal/domain/subscription"

	"github.com/google/uuid"
)

const (
	headerSignature = "X-Webhook-Signature"
	headerEvent     = "X-Webhook-Event"
	headerDelivery  = "X-Webhook-Delivery"
)

// EncodedRequest is a fully prepared outbound webhook request.
type EncodedRequest struct {
	URL     string
	Headers http.Header
	Body    []byte
}

// Encoder builds outbound requests in the subscription's delivery mode
// and signs them when the subscription carries a secret.
type Encoder struct {
	platform string
}

func NewEncoder(platform string) *Encoder {
	if platform == "" {
		platform = "whatsapp"
	}
	return &Encoder{platform: platform}
}

// Encode is deterministic: the same (subscription, event, deliveryID)
// always produces byte-identical output, so signatures are reproducible
// by any receiver holding the same secret and raw bytes.
func (e *Encoder) Encode(sub *subscription.Subscription, ev event.Event, deliveryID uuid.UUID) (*EncodedRequest, error) {
	switch sub.Mode {
	case subscription.ModeQueryParam:
		return e.encodeQueryParam(sub, ev, deliveryID)
	default:
		return e.encodeBody(sub, ev, deliveryID)
	}
}

type bodyPayload struct {
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func (e *Encoder) encodeBody(sub *subscription.Subscription, ev event.Event, deliveryID uuid.UUID) (*EncodedRequest, error) {
	body, err := json.Marshal(bodyPayload{
		Event:     string(ev.Kind),
		Timestamp: ev.OccurredAt.UTC().Format(time.RFC3339),
		Data:      ev.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set(headerEvent, string(ev.Kind))
	headers.Set(headerDelivery, deliveryID.String())
	if sub.Signed() {
		headers.Set(headerSignature, Sign(sub.Secret, body))
	}

	return &EncodedRequest{URL: sub.URL, Headers: headers, Body: body}, nil
}

func (e *Encoder) encodeQueryParam(sub *subscription.Subscription, ev event.Event, deliveryID uuid.UUID) (*EncodedRequest, error) {
	u, err := url.Parse(sub.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	params := u.Query()
	params.Set("platform", e.platform)
	params.Set("action", ev.Kind.Direction())
	for key, value := range flattenScalars(ev.Data) {
		params.Set(key, value)
	}
	u.RawQuery = params.Encode()

	headers := http.Header{}
	headers.Set(headerEvent, string(ev.Kind))
	headers.Set(headerDelivery, deliveryID.String())

	return &EncodedRequest{URL: u.String(), Headers: headers}, nil
}

// flattenScalars serializes top-level scalar fields to snake_case query
// parameters. Nested objects are dropped except the conventional
// content.text, which becomes "message"; "from" values carrying a JID
// suffix are trimmed at the "@".
func flattenScalars(data map[string]interface{}) map[string]string {
	params := make(map[string]string, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if key == "from" {
				if at := strings.IndexByte(v, '@'); at >= 0 {
					v = v[:at]
				}
			}
			params[toSnake(key)] = v
		case bool:
			params[toSnake(key)] = strconv.FormatBool(v)
		case float64:
			params[toSnake(key)] = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			params[toSnake(key)] = strconv.Itoa(v)
		case int64:
			params[toSnake(key)] = strconv.FormatInt(v, 10)
		case json.Number:
			params[toSnake(key)] = v.String()
		case map[string]interface{}:
			if key == "content" {
				if text, ok := v["text"].(string); ok {
					params["message"] = text
				}
			}
		}
	}
	return params
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a previously computed signature in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
