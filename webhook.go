package social

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// SignatureHeader carries "sha256=<hex hmac of the body>".
	SignatureHeader = "X-Social-Signature"
	// DeliveryHeader carries the sender's delivery id, used to drop retries.
	DeliveryHeader = "X-Social-Delivery"

	maxWebhookBody  = 1 << 20
	deliveryHistory = 256
)

// ============================================================================
// Standalone Functions
// ============================================================================

// VerifyWebhookSignature verifies an HMAC-SHA256 signature of body.
// Uses constant-time comparison to prevent timing attacks.
func VerifyWebhookSignature(body, signature, secret string) bool {
	if body == "" || signature == "" || secret == "" {
		return false
	}

	sig := strings.TrimPrefix(signature, "sha256=")
	if sig == "" {
		return false
	}

	expected := SignWebhookBody(body, secret)
	if len(sig) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1
}

// SignWebhookBody returns the hex HMAC-SHA256 of body.
func SignWebhookBody(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhookFrames splits a body into envelopes. The body is either one
// envelope or an array of them.
func ParseWebhookFrames(body string) ([]string, error) {
	if !gjson.Valid(body) {
		return nil, errors.New("invalid JSON in webhook body")
	}
	root := gjson.Parse(body)
	var frames []gjson.Result
	if root.IsArray() {
		frames = root.Array()
	} else {
		frames = []gjson.Result{root}
	}
	if len(frames) == 0 {
		return nil, errors.New("empty webhook body")
	}
	out := make([]string, 0, len(frames))
	for i, f := range frames {
		if f.Get("type").String() == "" {
			return nil, fmt.Errorf("frame %d: missing type field", i)
		}
		out = append(out, f.Raw)
	}
	return out, nil
}

// ============================================================================
// PushWebhook
// ============================================================================

// WebhookResponse is the JSON body answered to the sender.
type WebhookResponse struct {
	OK         bool   `json:"ok"`
	DeliveryID string `json:"deliveryId,omitempty"`
	Routed     int    `json:"routed"`
	Skipped    int    `json:"skipped"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	Error      string `json:"error,omitempty"`
}

// PushWebhook receives signed push deliveries over HTTP and feeds them to
// a FrameSink, as an alternative to a long-lived push connection.
type PushWebhook struct {
	secret string
	sink   FrameSink
	log    zerolog.Logger

	mu     sync.Mutex
	seen   map[string]struct{}
	recent []string
}

// NewPushWebhook creates a webhook receiver.
func NewPushWebhook(secret string, sink FrameSink, log zerolog.Logger) (*PushWebhook, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}
	return &PushWebhook{
		secret: secret,
		sink:   sink,
		log:    log.With().Str("component", "webhook").Logger(),
		seen:   make(map[string]struct{}),
	}, nil
}

// Verify verifies an HMAC-SHA256 signature.
func (w *PushWebhook) Verify(body, signature string) bool {
	return VerifyWebhookSignature(body, signature, w.secret)
}

// Handle processes one delivery (verify, dedupe, route). Returns the status
// code and response body for the caller to write.
func (w *PushWebhook) Handle(body, signature, deliveryID string) (int, WebhookResponse) {
	if !w.Verify(body, signature) {
		w.log.Warn().Msg("rejecting delivery with bad signature")
		return http.StatusUnauthorized, WebhookResponse{Error: "Invalid signature"}
	}
	frames, err := ParseWebhookFrames(body)
	if err != nil {
		return http.StatusBadRequest, WebhookResponse{Error: err.Error()}
	}

	if deliveryID == "" {
		deliveryID = uuid.NewString()
	} else if !w.remember(deliveryID) {
		w.log.Debug().Str("delivery_id", deliveryID).Msg("duplicate delivery")
		return http.StatusOK, WebhookResponse{OK: true, DeliveryID: deliveryID, Duplicate: true}
	}

	resp := WebhookResponse{OK: true, DeliveryID: deliveryID}
	for _, f := range frames {
		if err := w.sink.HandleFrame([]byte(f)); err != nil {
			resp.Skipped++
			continue
		}
		resp.Routed++
	}
	w.log.Debug().Str("delivery_id", deliveryID).Int("routed", resp.Routed).Int("skipped", resp.Skipped).Msg("delivery handled")
	return http.StatusOK, resp
}

// remember records id and reports whether it was new. Only the most recent
// deliveryHistory ids are kept.
func (w *PushWebhook) remember(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = struct{}{}
	w.recent = append(w.recent, id)
	if len(w.recent) > deliveryHistory {
		delete(w.seen, w.recent[0])
		w.recent = w.recent[1:]
	}
	return true
}

// HTTPHandler returns an http.Handler that processes webhook requests.
//
// Example:
//
//	wh, _ := social.NewPushWebhook("secret", social.NewRouter(hub.Bus(), log), log)
//	http.Handle("/push", wh.HTTPHandler())
func (w *PushWebhook) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeWebhookJSON(rw, http.StatusMethodNotAllowed, WebhookResponse{Error: "Method not allowed"})
			return
		}

		bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		defer r.Body.Close()
		if err != nil {
			writeWebhookJSON(rw, http.StatusBadRequest, WebhookResponse{Error: "Failed to read body"})
			return
		}

		status, resp := w.Handle(string(bodyBytes), r.Header.Get(SignatureHeader), r.Header.Get(DeliveryHeader))
		writeWebhookJSON(rw, status, resp)
	})
}

func writeWebhookJSON(rw http.ResponseWriter, status int, v WebhookResponse) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}
