package dns

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier delivers publish notifications to zone webhook URLs.
// Delivery is fire-and-forget: failures are logged and swallowed, never
// surfaced to the publish caller.
type WebhookNotifier struct {
	client *http.Client
}

func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Zone        string    `json:"zone"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Deleted     int       `json:"deleted"`
	PublishedAt time.Time `json:"published_at"`
}

// NotifyPublish posts the change counts to the zone's webhook URL in the
// background
func (n *WebhookNotifier) NotifyPublish(url, zone string, created, updated, deleted int) {
	go func() {
		payload := webhookPayload{
			Zone:        zone,
			Created:     created,
			Updated:     updated,
			Deleted:     deleted,
			PublishedAt: time.Now().UTC(),
		}
		body, _ := json.Marshal(payload)

		resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("Webhook delivery for zone %s failed: %v", zone, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			log.Printf("Webhook for zone %s returned %d", zone, resp.StatusCode)
		}
	}()
}
