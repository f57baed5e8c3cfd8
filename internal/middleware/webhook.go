package middleware

import (
	"crypto/subtle"
	"net/http"
)

const WebhookSecretHeader = "X-Webhook-Secret"

// maxWebhookBody bounds gateway callbacks.
const maxWebhookBody = 64 << 10

// WebhookSecret admits requests whose X-Webhook-Secret header matches secret.
// An empty secret rejects everything.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	want := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(WebhookSecretHeader))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				http.Error(w, `{"error":"invalid webhook secret"}`, http.StatusUnauthorized)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
			next.ServeHTTP(w, r)
		})
	}
}
