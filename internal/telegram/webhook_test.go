package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		secret     string
		header     string
		body       string
		wantStatus int
		wantBody   string
		wantUpdate bool
	}{
		{
			name:       "valid update",
			method:     http.MethodPost,
			body:       `{"update_id":42,"message":{"message_id":1,"date":0,"chat":{"id":7,"type":"private"},"text":"/start"}}`,
			wantStatus: http.StatusOK,
			wantBody:   "OK",
			wantUpdate: true,
		},
		{
			name:       "empty object still decodes",
			method:     http.MethodPost,
			body:       `{}`,
			wantStatus: http.StatusOK,
			wantBody:   "OK",
			wantUpdate: true,
		},
		{
			name:       "malformed body",
			method:     http.MethodPost,
			body:       `{"update_id":`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Error",
		},
		{
			name:       "wrong type",
			method:     http.MethodPost,
			body:       `{"update_id":"nope"}`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Error",
		},
		{
			name:       "get not allowed",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "secret mismatch",
			method:     http.MethodPost,
			secret:     "s3cret",
			header:     "wrong",
			body:       `{}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "secret match",
			method:     http.MethodPost,
			secret:     "s3cret",
			header:     "s3cret",
			body:       `{"update_id":1}`,
			wantStatus: http.StatusOK,
			wantBody:   "OK",
			wantUpdate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make(chan tgbotapi.Update, 1)
			h := NewWebhookHandler(WebhookHandlerOpts{
				SecretToken: tt.secret,
				OnUpdate:    func(_ context.Context, u tgbotapi.Update) { got <- u },
			})

			req := httptest.NewRequest(tt.method, "/123:abc", strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set("X-Telegram-Bot-Api-Secret-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}

			select {
			case u := <-got:
				require.True(t, tt.wantUpdate, "unexpected dispatch")
				if tt.name == "valid update" {
					assert.Equal(t, 42, u.UpdateID)
					require.NotNil(t, u.Message)
					assert.Equal(t, "/start", u.Message.Text)
				}
			case <-time.After(200 * time.Millisecond):
				assert.False(t, tt.wantUpdate, "update was not dispatched")
			}
		})
	}
}

func TestWebhookHandler_PanicInDispatchDoesNotAffectResponse(t *testing.T) {
	done := make(chan struct{})
	h := NewWebhookHandler(WebhookHandlerOpts{
		OnUpdate: func(context.Context, tgbotapi.Update) {
			defer close(done)
			panic("dispatch exploded")
		},
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/t", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	<-done
}
