package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vpnportal/internal/db"
	"vpnportal/internal/models"
	"vpnportal/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(&models.EmailLog{}))
	return d
}

func TestSendPostsMessageAndLogsSent(t *testing.T) {
	var gotAuth string
	var gotMsg map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMsg))
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	d := newTestDB(t)
	m := New(srv.URL, "mail-key", "noreply@example.com", repo.NewEmailStore(d))

	err := m.Send(context.Background(), "alice@example.com", "Hello", "new-user", map[string]any{"password": "tmp"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer mail-key", gotAuth)
	assert.Equal(t, "noreply@example.com", gotMsg["from"])
	assert.Equal(t, "alice@example.com", gotMsg["to"])
	assert.Equal(t, "new-user", gotMsg["template"])

	var entries []models.EmailLog
	require.NoError(t, d.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "sent", entries[0].Status)
	assert.Empty(t, entries[0].Error)
}

func TestSendFailureIsLoggedToOutbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	d := newTestDB(t)
	m := New(srv.URL, "mail-key", "noreply@example.com", repo.NewEmailStore(d))

	err := m.Send(context.Background(), "alice@example.com", "Hello", "new-user", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	// попытка фиксируется даже при отказе mail API
	var entries []models.EmailLog
	require.NoError(t, d.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].Status)
	assert.NotEmpty(t, entries[0].Error)
}
