package remnawave

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:         srv.URL,
		Token:           "test-token",
		SubscriptionURL: "https://sub.test/vpn/sub",
		Timeout:         5 * time.Second,
	})
	return client, srv
}

func TestFindUserByTelegramID_ResponseShapes(t *testing.T) {
	// Панель отвечает то объектом, то списком, то конвертом "response" -
	// все формы должны нормализоваться одинаково
	tests := []struct {
		name string
		body string
	}{
		{
			name: "bare object",
			body: `{"uuid":"u-1","shortUuid":"abc123","username":"tg_42","telegramId":42,"expireAt":"2030-01-02T03:04:05Z"}`,
		},
		{
			name: "array",
			body: `[{"uuid":"u-1","shortUuid":"abc123","username":"tg_42","telegramId":42,"expireAt":"2030-01-02T03:04:05Z"}]`,
		},
		{
			name: "envelope",
			body: `{"response":{"uuid":"u-1","shortUuid":"abc123","username":"tg_42","telegramId":42,"expireAt":"2030-01-02T03:04:05Z"}}`,
		},
		{
			name: "envelope with array",
			body: `{"response":[{"uuid":"u-1","shortUuid":"abc123","username":"tg_42","telegramId":42,"expireAt":"2030-01-02T03:04:05Z"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/users/by-telegram-id/42", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				w.Write([]byte(tt.body))
			}))

			user, err := client.FindUserByTelegramID(context.Background(), 42)
			require.NoError(t, err)
			assert.Equal(t, "u-1", user.UUID)
			assert.Equal(t, "abc123", user.ShortUUID)
			assert.Equal(t, int64(42), user.TelegramID)
			assert.Equal(t, time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC), user.ExpireAt)
		})
	}
}

func TestFindUserByTelegramID_NotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "404", status: http.StatusNotFound, body: `{"message":"not found"}`},
		{name: "empty array", status: http.StatusOK, body: `[]`},
		{name: "enveloped empty array", status: http.StatusOK, body: `{"response":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := client.FindUserByTelegramID(context.Background(), 42)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFindUserByTelegramID_ServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))

	_, err := client.FindUserByTelegramID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFindUserByTelegramID_TransportError(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := client.FindUserByTelegramID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestCreateUser(t *testing.T) {
	expireAt := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	var payload map[string]interface{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"response":{"uuid":"u-new","shortUuid":"s-new","username":"tg_42","telegramId":42,"expireAt":"2030-06-01T00:00:00Z"}}`))
	}))

	user, err := client.CreateUser(context.Background(), 42, "tg_42", expireAt)
	require.NoError(t, err)
	assert.Equal(t, "u-new", user.UUID)
	assert.Equal(t, "s-new", user.ShortUUID)

	assert.Equal(t, "tg_42", payload["username"])
	assert.Equal(t, float64(42), payload["telegramId"])
	assert.Equal(t, "2030-06-01T00:00:00Z", payload["expireAt"])
	assert.Equal(t, UserStatusActive, payload["status"])
	assert.Equal(t, TrafficStrategyNoReset, payload["trafficLimitStrategy"])
	assert.NotEmpty(t, payload["uuid"])
	assert.NotEmpty(t, payload["trojanPassword"])
	assert.NotEmpty(t, payload["ssPassword"])
	assert.NotEmpty(t, payload["vlessUuid"])
}

func TestCreateUser_Failures(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"username taken"}`))
		}))

		_, err := client.CreateUser(context.Background(), 42, "tg_42", time.Now())
		assert.ErrorIs(t, err, ErrRequestFailed)
		assert.Contains(t, err.Error(), "username taken")
	})

	t.Run("malformed body", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json at all`))
		}))

		_, err := client.CreateUser(context.Background(), 42, "tg_42", time.Now())
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestRenewSubscription(t *testing.T) {
	expireAt := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("200 with body", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPatch, r.Method)
			require.Equal(t, "/users", r.URL.Path)
			w.Write([]byte(`{"response":{"uuid":"u-1","shortUuid":"abc123","expireAt":"2031-01-01T00:00:00Z"}}`))
		}))

		sub, err := client.RenewSubscription(context.Background(), "u-1", expireAt)
		require.NoError(t, err)
		assert.Equal(t, "u-1", sub.UUID)
		assert.Equal(t, expireAt, sub.ExpireAt)
	})

	t.Run("204 without body synthesizes result", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		sub, err := client.RenewSubscription(context.Background(), "u-1", expireAt)
		require.NoError(t, err)
		assert.Equal(t, "u-1", sub.UUID)
		assert.Equal(t, expireAt, sub.ExpireAt)
	})

	t.Run("failure", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte("conflict"))
		}))

		_, err := client.RenewSubscription(context.Background(), "u-1", expireAt)
		assert.ErrorIs(t, err, ErrRequestFailed)
	})
}

func TestSubscriptionLink(t *testing.T) {
	t.Run("short uuid present", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no lookup expected when shortUuid is present")
		}))

		link := client.SubscriptionLink(context.Background(), &PanelUser{ShortUUID: "abc123"})
		assert.Equal(t, "https://sub.test/vpn/sub/abc123", link)
	})

	t.Run("secondary lookup by username", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/by-username/tg_42", r.URL.Path)
			w.Write([]byte(`{"uuid":"u-1","shortUuid":"abc123","username":"tg_42"}`))
		}))

		link := client.SubscriptionLink(context.Background(), &PanelUser{Username: "tg_42"})
		assert.Equal(t, "https://sub.test/vpn/sub/abc123", link)
	})

	t.Run("no identifiers", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		link := client.SubscriptionLink(context.Background(), &PanelUser{Username: "ghost"})
		assert.Equal(t, "", link)
	})
}

func TestNormalizeLink(t *testing.T) {
	client := NewClient(Config{
		BaseURL:         "https://panel.test/api",
		SubscriptionURL: "https://sub.test/vpn/sub",
	})

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare identifier", raw: "abc123", want: "https://sub.test/vpn/sub/abc123"},
		{name: "full link unchanged", raw: "https://sub.test/vpn/sub/abc123", want: "https://sub.test/vpn/sub/abc123"},
		{name: "foreign link unchanged", raw: "other.host/path/abc", want: "other.host/path/abc"},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.NormalizeLink(tt.raw))
		})
	}
}

func TestSplitClient(t *testing.T) {
	expireAt := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("create subscription", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/subscriptions", r.URL.Path)

			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "u-1", payload["userUuid"])

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"uuid":"sub-1","userUuid":"u-1","expireAt":"2031-01-01T00:00:00Z"}`))
		}))
		t.Cleanup(srv.Close)

		client := NewSplitClient(Config{BaseURL: srv.URL, SubscriptionURL: "https://sub.test/vpn/sub"})
		sub, err := client.CreateSubscription(context.Background(), &PanelUser{UUID: "u-1"}, expireAt)
		require.NoError(t, err)
		assert.Equal(t, "sub-1", sub.UUID)
		assert.Equal(t, "u-1", sub.UserUUID)
	})

	t.Run("renew against subscription resource", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPatch, r.Method)
			require.Equal(t, "/subscriptions/sub-1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))
		t.Cleanup(srv.Close)

		client := NewSplitClient(Config{BaseURL: srv.URL, SubscriptionURL: "https://sub.test/vpn/sub"})
		sub, err := client.RenewSubscription(context.Background(), "sub-1", expireAt)
		require.NoError(t, err)
		assert.Equal(t, "sub-1", sub.UUID)
		assert.Equal(t, expireAt, sub.ExpireAt)
	})
}

func TestMergedCreateSubscriptionIsLocal(t *testing.T) {
	// У merged-варианта подписка входит в ресурс пользователя - HTTP
	// вызовов быть не должно
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	user := &PanelUser{UUID: "u-1", ExpireAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	sub, err := client.CreateSubscription(context.Background(), user, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "u-1", sub.UUID)
	assert.Equal(t, user.ExpireAt, sub.ExpireAt)
}
