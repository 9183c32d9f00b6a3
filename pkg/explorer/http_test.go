package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
}

func newTestAPI(t *testing.T, handler http.HandlerFunc) API {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTP(HTTPOptions{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		NewBackOff: quickBackOff,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestHTTP_Call(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		want    string
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "envelope ok",
			body:    map[string]interface{}{"status": "1", "message": "OK", "result": []interface{}{map[string]string{"hash": "0x1"}}},
			want:    `[{"hash":"0x1"}]`,
			wantErr: assert.NoError,
		},
		{
			name:    "flat array",
			body:    []interface{}{map[string]string{"hash": "0x2"}},
			want:    `[{"hash":"0x2"}]`,
			wantErr: assert.NoError,
		},
		{
			name:    "no transactions found",
			body:    map[string]interface{}{"status": "0", "message": "No transactions found", "result": []interface{}{}},
			want:    `[]`,
			wantErr: assert.NoError,
		},
		{
			name: "error envelope",
			body: map[string]interface{}{"status": "0", "message": "NOTOK", "result": "Max rate limit reached"},
			wantErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				var apiErr *RemoteAPIError
				return assert.ErrorAs(t, err, &apiErr) &&
					assert.Equal(t, "NOTOK", apiErr.Message) &&
					assert.Equal(t, "Max rate limit reached", apiErr.Detail) &&
					assert.False(t, IsPermanent(err))
			},
		},
		{
			name: "invalid address",
			body: map[string]interface{}{"status": "0", "message": "NOTOK", "result": "Error! Invalid address format"},
			wantErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				return assert.Error(t, err) && assert.True(t, IsPermanent(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.body)
			})
			got, err := api.Call(context.Background(), Request{Module: "account", Action: "txlist", Address: holder.Hex()})
			if !tt.wantErr(t, err) {
				return
			}
			if tt.want != "" {
				assert.JSONEq(t, tt.want, string(got))
			}
		})
	}
}

func TestHTTP_CallSendsQuery(t *testing.T) {
	start := uint64(123)
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "tokennfttx", q.Get("action"))
		assert.Equal(t, "0x00000000000000000000000000000000000000aa", q.Get("address"))
		assert.Equal(t, "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d", q.Get("contractaddress"))
		assert.Equal(t, "123", q.Get("startblock"))
		assert.Equal(t, "10000", q.Get("offset"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "asc", q.Get("sort"))
		assert.Equal(t, "test-key", q.Get("apikey"))
		assert.False(t, q.Has("endblock"))
		writeJSON(w, []interface{}{})
	})
	req := Page{StartBlock: &start, Offset: PageCap}.apply(Request{
		Module:          "account",
		Action:          "tokennfttx",
		Address:         holder.Hex(),
		ContractAddress: contract.Hex(),
	})
	_, err := api.Call(context.Background(), req)
	require.NoError(t, err)
}

func TestHTTP_CallRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			writeJSON(w, map[string]interface{}{"status": "1", "message": "OK", "result": "[]"})
		}
	})
	got, err := api.Call(context.Background(), Request{Module: "contract", Action: "getabi"})
	require.NoError(t, err)
	assert.Equal(t, `"[]"`, string(got))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTP_CallGivesUpAsUnavailable(t *testing.T) {
	var calls atomic.Int32
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := api.Call(context.Background(), Request{Module: "account", Action: "txlist"})
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Equal(t, int32(4), calls.Load())
}

func TestHTTP_CallClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := api.Call(context.Background(), Request{Module: "account", Action: "txlist"})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.NotErrorIs(t, err, ErrRemoteUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTP_CallCancelled(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := api.Call(ctx, Request{Module: "account", Action: "txlist"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_TypedActions(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case actionGetABI:
			writeJSON(w, map[string]interface{}{"status": "1", "message": "OK", "result": `[{"type":"function","name":"name"}]`})
		case actionSourceCode:
			writeJSON(w, map[string]interface{}{"status": "1", "message": "OK", "result": []map[string]string{{"SourceCode": "contract A {}", "ContractName": "A"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	c := NewClient(api)

	abiJSON, err := c.ContractABI(context.Background(), contract)
	require.NoError(t, err)
	assert.Contains(t, abiJSON, `"name":"name"`)

	src, err := c.SourceCode(context.Background(), contract)
	require.NoError(t, err)
	assert.Equal(t, "contract A {}", src)
}
