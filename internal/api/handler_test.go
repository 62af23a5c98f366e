package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roster/internal/ledger"
	"roster/internal/roster"
	"roster/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newRouter(t *testing.T) (*gin.Engine, *store.Memory) {
	t.Helper()
	kv := store.NewMemory()
	svc := roster.Open(context.Background(), store.NewState(kv, zerolog.Nop()), nil, zerolog.Nop())
	r := gin.New()
	New(svc, kv, zerolog.Nop()).Register(r)
	return r, kv
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func register(t *testing.T, r http.Handler, name string, size int) ledger.StudentStatus {
	t.Helper()
	body, err := json.Marshal(map[string]any{"name": name, "package": size})
	require.NoError(t, err)
	w := do(t, r, http.MethodPost, "/v1/students", string(body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[ledger.StudentStatus](t, w)
}

func TestRegisterAndFetch(t *testing.T) {
	r, _ := newRouter(t)

	st := register(t, r, "Ana Silva", 8)
	assert.Equal(t, "Ana Silva", st.Name)
	assert.Equal(t, 8, st.LessonBalance)
	assert.False(t, st.Overdue)

	w := do(t, r, http.MethodGet, "/v1/students/"+st.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, st.ID, decode[ledger.StudentStatus](t, w).ID)

	w = do(t, r, http.MethodGet, "/v1/students/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	r, _ := newRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"missing name", `{"package":8}`},
		{"blank name", `{"name":"  ","package":8}`},
		{"unknown package", `{"name":"Ana","package":10}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/v1/students", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}

	w := do(t, r, http.MethodGet, "/v1/students", "")
	assert.JSONEq(t, `{"students":[]}`, w.Body.String())
}

func TestCheckInDepositAndLogs(t *testing.T) {
	r, _ := newRouter(t)
	st := register(t, r, "Ana", 4)

	w := do(t, r, http.MethodPost, "/v1/students/"+st.ID+"/checkins", "")
	require.Equal(t, http.StatusCreated, w.Code)
	checkIn := decode[ledger.Entry](t, w)
	assert.Equal(t, ledger.ActionCheckIn, checkIn.Action)
	assert.Equal(t, -1, checkIn.Adjustment)

	w = do(t, r, http.MethodPost, "/v1/students/"+st.ID+"/deposits", `{"amount":8}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 8, decode[ledger.Entry](t, w).Adjustment)

	w = do(t, r, http.MethodPost, "/v1/students/"+st.ID+"/deposits", `{"amount":-2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/v1/students/"+st.ID+"/deposits", fmt.Sprintf(`{"amount":%d}`, math.MaxInt))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/v1/students/ghost/checkins", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/v1/logs", "")
	logs := decode[struct{ Entries []ledger.Entry }](t, w)
	require.Len(t, logs.Entries, 3)
	assert.Equal(t, ledger.ActionDeposit, logs.Entries[0].Action)
	assert.Equal(t, checkIn.ID, logs.Entries[1].ID)

	w = do(t, r, http.MethodGet, "/v1/students/"+st.ID, "")
	assert.Equal(t, 11, decode[ledger.StudentStatus](t, w).LessonBalance)
}

func TestEditProfile(t *testing.T) {
	r, _ := newRouter(t)
	st := register(t, r, "Ana", 4)

	w := do(t, r, http.MethodPut, "/v1/students/"+st.ID, `{"name":"Ana Souza","package":12}`)
	require.Equal(t, http.StatusOK, w.Code)
	edited := decode[ledger.StudentStatus](t, w)
	assert.Equal(t, "Ana Souza", edited.Name)
	assert.Equal(t, ledger.PackageSize(12), edited.ContractedPackage)
	assert.Equal(t, 4, edited.LessonBalance)

	w = do(t, r, http.MethodGet, "/v1/students/"+st.ID+"/history", "")
	history := decode[struct{ Entries []ledger.Entry }](t, w)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "Ana Souza", history.Entries[0].StudentName)

	w = do(t, r, http.MethodPut, "/v1/students/ghost", `{"name":"X","package":4}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAndReverse(t *testing.T) {
	r, _ := newRouter(t)
	a := register(t, r, "Ana", 4)
	b := register(t, r, "Bruno", 8)

	w := do(t, r, http.MethodPost, "/v1/students/"+b.ID+"/checkins", "")
	checkIn := decode[ledger.Entry](t, w)

	w = do(t, r, http.MethodDelete, "/v1/logs/"+checkIn.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balanceAdjusted":true`)
	rev := decode[ledger.Reversal](t, w)
	assert.True(t, rev.BalanceAdjusted)
	assert.Equal(t, checkIn.ID, rev.Entry.ID)

	w = do(t, r, http.MethodDelete, "/v1/logs/"+checkIn.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/v1/students/"+a.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removedEntries":1}`, w.Body.String())

	w = do(t, r, http.MethodDelete, "/v1/students/"+a.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/v1/students/"+a.ID+"/history", "")
	assert.JSONEq(t, `{"entries":[]}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/v1/audit", "")
	assert.JSONEq(t, `{"discrepancies":[]}`, w.Body.String())
}

func TestSearchAndStats(t *testing.T) {
	r, _ := newRouter(t)
	register(t, r, "Ana Silva", 4)
	zero := register(t, r, "Bruno Souza", 4)
	register(t, r, "Mariana Silveira", 8)
	for range 4 {
		do(t, r, http.MethodPost, "/v1/students/"+zero.ID+"/checkins", "")
	}

	w := do(t, r, http.MethodGet, "/v1/students?q=SILV", "")
	found := decode[struct{ Students []ledger.StudentStatus }](t, w)
	require.Len(t, found.Students, 2)
	assert.Equal(t, "Ana Silva", found.Students[0].Name)
	assert.Equal(t, "Mariana Silveira", found.Students[1].Name)

	w = do(t, r, http.MethodGet, "/v1/stats", "")
	assert.JSONEq(t, `{"total":3,"active":2,"overdue":1}`, w.Body.String())
}

func TestStatePersistedToStore(t *testing.T) {
	r, kv := newRouter(t)
	register(t, r, "Ana", 4)

	raw, err := kv.Get(context.Background(), store.StudentsKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"Ana"`)
	_, err = kv.Get(context.Background(), store.LogsKey)
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t)
	w := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	down := gin.New()
	svc := roster.Open(context.Background(), store.NewState(store.NewMemory(), zerolog.Nop()), nil, zerolog.Nop())
	New(svc, downStore{}, zerolog.Nop()).Register(down)
	w = do(t, down, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
