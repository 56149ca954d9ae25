package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/sid-bonds/internal/auth"
	"github.com/nurpe/sid-bonds/internal/excel"
	"github.com/nurpe/sid-bonds/internal/http/middleware"
	"github.com/nurpe/sid-bonds/internal/model"
	"github.com/nurpe/sid-bonds/internal/pdf"
	"github.com/nurpe/sid-bonds/internal/service"
	"github.com/nurpe/sid-bonds/internal/testutil"
)

type testServer struct {
	router *gin.Engine
	env    *testutil.Env
	parser *auth.Parser
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := testutil.NewEnv(testutil.BondsConfig())
	parser := auth.NewParser("test-secret")
	handler := NewHandler(Services{
		Guarantees: env.Guarantees,
		Contracts:  env.Contracts,
		Orders:     env.Orders,
		Activities: env.Activities,
		Documents:  service.NewDocumentService(env.Guarantees, pdf.NewGenerator(), excel.NewGenerator()),
	}, zerolog.Nop())

	router := NewRouter(handler, middleware.Auth(parser), "test", nil, zerolog.Nop())
	return &testServer{router: router, env: env, parser: parser}
}

func (s *testServer) token(t *testing.T, p model.Principal) string {
	t.Helper()
	token, err := s.parser.Issue(p, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Variance json.RawMessage `json:"variance"`
	Reviewed json.RawMessage `json:"reviewed"`
	Error    string          `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/guarantees", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/guarantees", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuaranteeCRUD(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, testutil.User())
	customer := uuid.New()
	contract := srv.env.SeedContract("Q-001")
	srv.env.SeedOrder("SO-001", contract.ID, customer, model.OrderStateSale, 1000, testutil.FixedClock)

	w := srv.do(t, http.MethodPost, "/guarantees", token, map[string]any{
		"customer_id":  customer.String(),
		"amount":       250,
		"type":         "compliance",
		"due_date":     "2026-12-31",
		"contract_ids": []string{contract.ID.String()},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created guaranteeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, "AVAL/00001", created.Name)
	assert.Equal(t, model.GuaranteeTypeCompliance, created.Type)
	assert.Equal(t, "1000", created.BaseAmount.String())
	assert.Equal(t, "SO-001", created.Origin)

	w = srv.do(t, http.MethodGet, "/guarantees/"+created.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPatch, "/guarantees/"+created.ID.String(), token, map[string]any{
		"description": "bank reference pending",
		"due_date":    nil,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated guaranteeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &updated))
	assert.Equal(t, "bank reference pending", updated.Description)
	assert.Nil(t, updated.DueDate)

	w = srv.do(t, http.MethodGet, "/guarantees?state=draft", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []guaranteeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.Len(t, list, 1)

	w = srv.do(t, http.MethodGet, "/guarantees?state=unknown", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodGet, "/guarantees/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodGet, "/guarantees/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGuaranteeCreateForbiddenForReader(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodPost, "/guarantees", srv.token(t, testutil.Reader()), map[string]any{"amount": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGuaranteeActions(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, testutil.User())

	w := srv.do(t, http.MethodPost, "/guarantees", token, map[string]any{"amount": 0})
	require.Equal(t, http.StatusCreated, w.Code)
	var g guaranteeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &g))
	ids := map[string]any{"ids": []string{g.ID.String()}}

	w = srv.do(t, http.MethodPost, "/guarantees/actions/activate", token, ids)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = srv.do(t, http.MethodPatch, "/guarantees/"+g.ID.String(), token, map[string]any{"amount": "1500.50"})
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, "/guarantees/actions/activate", token, ids)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var states []stateResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &states))
	assert.Equal(t, model.GuaranteeStateActive, states[0].State)

	w = srv.do(t, http.MethodPost, "/guarantees/actions/request", token, ids)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodDelete, "/guarantees", token, ids)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodPost, "/guarantees/actions/bank_state", token, map[string]any{
		"ids":        []string{g.ID.String()},
		"bank_state": "solicit_dev",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, "/guarantees/actions/cancel", token, ids)
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodDelete, "/guarantees", token, ids)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestGuaranteeActionsMixedBatch(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, testutil.User())

	create := func(amount int) guaranteeResponse {
		w := srv.do(t, http.MethodPost, "/guarantees", token, map[string]any{"amount": amount})
		require.Equal(t, http.StatusCreated, w.Code)
		var g guaranteeResponse
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &g))
		return g
	}
	ok, empty := create(500), create(0)

	w := srv.do(t, http.MethodPost, "/guarantees/actions/activate", token, map[string]any{
		"ids": []string{ok.ID.String(), empty.ID.String()},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.NotEmpty(t, resp.Error)
	assert.Empty(t, resp.Data)
	assert.Empty(t, srv.env.Events.OfType(model.EventStateChanged))
}

func (s *testServer) upload(t *testing.T, path, token string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "signed.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPut, path, &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestGuaranteeDocumentUpload(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, testutil.User())

	w := srv.do(t, http.MethodPost, "/guarantees", token, map[string]any{"amount": 100})
	require.Equal(t, http.StatusCreated, w.Code)
	var g guaranteeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &g))
	path := "/guarantees/" + g.ID.String() + "/document"

	w = srv.upload(t, path, token, []byte("%PDF-1.4 signed"))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = srv.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 signed", w.Body.String())

	t.Run("not a pdf", func(t *testing.T) {
		w := srv.upload(t, path, token, []byte("plain text"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("over the size cap", func(t *testing.T) {
		content := append([]byte("%PDF-"), bytes.Repeat([]byte("x"), service.MaxDocumentSize)...)
		w := srv.upload(t, path, token, content)
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	})

	t.Run("body over the request cap", func(t *testing.T) {
		content := bytes.Repeat([]byte("x"), service.MaxDocumentSize+2<<20)
		w := srv.upload(t, path, token, content)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	})
}

func TestOrderUpsertRequestsReview(t *testing.T) {
	srv := newTestServer(t)
	creator := testutil.User()
	token := srv.token(t, creator)
	customer := uuid.New()
	contract := srv.env.SeedContract("Q-001")
	srv.env.SeedOrder("SO-001", contract.ID, customer, model.OrderStateSale, 1000, testutil.FixedClock)

	w := srv.do(t, http.MethodPost, "/guarantees", token, map[string]any{
		"customer_id":  customer.String(),
		"amount":       100,
		"contract_ids": []string{contract.ID.String()},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var g guaranteeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &g))

	w = srv.do(t, http.MethodPut, "/orders/"+uuid.NewString(), token, map[string]any{
		"name":           "SO-002",
		"contract_id":    contract.ID.String(),
		"customer_id":    customer.String(),
		"state":          "sale",
		"amount_untaxed": 50,
		"date_order":     "2026-03-09",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reviewed []reviewResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Reviewed, &reviewed))
	require.Len(t, reviewed, 1)
	assert.Equal(t, g.ID, reviewed[0].GuaranteeID)
	assert.True(t, reviewed[0].NotePosted)
	assert.True(t, reviewed[0].TaskCreated)
	assert.Equal(t, "5", reviewed[0].Percent.String())

	w = srv.do(t, http.MethodGet, "/guarantees/"+g.ID.String()+"/activities?open=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var activities []model.Activity
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &activities))
	require.Len(t, activities, 1)
	assert.Equal(t, creator.UserID, activities[0].AssigneeID)

	w = srv.do(t, http.MethodPost, "/activities/"+activities[0].ID.String()+"/done", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodGet, "/guarantees/"+g.ID.String()+"/notes", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []model.Note
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &notes))
	assert.Len(t, notes, 1)
}

func TestContractEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, testutil.User())
	customerA, customerB := uuid.New(), uuid.New()
	addendum := srv.env.SeedContract("Q-ADD")
	srv.env.SeedOrder("SO-1", addendum.ID, customerA, model.OrderStateSale, 100, testutil.FixedClock)
	foreign := srv.env.SeedContract("Q-FOREIGN")
	srv.env.SeedOrder("SO-2", foreign.ID, customerB, model.OrderStateSale, 100, testutil.FixedClock)

	w := srv.do(t, http.MethodPost, "/contracts", token, map[string]any{
		"name":      "Q-MAIN",
		"child_ids": []string{addendum.ID.String()},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var main contractResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &main))
	assert.Equal(t, []uuid.UUID{addendum.ID}, main.ChildIDs)

	parent := main.ID.String()
	w = srv.do(t, http.MethodPatch, "/contracts/"+foreign.ID.String(), token, map[string]any{"parent_id": parent})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = srv.do(t, http.MethodPatch, "/contracts/"+main.ID.String(), token, map[string]any{"parent_id": addendum.ID.String()})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = srv.do(t, http.MethodGet, "/contracts/"+addendum.ID.String()+"/orders-action", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var action model.ActionDescriptor
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &action))
	assert.Equal(t, []uuid.UUID{customerA}, action.Domain.CustomerIDs)
}

func TestExportAndSummary(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, testutil.User())

	w := srv.do(t, http.MethodPost, "/guarantees", token, map[string]any{"amount": 10})
	require.Equal(t, http.StatusCreated, w.Code)
	var g guaranteeResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &g))

	w = srv.do(t, http.MethodGet, "/guarantees/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "guarantees-20260310.xlsx")

	w = srv.do(t, http.MethodGet, "/guarantees/"+g.ID.String()+"/summary.pdf", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = srv.do(t, http.MethodGet, "/guarantees/"+g.ID.String()+"/document", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
