package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-sync/internal/model"
	"github.com/BuzzLyutic/todo-sync/internal/notify"
	"github.com/BuzzLyutic/todo-sync/internal/repo"
	"github.com/BuzzLyutic/todo-sync/internal/service"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Broadcast(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func setupHandler(t *testing.T) (*TodoHandler, *recordingNotifier) {
	t.Helper()

	todoService := service.NewTodoService(repo.NewMemoryRepo())
	notifier := &recordingNotifier{}
	return NewTodoHandler(todoService, zap.NewNop(), notifier), notifier
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func createTodo(t *testing.T, handler *TodoHandler, todo model.Todo) model.Todo {
	t.Helper()

	body, _ := json.Marshal(todo)
	req := httptest.NewRequest(http.MethodPost, "/todos", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	handler.Create(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.Todo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	return created
}

func TestTodoHandler_Create(t *testing.T) {
	handler, notifier := setupHandler(t)

	tests := []struct {
		name          string
		body          string
		idempKey      string
		wantCode      int
		checkResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:     "successful creation",
			body:     `{"title":"Buy milk","completed":false,"priority":"Medium","due_date":"2025-05-01"}`,
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var todo model.Todo
				require.NoError(t, json.NewDecoder(w.Body).Decode(&todo))
				assert.NotZero(t, todo.ID)
				assert.Equal(t, "Buy milk", todo.Title)
				assert.Equal(t, model.PriorityMedium, todo.Priority)
				require.NotNil(t, todo.DueDate)
				assert.Equal(t, "2025-05-01", todo.DueDate.String())
				assert.Equal(t, fmt.Sprintf("/todos/%d", todo.ID), w.Header().Get("Location"))
			},
		},
		{
			name:     "empty due date is treated as absent",
			body:     `{"title":"No deadline","completed":false,"priority":"Low","due_date":""}`,
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.NotContains(t, w.Body.String(), "due_date")
				var todo model.Todo
				require.NoError(t, json.NewDecoder(w.Body).Decode(&todo))
				assert.Nil(t, todo.DueDate)
			},
		},
		{
			name:     "unparsable due date",
			body:     `{"title":"x","priority":"Low","due_date":"next week"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "empty body",
			body:     "",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			body:     `{"title":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "validation error",
			body:     `{"title":"","priority":"Low"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown priority",
			body:     `{"title":"x","priority":"Someday"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "with idempotency key",
			body:     `{"title":"Once","priority":"High"}`,
			idempKey: "test-key-123",
			wantCode: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				req := httptest.NewRequest(http.MethodPost, "/todos", strings.NewReader(`{"title":"Once","priority":"High"}`))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Idempotency-Key", "test-key-123")

				w2 := httptest.NewRecorder()
				handler.Create(w2, req)

				var todo1, todo2 model.Todo
				json.NewDecoder(w.Body).Decode(&todo1)
				json.NewDecoder(w2.Body).Decode(&todo2)
				assert.Equal(t, todo1.ID, todo2.ID, "should return same todo")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/todos", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.idempKey != "" {
				req.Header.Set("Idempotency-Key", tt.idempKey)
			}

			w := httptest.NewRecorder()
			handler.Create(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
		})
	}

	assert.GreaterOrEqual(t, notifier.count(), 2)
}

func TestTodoHandler_List(t *testing.T) {
	handler, _ := setupHandler(t)

	for i := 0; i < 3; i++ {
		createTodo(t, handler, model.Todo{Title: fmt.Sprintf("Todo %d", i), Priority: model.PriorityLow})
	}

	req := httptest.NewRequest(http.MethodGet, "/todos", nil)
	w := httptest.NewRecorder()
	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var todos []model.Todo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&todos))
	require.Len(t, todos, 3)
	for i, todo := range todos {
		assert.Equal(t, fmt.Sprintf("Todo %d", i), todo.Title)
	}
}

func TestTodoHandler_ListEmptyIsArray(t *testing.T) {
	handler, _ := setupHandler(t)

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/todos", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestTodoHandler_SetCompleted(t *testing.T) {
	handler, notifier := setupHandler(t)
	created := createTodo(t, handler, model.Todo{Title: "Walk dog", Priority: model.PriorityHigh})
	before := notifier.count()

	t.Run("successful patch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/todos/x", strings.NewReader(`{"completed":true}`))
		req = withID(req, fmt.Sprintf("%d", created.ID))

		w := httptest.NewRecorder()
		handler.SetCompleted(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var updated model.Todo
		require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
		assert.True(t, updated.Completed)
		assert.Equal(t, "Walk dog", updated.Title)
		assert.Equal(t, before+1, notifier.count())
	})

	t.Run("missing completed", func(t *testing.T) {
		req := withID(httptest.NewRequest(http.MethodPatch, "/todos/x", strings.NewReader(`{}`)), fmt.Sprintf("%d", created.ID))
		w := httptest.NewRecorder()
		handler.SetCompleted(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		req := withID(httptest.NewRequest(http.MethodPatch, "/todos/x", strings.NewReader(`{"completed":true}`)), "99999")
		w := httptest.NewRecorder()
		handler.SetCompleted(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := withID(httptest.NewRequest(http.MethodPatch, "/todos/x", strings.NewReader(`{"completed":true}`)), "abc")
		w := httptest.NewRecorder()
		handler.SetCompleted(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTodoHandler_Replace(t *testing.T) {
	handler, _ := setupHandler(t)
	created := createTodo(t, handler, model.Todo{Title: "Original", Priority: model.PriorityLow})
	id := fmt.Sprintf("%d", created.ID)

	t.Run("successful replace", func(t *testing.T) {
		body := fmt.Sprintf(`{"id":%d,"title":"Updated","completed":false,"priority":"High"}`, created.ID)
		req := withID(httptest.NewRequest(http.MethodPut, "/todos/"+id, strings.NewReader(body)), id)

		w := httptest.NewRecorder()
		handler.Replace(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var updated model.Todo
		require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
		assert.Equal(t, "Updated", updated.Title)
		assert.Equal(t, model.PriorityHigh, updated.Priority)
	})

	t.Run("due date survives a replace without one", func(t *testing.T) {
		due := model.NewDate(2025, 7, 4)
		dated := createTodo(t, handler, model.Todo{Title: "Fireworks", Priority: model.PriorityLow, DueDate: &due})
		datedID := fmt.Sprintf("%d", dated.ID)

		body := fmt.Sprintf(`{"id":%d,"title":"Big fireworks","completed":false,"priority":"High"}`, dated.ID)
		req := withID(httptest.NewRequest(http.MethodPut, "/todos/"+datedID, strings.NewReader(body)), datedID)
		w := httptest.NewRecorder()
		handler.Replace(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var updated model.Todo
		require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
		require.NotNil(t, updated.DueDate)
		assert.Equal(t, "2025-07-04", updated.DueDate.String())

		body = fmt.Sprintf(`{"id":%d,"title":"Big fireworks","completed":false,"priority":"High","due_date":""}`, dated.ID)
		req = withID(httptest.NewRequest(http.MethodPut, "/todos/"+datedID, strings.NewReader(body)), datedID)
		w = httptest.NewRecorder()
		handler.Replace(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var cleared model.Todo
		require.NoError(t, json.NewDecoder(w.Body).Decode(&cleared))
		assert.Nil(t, cleared.DueDate)
	})

	t.Run("id mismatch", func(t *testing.T) {
		body := fmt.Sprintf(`{"id":%d,"title":"Updated","completed":false,"priority":"High"}`, created.ID+1)
		req := withID(httptest.NewRequest(http.MethodPut, "/todos/"+id, strings.NewReader(body)), id)

		w := httptest.NewRecorder()
		handler.Replace(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		req := withID(httptest.NewRequest(http.MethodPut, "/todos/99999", strings.NewReader(`{"title":"x","priority":"Low"}`)), "99999")

		w := httptest.NewRecorder()
		handler.Replace(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTodoHandler_DeleteCompleted(t *testing.T) {
	handler, _ := setupHandler(t)
	done := createTodo(t, handler, model.Todo{Title: "Done", Priority: model.PriorityLow})
	createTodo(t, handler, model.Todo{Title: "Open", Priority: model.PriorityLow})

	req := withID(httptest.NewRequest(http.MethodPatch, "/todos/x", strings.NewReader(`{"completed":true}`)), fmt.Sprintf("%d", done.ID))
	handler.SetCompleted(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	handler.DeleteCompleted(w, httptest.NewRequest(http.MethodDelete, "/todos", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/todos", nil))

	var todos []model.Todo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&todos))
	require.Len(t, todos, 1)
	assert.Equal(t, "Open", todos[0].Title)
}

func TestTodoHandler_Stats(t *testing.T) {
	handler, _ := setupHandler(t)
	createTodo(t, handler, model.Todo{Title: "a", Priority: model.PriorityLow})
	createTodo(t, handler, model.Todo{Title: "b", Priority: model.PriorityHigh})

	w := httptest.NewRecorder()
	handler.Stats(w, httptest.NewRequest(http.MethodGet, "/todos/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var stats model.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByPriority[model.PriorityHigh])
}

func TestTodoHandler_Routes(t *testing.T) {
	handler, _ := setupHandler(t)
	hub := notify.NewHub(zap.NewNop(), []string{"*"})
	defer hub.Close()

	r := chi.NewRouter()
	handler.Routes(r, hub)

	server := httptest.NewServer(r)
	defer server.Close()

	resp, err := http.Post(server.URL+"/todos", "application/json", strings.NewReader(`{"title":"Routed","completed":false,"priority":"Low"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(server.URL + "/todos")
	require.NoError(t, err)
	var todos []model.Todo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&todos))
	resp.Body.Close()
	require.Len(t, todos, 1)

	req, _ := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/todos/%d", server.URL, todos[0].ID), strings.NewReader(`{"completed":true}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodDelete, server.URL+"/todos", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(server.URL + "/todos/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
