// Package web hosts a store behind HTTP: a websocket feed of full-collection
// snapshots plus single-document operation endpoints. The server is a dumb
// document host; join/leave/annotate logic stays in the client, mirroring
// how the hosted collection is consumed.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gearbag/internal/model"
	"gearbag/internal/store"
)

// Wire messages shared by server and remote client.

type opRequest struct {
	Op     string       `json:"op"`
	Item   *model.Item  `json:"item,omitempty"`
	Key    string       `json:"key,omitempty"`
	ItemID string       `json:"itemId,omitempty"`
	UserID string       `json:"userId,omitempty"`
	Delta  int          `json:"delta,omitempty"`
	Text   string       `json:"text"`
	Event  *model.Event `json:"event,omitempty"`
}

type opResponse struct {
	Item    *model.Item `json:"item,omitempty"`
	Created bool        `json:"created,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type feedMsg struct {
	Type  string       `json:"type"` // "snapshot" or "error"
	Items []model.Item `json:"items"`
	Error string       `json:"error,omitempty"`
}

type Server struct {
	st       store.Store
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewServer(st store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		st:  st,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				// Basic same-origin check; good enough for a trusted LAN host.
				host := strings.TrimSpace(r.Host)
				return strings.Contains(origin, "://"+host)
			},
		},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /v1/items", s.handleItems)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("POST /v1/ops", s.handleOp)
	mux.HandleFunc("GET /v1/feed", s.handleFeed)
	return mux
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if id := strings.TrimSpace(q.Get("id")); id != "" {
		it, ok, err := s.st.Get(ctx, id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, []model.Item{})
			return
		}
		writeJSON(w, http.StatusOK, []model.Item{it})
		return
	}
	if name := q.Get("name"); name != "" {
		items, err := s.st.QueryByName(ctx, name)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, emptyAsSlice(items))
		return
	}

	items, err := s.st.Items(ctx)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyAsSlice(items))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, opResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}
	evs, err := s.st.Events(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if evs == nil {
		evs = []model.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleOp(w http.ResponseWriter, r *http.Request) {
	var req opRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, opResponse{Error: "malformed request"})
		return
	}
	ctx := r.Context()

	switch req.Op {
	case "create":
		if req.Item == nil {
			writeJSON(w, http.StatusBadRequest, opResponse{Error: "create requires item"})
			return
		}
		created, err := s.st.Create(ctx, *req.Item)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, opResponse{Item: &created, Created: true})

	case "createWithKey":
		if req.Item == nil {
			writeJSON(w, http.StatusBadRequest, opResponse{Error: "createWithKey requires item"})
			return
		}
		it, created, err := s.st.CreateWithKey(ctx, req.Key, *req.Item)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, opResponse{Item: &it, Created: created})

	case "incrementOwners":
		s.writeOpResult(w, s.st.IncrementOwners(ctx, req.ItemID, req.Delta))
	case "addOwner":
		s.writeOpResult(w, s.st.AddOwner(ctx, req.ItemID, req.UserID))
	case "removeOwner":
		s.writeOpResult(w, s.st.RemoveOwner(ctx, req.ItemID, req.UserID))
	case "setNote":
		s.writeOpResult(w, s.st.SetNote(ctx, req.ItemID, req.UserID, req.Text))
	case "appendEvent":
		if req.Event == nil {
			writeJSON(w, http.StatusBadRequest, opResponse{Error: "appendEvent requires event"})
			return
		}
		s.writeOpResult(w, s.st.AppendEvent(ctx, *req.Event))

	default:
		writeJSON(w, http.StatusBadRequest, opResponse{Error: fmt.Sprintf("unknown op %q", req.Op)})
	}
}

func (s *Server) writeOpResult(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	s.log.Error("store operation failed", zap.Error(err))
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrUnavailable) {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, opResponse{Error: err.Error()})
}

// handleFeed streams full snapshots over a websocket until the client goes
// away. A store-side failure is sent as a terminal "error" message, distinct
// from an empty snapshot.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
		return
	}
	defer conn.Close()

	ch, cancel, err := s.st.Subscribe(r.Context())
	if err != nil {
		_ = conn.WriteJSON(feedMsg{Type: "error", Error: err.Error()})
		return
	}
	defer cancel()

	// Reader loop only to detect the client closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			msg := feedMsg{Type: "snapshot", Items: emptyAsSlice(snap.Items)}
			if snap.Err != nil {
				msg = feedMsg{Type: "error", Error: snap.Err.Error()}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				s.log.Debug("feed write failed", zap.Error(err))
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func emptyAsSlice(items []model.Item) []model.Item {
	if items == nil {
		return []model.Item{}
	}
	return items
}
