package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"chat-quiz-engine/internal/domain"
	"chat-quiz-engine/internal/engine"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler bridges websocket clients and the quiz engine: inbound frames
// become engine events, engine effects become outbound frames. It is the
// in-repo stand-in for the chat-platform transport.
type Handler struct {
	manager  *engine.Manager
	upgrader websocket.Upgrader
}

func NewHandler(manager *engine.Manager) *Handler {
	return &Handler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Mode   string `json:"mode"`
	BankID string `json:"bankId"`
}

type answerPayload struct {
	Text string `json:"text"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the engine.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chatId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if chatID == "" {
		http.Error(w, "missing chatId", http.StatusBadRequest)
		return
	}
	if userID == "" {
		userID = uuid.NewString()
	}
	if displayName == "" {
		displayName = "Player"
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan any, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var (
		cancelSub func()
		pumpDone  chan struct{}
	)

	// subscribe pumps engine effects for the chat into the send channel.
	// Idempotent: a second call while a subscription is live is a no-op.
	subscribe := func() {
		if cancelSub != nil {
			return
		}
		updates, cancel, err := h.manager.Subscribe(chatID)
		if err != nil {
			return
		}
		cancelSub = cancel
		done := make(chan struct{})
		pumpDone = done
		go func() {
			defer close(done)
			for {
				select {
				case eff, ok := <-updates:
					if !ok {
						return
					}
					select {
					case send <- eff:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
	}

	// A client joining a chat with a quiz already running starts receiving
	// effects right away.
	subscribe()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid start payload")
				continue
			}
			if payload.BankID == "" {
				payload.BankID = "general"
			}
			if err := h.manager.Start(r.Context(), chatID, domain.Mode(payload.Mode), payload.BankID); err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[startPayload]{Type: "started", Payload: payload}
			subscribe()
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid answer payload")
				continue
			}
			if err := h.manager.Answer(chatID, userID, displayName, payload.Text, time.Now()); err != nil {
				send <- errMsg(err.Error())
			}
		case "skip":
			if err := h.manager.Skip(chatID); err != nil {
				send <- errMsg(err.Error())
			}
		case "stop":
			if err := h.manager.Stop(chatID); err != nil {
				send <- errMsg(err.Error())
			}
		case "scores":
			snap, err := h.manager.Scores(chatID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[domain.Snapshot]{Type: "scores", Payload: snap}
		case "hint":
			teaser, err := h.manager.CurrentHint(chatID, userID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[string]{Type: "hint", Payload: teaser}
		case "splitTeams":
			teams, err := h.manager.SplitTeams(chatID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[map[string][]string]{Type: "teams", Payload: teams}
		case "teams":
			teams, err := h.manager.Teams(chatID)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			send <- outboundMessage[map[string][]string]{Type: "teams", Payload: teams}
		default:
			send <- errMsg("unsupported message type")
		}
	}

	// The pump must be fully stopped before send closes; a racing effect
	// would otherwise land on a closed channel.
	close(closeSignals)
	if cancelSub != nil {
		cancelSub()
		<-pumpDone
	}
	close(send)
	<-writerDone
}

func errMsg(message string) outboundMessage[errorPayload] {
	return outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: message}}
}
