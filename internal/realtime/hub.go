package realtime

import (
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/syncpad/syncpad/internal/document/service"
	"github.com/syncpad/syncpad/pkg/metrics"
)

type eventKind int

const (
	evRegister eventKind = iota
	evUnregister
	evFrame
)

type event struct {
	kind   eventKind
	client *Client
	frame  Frame
}

// Hub is the synchronization core. It owns the connection registry, the
// connection→room mapping, and the fan-out of every outbound frame. All
// state is mutated by a single goroutine (Run) consuming one event queue,
// so events from one connection are handled in arrival order and no handler
// ever observes partially-applied state. Document content itself lives in
// the injected service, not here.
type Hub struct {
	svc *service.Service
	log *zap.Logger

	events chan event
	quit   chan struct{}

	// owned exclusively by the Run goroutine
	clients    map[string]*Client
	rooms      map[string]map[string]*Client
	roomByConn map[string]string
}

func NewHub(svc *service.Service, log *zap.Logger) *Hub {
	return &Hub{
		svc:        svc,
		log:        log,
		events:     make(chan event, 512),
		quit:       make(chan struct{}),
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		roomByConn: make(map[string]string),
	}
}

// Run consumes the event queue until Stop. It is the only goroutine allowed
// to touch hub state.
func (h *Hub) Run() {
	for {
		select {
		case ev := <-h.events:
			h.handleEvent(ev)
		case <-h.quit:
			return
		}
	}
}

func (h *Hub) Stop() { close(h.quit) }

// Register enqueues a connect event for the given client.
func (h *Hub) Register(c *Client) { h.push(event{kind: evRegister, client: c}) }

// Unregister enqueues a disconnect event. Safe to call more than once for
// the same client.
func (h *Hub) Unregister(c *Client) { h.push(event{kind: evUnregister, client: c}) }

// Inbound enqueues a frame read from the client's socket.
func (h *Hub) Inbound(c *Client, f Frame) { h.push(event{kind: evFrame, client: c, frame: f}) }

func (h *Hub) push(ev event) {
	select {
	case h.events <- ev:
	case <-h.quit:
	}
}

func (h *Hub) handleEvent(ev event) {
	switch ev.kind {
	case evRegister:
		h.addClient(ev.client)
	case evUnregister:
		h.removeClient(ev.client)
	case evFrame:
		h.handleFrame(ev.client, ev.frame)
	}
}

func (h *Hub) addClient(c *Client) {
	h.clients[c.ID] = c
	metrics.ConnectionsActive.Inc()
	h.log.Info("client connected", zap.String("connId", c.ID))

	h.unicast(c, newFrame(TypeDocumentsList, h.svc.List()))
	h.broadcastPresence()
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		// disconnect already processed; a second unregister is normal
		return
	}
	if docID := h.leaveRoom(c); docID != "" {
		h.syncCollaborators(docID)
	}
	delete(h.clients, c.ID)
	close(c.send)
	metrics.ConnectionsActive.Dec()
	h.log.Info("client disconnected", zap.String("connId", c.ID))

	h.broadcastPresence()
}

func (h *Hub) handleFrame(c *Client, f Frame) {
	metrics.EventsProcessed.WithLabelValues(f.Type).Inc()

	switch f.Type {
	case TypeRequestDocuments:
		h.unicast(c, newFrame(TypeDocumentsList, h.svc.List()))

	case TypeCreateDocument:
		var d createDocumentData
		h.decode(f.Data, &d)
		doc := h.svc.Create(d.Title, "")
		h.log.Info("document created", zap.String("docId", doc.ID), zap.String("title", doc.Title))
		h.broadcastGlobal(newFrame(TypeDocumentsList, h.svc.List()))

	case TypeJoinDocument:
		var d joinDocumentData
		h.decode(f.Data, &d)
		h.handleJoin(c, d.DocID)

	case TypeGetDocument:
		var d docRefData
		h.decode(f.Data, &d)
		doc, err := h.svc.Get(d.DocID)
		if err != nil {
			h.unicast(c, newFrame(TypeError, ErrorData{Code: CodeNotFound, DocID: d.DocID}))
			return
		}
		h.unicast(c, newFrame(TypeDocumentContent, DocumentContentData{Title: doc.Title, Content: doc.Content}))

	case TypeUpdateContent:
		var d updateContentData
		h.decode(f.Data, &d)
		doc, err := h.svc.UpdateContent(d.DocID, d.Content)
		if err != nil {
			h.unicast(c, newFrame(TypeError, ErrorData{Code: CodeNotFound, DocID: d.DocID}))
			return
		}
		h.broadcastRoom(d.DocID, newFrame(TypeContentUpdate, ContentUpdateData{Content: doc.Content}))

	case TypeUpdateTitle:
		var d updateTitleData
		h.decode(f.Data, &d)
		if _, err := h.svc.UpdateTitle(d.DocID, d.Title); err != nil {
			h.unicast(c, newFrame(TypeError, ErrorData{Code: CodeNotFound, DocID: d.DocID}))
			return
		}
		h.broadcastGlobal(newFrame(TypeDocumentsList, h.svc.List()))

	case TypeDeleteDocument:
		var d docRefData
		h.decode(f.Data, &d)
		if err := h.svc.Delete(d.DocID); err != nil {
			h.unicast(c, newFrame(TypeError, ErrorData{Code: CodeNotFound, DocID: d.DocID}))
			return
		}
		h.evictRoom(d.DocID)
		h.log.Info("document deleted", zap.String("docId", d.DocID))
		h.broadcastGlobal(newFrame(TypeDocumentsList, h.svc.List()))

	default:
		h.unicast(c, newFrame(TypeError, ErrorData{Code: CodeUnknownType}))
	}
}

// handleJoin moves the connection into the document's room. A connection is
// in at most one room: joining a new room leaves the previous one first.
// Joining a missing or deleted document fails and leaves membership alone.
func (h *Hub) handleJoin(c *Client, docID string) {
	if _, err := h.svc.Get(docID); err != nil {
		h.unicast(c, newFrame(TypeError, ErrorData{Code: CodeNotFound, DocID: docID}))
		return
	}
	if prev := h.leaveRoom(c); prev != "" && prev != docID {
		h.syncCollaborators(prev)
	}
	members, ok := h.rooms[docID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[docID] = members
	}
	members[c.ID] = c
	h.roomByConn[c.ID] = docID
	h.syncCollaborators(docID)

	h.broadcastPresence()
}

// leaveRoom removes the connection from its current room, if any, and
// returns the room's document id. No-op for roomless connections.
func (h *Hub) leaveRoom(c *Client) string {
	docID, ok := h.roomByConn[c.ID]
	if !ok {
		return ""
	}
	delete(h.roomByConn, c.ID)
	if members, ok := h.rooms[docID]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, docID)
		}
	}
	return docID
}

// evictRoom clears all membership for a deleted document. Presence is
// untouched: the connections stay online, just roomless.
func (h *Hub) evictRoom(docID string) {
	for connID := range h.rooms[docID] {
		delete(h.roomByConn, connID)
	}
	delete(h.rooms, docID)
	h.syncCollaborators(docID)
}

// syncCollaborators writes the room's member list onto the document. A
// missing document (deleted while members were present) is fine.
func (h *Hub) syncCollaborators(docID string) {
	_ = h.svc.SetCollaborators(docID, h.membersOf(docID))
}

func (h *Hub) membersOf(docID string) []string {
	members := h.rooms[docID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) activeUsers() []string {
	out := make([]string, 0, len(h.clients))
	for id := range h.clients {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) broadcastPresence() {
	h.broadcastGlobal(newFrame(TypeActiveUsers, h.activeUsers()))
}

func (h *Hub) unicast(c *Client, f Frame) {
	metrics.BroadcastsSent.WithLabelValues("unicast").Inc()
	h.send(c, mustMarshal(f))
}

// broadcastRoom delivers to every member of the room, including the
// originator. The echo is how every open view of a document converges on
// one canonical value.
func (h *Hub) broadcastRoom(docID string, f Frame) {
	metrics.BroadcastsSent.WithLabelValues("room").Inc()
	msg := mustMarshal(f)
	for _, c := range h.rooms[docID] {
		h.send(c, msg)
	}
}

func (h *Hub) broadcastGlobal(f Frame) {
	metrics.BroadcastsSent.WithLabelValues("global").Inc()
	msg := mustMarshal(f)
	for _, c := range h.clients {
		h.send(c, msg)
	}
}

// send is fire-and-forget: an unreachable or saturated client is skipped,
// never an error. Its own pumps will tear it down.
func (h *Hub) send(c *Client, msg []byte) {
	if !c.deliver(msg) {
		h.log.Debug("dropping frame for slow client", zap.String("connId", c.ID))
	}
}

// decode is deliberately permissive: absent or malformed payload fields
// stay at their zero values.
func (h *Hub) decode(data json.RawMessage, v any) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		h.log.Debug("ignoring malformed frame data", zap.Error(err))
	}
}

func mustMarshal(f Frame) []byte {
	b, _ := json.Marshal(f)
	return b
}
