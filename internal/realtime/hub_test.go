package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncpad/syncpad/internal/document"
	"github.com/syncpad/syncpad/internal/document/repository"
	"github.com/syncpad/syncpad/internal/document/service"
)

// Unit tests drive the hub's event handler directly, one event at a time,
// mirroring the single-consumer queue: deterministic, no goroutines.

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	svc := service.New(repository.NewMemoryStore(), nil, zap.NewNop())
	t.Cleanup(svc.Close)
	return NewHub(svc, zap.NewNop())
}

func connect(h *Hub) *Client {
	c := NewClient(h, nil, zap.NewNop())
	h.handleEvent(event{kind: evRegister, client: c})
	return c
}

func disconnect(h *Hub, c *Client) {
	h.handleEvent(event{kind: evUnregister, client: c})
}

func sendFrame(h *Hub, c *Client, typ string, data any) {
	h.handleEvent(event{kind: evFrame, client: c, frame: newFrame(typ, data)})
}

// drain empties the client's outbound queue and decodes each frame.
func drain(t *testing.T, c *Client) []Frame {
	t.Helper()
	var out []Frame
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			var f Frame
			require.NoError(t, json.Unmarshal(msg, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func framesOfType(frames []Frame, typ string) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func decodeData(t *testing.T, f Frame, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(f.Data, v))
}

func createDoc(t *testing.T, h *Hub, c *Client, title string) string {
	t.Helper()
	sendFrame(h, c, TypeCreateDocument, createDocumentData{Title: title})
	list := h.svc.List()
	require.NotEmpty(t, list)
	return list[0].ID
}

func TestConnectSendsListAndPresence(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)

	frames := drain(t, a)
	require.Len(t, framesOfType(frames, TypeDocumentsList), 1)

	presence := framesOfType(frames, TypeActiveUsers)
	require.Len(t, presence, 1)
	var users []string
	decodeData(t, presence[0], &users)
	require.Equal(t, []string{a.ID}, users)

	// a second connection: both see the updated roster
	b := connect(h)
	var fromA, fromB []string
	decodeData(t, framesOfType(drain(t, a), TypeActiveUsers)[0], &fromA)
	decodeData(t, framesOfType(drain(t, b), TypeActiveUsers)[0], &fromB)
	require.ElementsMatch(t, []string{a.ID, b.ID}, fromA)
	require.Equal(t, fromA, fromB)
}

func TestCreateThenGetDocument(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	drain(t, a)

	id := createDoc(t, h, a, "Notes")
	require.Equal(t, "doc_1", id)

	// creation is announced globally with the full list, newest first
	lists := framesOfType(drain(t, a), TypeDocumentsList)
	require.Len(t, lists, 1)
	var docs []document.Document
	decodeData(t, lists[0], &docs)
	require.Len(t, docs, 1)
	require.Equal(t, "Notes", docs[0].Title)

	sendFrame(h, a, TypeGetDocument, docRefData{DocID: id})
	content := framesOfType(drain(t, a), TypeDocumentContent)
	require.Len(t, content, 1)
	var got DocumentContentData
	decodeData(t, content[0], &got)
	require.Equal(t, "Notes", got.Title)
	require.Empty(t, got.Content)
}

func TestCreateDocumentDefaultTitle(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	drain(t, a)

	sendFrame(h, a, TypeCreateDocument, nil)
	list := h.svc.List()
	require.Len(t, list, 1)
	require.Equal(t, document.DefaultTitle, list[0].Title)
}

func TestUpdateContentRoomScoped(t *testing.T) {
	h := newTestHub(t)
	x := connect(h)
	y := connect(h)
	z := connect(h)

	id := createDoc(t, h, x, "Notes")
	sendFrame(h, x, TypeJoinDocument, joinDocumentData{DocID: id})
	sendFrame(h, y, TypeJoinDocument, joinDocumentData{DocID: id})
	drain(t, x)
	drain(t, y)
	drain(t, z)

	sendFrame(h, x, TypeUpdateContent, updateContentData{DocID: id, Content: "Hello"})

	// both room members receive the update, the originator included
	for _, c := range []*Client{x, y} {
		updates := framesOfType(drain(t, c), TypeContentUpdate)
		require.Len(t, updates, 1)
		var u ContentUpdateData
		decodeData(t, updates[0], &u)
		require.Equal(t, "Hello", u.Content)
	}

	// z is connected but outside the room: nothing from this event
	require.Empty(t, drain(t, z))

	doc, err := h.svc.Get(id)
	require.NoError(t, err)
	require.Equal(t, "Hello", doc.Content)
}

func TestUpdateContentLastWriteWins(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	b := connect(h)

	id := createDoc(t, h, a, "t")
	sendFrame(h, a, TypeJoinDocument, joinDocumentData{DocID: id})
	sendFrame(h, b, TypeJoinDocument, joinDocumentData{DocID: id})

	sendFrame(h, a, TypeUpdateContent, updateContentData{DocID: id, Content: "E1"})
	sendFrame(h, b, TypeUpdateContent, updateContentData{DocID: id, Content: "E2"})

	doc, err := h.svc.Get(id)
	require.NoError(t, err)
	require.Equal(t, "E2", doc.Content, "E1 must be fully overwritten, never merged")
}

func TestUpdateTitleBroadcastsGlobally(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	b := connect(h) // never joins any room

	id := createDoc(t, h, a, "old")
	drain(t, a)
	drain(t, b)

	sendFrame(h, a, TypeUpdateTitle, updateTitleData{DocID: id, Title: "new"})

	// title changes reach every connection: the list everyone renders shows titles
	for _, c := range []*Client{a, b} {
		lists := framesOfType(drain(t, c), TypeDocumentsList)
		require.Len(t, lists, 1)
		var docs []document.Document
		decodeData(t, lists[0], &docs)
		require.Equal(t, "new", docs[0].Title)
	}
}

func TestDeleteDocumentEvictsRoom(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	b := connect(h)

	id := createDoc(t, h, a, "doomed")
	sendFrame(h, a, TypeJoinDocument, joinDocumentData{DocID: id})
	sendFrame(h, b, TypeJoinDocument, joinDocumentData{DocID: id})
	drain(t, a)
	drain(t, b)

	sendFrame(h, a, TypeDeleteDocument, docRefData{DocID: id})

	_, err := h.svc.Get(id)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.Empty(t, h.membersOf(id))
	require.Empty(t, h.roomByConn)

	// both receive the shrunken list; a later edit against the dead room fails
	require.Len(t, framesOfType(drain(t, b), TypeDocumentsList), 1)
	drain(t, a)

	sendFrame(h, a, TypeUpdateContent, updateContentData{DocID: id, Content: "x"})
	errs := framesOfType(drain(t, a), TypeError)
	require.Len(t, errs, 1)
	var e ErrorData
	decodeData(t, errs[0], &e)
	require.Equal(t, CodeNotFound, e.Code)
	require.Equal(t, id, e.DocID)
}

func TestDeleteDocumentTwice(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	id := createDoc(t, h, a, "t")
	drain(t, a)

	sendFrame(h, a, TypeDeleteDocument, docRefData{DocID: id})
	sendFrame(h, a, TypeDeleteDocument, docRefData{DocID: id})

	frames := drain(t, a)
	require.Len(t, framesOfType(frames, TypeDocumentsList), 1)
	require.Len(t, framesOfType(frames, TypeError), 1, "second delete is a contained failure, not a crash")
}

func TestJoinMissingDocumentRejected(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	drain(t, a)

	sendFrame(h, a, TypeJoinDocument, joinDocumentData{DocID: "doc_404"})

	errs := framesOfType(drain(t, a), TypeError)
	require.Len(t, errs, 1)
	var e ErrorData
	decodeData(t, errs[0], &e)
	require.Equal(t, CodeNotFound, e.Code)
	require.Empty(t, h.roomByConn, "failed join must not change membership")
}

func TestJoinSwitchesRooms(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)

	d1 := createDoc(t, h, a, "one")
	d2 := createDoc(t, h, a, "two")

	sendFrame(h, a, TypeJoinDocument, joinDocumentData{DocID: d1})
	require.Equal(t, []string{a.ID}, h.membersOf(d1))

	sendFrame(h, a, TypeJoinDocument, joinDocumentData{DocID: d2})
	require.Empty(t, h.membersOf(d1), "joining a new room leaves the previous one")
	require.Equal(t, []string{a.ID}, h.membersOf(d2))
	require.Equal(t, d2, h.roomByConn[a.ID])

	// collaborator rosters follow membership on both documents
	doc1, err := h.svc.Get(d1)
	require.NoError(t, err)
	require.Empty(t, doc1.Collaborators)
	doc2, err := h.svc.Get(d2)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID}, doc2.Collaborators)
}

func TestDisconnectCleansUpEverything(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	b := connect(h)

	id := createDoc(t, h, a, "t")
	sendFrame(h, a, TypeJoinDocument, joinDocumentData{DocID: id})
	drain(t, a)
	drain(t, b)

	disconnect(h, a)

	require.NotContains(t, h.clients, a.ID)
	require.Empty(t, h.membersOf(id), "disconnect leaves the room even without an explicit leave")

	doc, err := h.svc.Get(id)
	require.NoError(t, err)
	require.Empty(t, doc.Collaborators)

	var users []string
	decodeData(t, framesOfType(drain(t, b), TypeActiveUsers)[0], &users)
	require.Equal(t, []string{b.ID}, users)

	// a second unregister for the same client is a silent no-op
	disconnect(h, a)
	require.Empty(t, drain(t, b))
}

func TestGetMissingDocumentOnlyRequesterSees(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	b := connect(h)
	drain(t, a)
	drain(t, b)

	sendFrame(h, a, TypeGetDocument, docRefData{DocID: "doc_404"})

	require.Len(t, framesOfType(drain(t, a), TypeError), 1)
	require.Empty(t, drain(t, b))
}

func TestUnknownFrameType(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	drain(t, a)

	sendFrame(h, a, "fly", nil)

	errs := framesOfType(drain(t, a), TypeError)
	require.Len(t, errs, 1)
	var e ErrorData
	decodeData(t, errs[0], &e)
	require.Equal(t, CodeUnknownType, e.Code)
}

func TestRequestDocumentsUnicast(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	b := connect(h)
	createDoc(t, h, a, "first")
	createDoc(t, h, a, "second")
	drain(t, a)
	drain(t, b)

	sendFrame(h, a, TypeRequestDocuments, nil)

	lists := framesOfType(drain(t, a), TypeDocumentsList)
	require.Len(t, lists, 1)
	var docs []document.Document
	decodeData(t, lists[0], &docs)
	require.Equal(t, "second", docs[0].Title)
	require.Equal(t, "first", docs[1].Title)

	require.Empty(t, drain(t, b), "requestDocuments answers only the requester")
}

func TestSlowClientSkippedSilently(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	slow := connect(h)
	drain(t, a)

	// saturate the slow client's outbound buffer
	for i := 0; i < sendBuffer+8; i++ {
		slow.deliver([]byte("{}"))
	}

	createDoc(t, h, a, "t")

	lists := framesOfType(drain(t, a), TypeDocumentsList)
	require.Len(t, lists, 1, "healthy clients still receive the broadcast")
}

func TestMalformedPayloadIsPermissive(t *testing.T) {
	h := newTestHub(t)
	a := connect(h)
	drain(t, a)

	h.handleEvent(event{kind: evFrame, client: a, frame: Frame{
		Type: TypeCreateDocument,
		Data: json.RawMessage(`"not an object"`),
	}})

	// fields default: document created with placeholder title
	list := h.svc.List()
	require.Len(t, list, 1)
	require.Equal(t, document.DefaultTitle, list[0].Title)
}
