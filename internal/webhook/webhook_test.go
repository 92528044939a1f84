package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/store"
	"github.com/ashureev/uex-relay/internal/store/storetest"
	"github.com/ashureev/uex-relay/internal/surface"
	surfacemock "github.com/ashureev/uex-relay/internal/surface/mock"
	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var site = surface.Links{SiteURL: "https://uexcorp.space"}

type sink struct {
	mu  sync.Mutex
	got map[string][]surface.Message
	err error
}

func newSink() *sink { return &sink{got: make(map[string][]surface.Message)} }

func (s *sink) Deliver(_ context.Context, threadID string, msg surface.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got[threadID] = append(s.got[threadID], msg)
	return nil
}

func (s *sink) CreatePrivateThread(context.Context, string) (string, error) { return "", nil }

func (s *sink) ThreadExists(context.Context, string) (bool, error) { return true, nil }

func (s *sink) messages(threadID string) []surface.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]surface.Message(nil), s.got[threadID]...)
}

func putUser(t *testing.T, st store.SessionStore, userID, threadID, username string) {
	t.Helper()
	sess := domain.NewSession(userID, threadID, time.Now())
	require.NoError(t, sess.Authenticate("b-"+userID, "s-"+userID, username, time.Now()))
	require.NoError(t, st.PutSession(context.Background(), sess))
}

func TestDecode(t *testing.T) {
	ev, err := Decode("negotiation_started", []byte(`{"hash":"h1","buyer":"B","seller":"S","listing_title":"Cutlass"}`))
	require.NoError(t, err)
	assert.Equal(t, NegotiationStarted{Hash: "h1", Buyer: "B", Seller: "S", ListingTitle: "Cutlass"}, ev)

	ev, err = Decode("negotiation_completed_advertiser", []byte(`{"hash":"h1"}`))
	require.NoError(t, err)
	assert.Equal(t, CompletedByAdvertiser, ev.(NegotiationCompleted).Kind)
	assert.Equal(t, TypeNegotiationCompletedAdvertiser, ev.EventType())

	ev, err = Decode("listing_sold", []byte(`not json`))
	require.NoError(t, err)
	assert.Equal(t, Unknown{Name: "listing_sold", Raw: []byte("not json")}, ev)
}

func TestDecodeInvalid(t *testing.T) {
	for name, tc := range map[string]struct{ typ, body string }{
		"bad json":        {TypeNegotiationStarted, `{`},
		"missing seller":  {TypeNegotiationStarted, `{"hash":"h1","buyer":"B"}`},
		"missing hash":    {TypeUserReply, `{"client_username":"S","message":"hi"}`},
		"completed no id": {TypeNegotiationCompletedClient, `{}`},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(tc.typ, []byte(tc.body))
			assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		})
	}
}

func TestNegotiationCorrelation(t *testing.T) {
	st := storetest.New(t)
	out := newSink()
	r := NewRouter(st, st, out, site)
	ctx := context.Background()

	putUser(t, st, "buyer-chat", "thr_buyer", "B")
	putUser(t, st, "seller-chat", "thr_seller", "S")

	require.NoError(t, r.Route(ctx, "seller-chat", NegotiationStarted{Hash: "H", Buyer: "B", Seller: "S"}))
	started := out.messages("thr_seller")
	require.Len(t, started, 1)
	assert.Equal(t, surface.KindNegotiationStarted, started[0].Kind)
	assert.Equal(t, site.Negotiation("H"), started[0].Link)

	// The seller speaks: the buyer's thread gets it.
	require.NoError(t, r.Route(ctx, "seller-chat", UserReply{Hash: "H", ClientUsername: "S", Message: "hi"}))
	toBuyer := out.messages("thr_buyer")
	require.Len(t, toBuyer, 1)
	assert.Equal(t, "hi", toBuyer[0].Body)
	assert.Equal(t, "S", toBuyer[0].Sender)
	assert.Len(t, out.messages("thr_seller"), 1)

	// The buyer speaks: the route's recipient gets it.
	require.NoError(t, r.Route(ctx, "seller-chat", UserReply{Hash: "H", ClientUsername: "b", Message: "offer"}))
	assert.Len(t, out.messages("thr_seller"), 2)

	require.NoError(t, r.Route(ctx, "seller-chat", NegotiationCompleted{Kind: CompletedByClient, Hash: "H"}))
	link, err := st.GetLink(ctx, "H")
	require.NoError(t, err)
	assert.Nil(t, link)

	err = r.Route(ctx, "seller-chat", UserReply{Hash: "H", ClientUsername: "S", Message: "late"})
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
	assert.Equal(t, http.StatusConflict, domain.HTTPStatus(err))
}

func TestStartedOverwritesLink(t *testing.T) {
	st := storetest.New(t)
	r := NewRouter(st, st, newSink(), site)
	ctx := context.Background()
	putUser(t, st, "u1", "thr_1", "S")

	require.NoError(t, r.Route(ctx, "u1", NegotiationStarted{Hash: "H", Buyer: "B1", Seller: "S"}))
	require.NoError(t, r.Route(ctx, "u1", NegotiationStarted{Hash: "H", Buyer: "B2", Seller: "S"}))

	link, err := st.GetLink(ctx, "H")
	require.NoError(t, err)
	assert.Equal(t, "B2", link.Buyer)
}

func TestStartedWithoutRecipientKeepsLink(t *testing.T) {
	st := storetest.New(t)
	r := NewRouter(st, st, newSink(), site)
	ctx := context.Background()

	err := r.Route(ctx, "ghost", NegotiationStarted{Hash: "H", Buyer: "B", Seller: "S"})
	assert.ErrorIs(t, err, domain.ErrDestinationNotFound)

	link, err := st.GetLink(ctx, "H")
	require.NoError(t, err)
	require.NotNil(t, link)
}

func TestReplyErrors(t *testing.T) {
	st := storetest.New(t)
	out := newSink()
	r := NewRouter(st, st, out, site)
	ctx := context.Background()
	putUser(t, st, "seller-chat", "thr_seller", "S")
	require.NoError(t, st.PutLink(ctx, &domain.NegotiationLink{Hash: "H", Buyer: "B", Seller: "S"}))

	err := r.Route(ctx, "seller-chat", UserReply{Hash: "H", ClientUsername: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)

	// The buyer has no session.
	err = r.Route(ctx, "seller-chat", UserReply{Hash: "H", ClientUsername: "S", Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrDestinationNotFound)

	// The buyer has a session but no thread.
	putUser(t, st, "buyer-chat", "", "B")
	err = r.Route(ctx, "seller-chat", UserReply{Hash: "H", ClientUsername: "S", Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrDestinationNotFound)
}

func TestUnknownEventForwardsRawPayload(t *testing.T) {
	st := storetest.New(t)
	out := newSink()
	r := NewRouter(st, st, out, site)
	putUser(t, st, "u1", "thr_1", "S")

	require.NoError(t, r.Route(context.Background(), "u1", Unknown{Name: "listing_sold", Raw: []byte(`{"id":7}`)}))
	got := out.messages("thr_1")
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Title, "listing_sold")
	assert.Contains(t, got[0].Body, `{"id":7}`)
}

func TestDeliveryFailuresAreClassified(t *testing.T) {
	ctrl := gomock.NewController(t)
	messenger := surfacemock.NewMockMessenger(ctrl)
	st := storetest.New(t)
	putUser(t, st, "u1", "thr_1", "S")
	r := NewRouter(st, st, messenger, site)
	ctx := context.Background()

	gomock.InOrder(
		messenger.EXPECT().Deliver(gomock.Any(), "thr_1", gomock.Any()).Return(surface.ErrThreadNotFound),
		messenger.EXPECT().Deliver(gomock.Any(), "thr_1", gomock.Any()).Return(errors.New("socket closed")),
	)

	err := r.Route(ctx, "u1", Unknown{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrDestinationNotFound)

	err = r.Route(ctx, "u1", Unknown{Name: "x"})
	assert.Equal(t, http.StatusBadGateway, domain.HTTPStatus(err))
}

func post(t *testing.T, srv *httptest.Server, path, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestHandlerStatusMapping(t *testing.T) {
	st := storetest.New(t)
	putUser(t, st, "seller-chat", "thr_seller", "S")
	putUser(t, st, "buyer-chat", "thr_buyer", "B")

	r := chi.NewRouter()
	NewHandler(NewRouter(st, st, newSink(), site)).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	status, body := post(t, srv, "/webhook/negotiation_started/seller-chat", `{"hash":"H","buyer":"B","seller":"S"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)

	status, body = post(t, srv, "/webhook/user_reply/seller-chat", `{"hash":"missing","client_username":"S"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "link_not_found", body)

	status, _ = post(t, srv, "/webhook/user_reply/seller-chat", `{"hash":"H","client_username":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = post(t, srv, "/webhook/negotiation_started/seller-chat", `{"hash":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_payload", body)

	status, _ = post(t, srv, "/webhook/negotiation_completed_client/nobody", `{"hash":"H"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = post(t, srv, "/webhook/user_reply/seller-chat", `{"hash":"H","client_username":"S","message":"hi"}`)
	assert.Equal(t, http.StatusConflict, status, "link was removed by the completion event")
}
