package devicecontrol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/labstack/echo/v4"
	"github.com/nsyszr/smsrelay/pkg/authority"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/controlchannel"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/registry"
	"github.com/nsyszr/smsrelay/pkg/ingest"
	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/nsyszr/smsrelay/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(t *testing.T) (*httptest.Server, *registry.Registry) {
	store := memory.NewStore()
	require.NoError(t, store.Tokens().Set(context.Background(), "s3cret"))

	reg := registry.New()
	gate := authority.NewGate(store.Tokens(), nil)
	ctrl := controlchannel.NewController(reg, gate, ingest.NewService(store, nil), nil, controlchannel.Options{})

	e := echo.New()
	NewHandler(ctrl, gate).RegisterRoutes(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, reg
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/devicecontrol/v1" + query
}

func TestHandler_RejectsBadUpgradeToken(t *testing.T) {
	srv, reg := setupHandlerTest(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/devicecontrol/v1?token=wrong", nil)
	require.NoError(t, err)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	body := map[string]string{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body["error"])
	assert.Empty(t, reg.Snapshot())
}

func TestHandler_PreauthorizedLinkRegisters(t *testing.T) {
	srv, reg := setupHandlerTest(t)

	conn, _, _, err := ws.Dial(context.Background(), wsURL(srv, "?token=s3cret"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wsutil.WriteClientText(conn, []byte(`[1,"gw1",{}]`)))
	data, err := wsutil.ReadServerText(conn)
	require.NoError(t, err)

	var welcome []interface{}
	require.NoError(t, json.Unmarshal(data, &welcome))
	require.Equal(t, float64(2), welcome[0])

	refs := reg.ListByClassification(model.ConnectionKindDevice)
	require.Len(t, refs, 1)
	assert.Equal(t, welcome[1], refs[0].ID)
	assert.NotEmpty(t, refs[0].Metadata["remote_ip"])

	conn.Close()
	assert.Eventually(t, func() bool {
		return len(reg.Snapshot()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_TokenInHello(t *testing.T) {
	srv, reg := setupHandlerTest(t)

	conn, _, _, err := ws.Dial(context.Background(), wsURL(srv, "?client=test"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wsutil.WriteClientText(conn, []byte(`[1,"console",{"token":"s3cret"}]`)))
	_, err = wsutil.ReadServerText(conn)
	require.NoError(t, err)

	assert.Len(t, reg.ListByClassification(model.ConnectionKindEphemeralClient), 1)
}
