package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vpnportal/internal/db"
	"vpnportal/internal/gateway"
	"vpnportal/internal/models"
	"vpnportal/internal/repo"
)

// stubGateway считает вызовы — тесты проверяют, что дубликаты и ошибки
// валидации не стоят ни одного удалённого вызова.
type stubGateway struct {
	addCalls    int
	updateCalls int
	deleteCalls int

	addResp   *gateway.PeerData
	addErr    error
	updateErr error
	deleteErr error

	lastAddName    string
	lastAddIP      string
	lastUpdate     gateway.PeerFields
	lastDeleteKey  string
	lastDeleteWith string
}

func (g *stubGateway) AvailableIPs(context.Context, string) ([]string, error) {
	return []string{"10.0.0.5", "10.0.0.6"}, nil
}

func (g *stubGateway) Configurations(context.Context) ([]gateway.InterfaceData, error) {
	return []gateway.InterfaceData{{Name: "wg0", Address: "10.0.0.0/24", ListenPort: 51820}}, nil
}

func (g *stubGateway) AddPeer(_ context.Context, name, _, ip string) (*gateway.PeerData, error) {
	g.addCalls++
	g.lastAddName = name
	g.lastAddIP = ip
	if g.addErr != nil {
		return nil, g.addErr
	}
	resp := *g.addResp
	resp.Name = name
	if ip != "" {
		resp.AllowedIPs = ip
	}
	return &resp, nil
}

func (g *stubGateway) UpdatePeerSettings(_ context.Context, _ string, f gateway.PeerFields) error {
	g.updateCalls++
	g.lastUpdate = f
	return g.updateErr
}

func (g *stubGateway) DeletePeer(_ context.Context, publicKey, iface string) error {
	g.deleteCalls++
	g.lastDeleteKey = publicKey
	g.lastDeleteWith = iface
	return g.deleteErr
}

func (g *stubGateway) PeerFile(context.Context, string, string) (*gateway.PeerFile, error) {
	return &gateway.PeerFile{File: "[Interface]\n", FileName: "peer.conf"}, nil
}

func remotePeer() *gateway.PeerData {
	return &gateway.PeerData{
		PublicKey:         "pk1",
		PrivateKey:        "sk1",
		AllowedIPs:        "10.0.0.5",
		Endpoint:          "vpn.example:51820",
		EndpointAllowedIP: "0.0.0.0/0",
		DNS:               "1.1.1.1",
		MTU:               1420,
		KeepAlive:         25,
		Configuration: gateway.InterfaceData{
			Name:       "wg0",
			Address:    "10.0.0.0/24",
			ListenPort: 51820,
			PublicKey:  "srvpub",
		},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(
		&models.User{},
		&models.Configuration{},
		&models.PeerConfig{},
	))
	return d
}

func newPeerService(t *testing.T) (*PeerService, *stubGateway, *repo.PeerStore, *gorm.DB) {
	t.Helper()
	d := newTestDB(t)
	gw := &stubGateway{addResp: remotePeer()}
	store := repo.NewPeerStore(d)
	return NewPeerService(gw, store, "wg0", "prod"), gw, store, d
}

func seedUser(t *testing.T, d *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, repo.NewUserStore(d).Create(context.Background(),
		&models.User{ID: id, Name: "Alice", Email: id + "@example.com"}))
}

func countRows(t *testing.T, d *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, d.Model(model).Count(&n).Error)
	return n
}

func TestCreatePeerEndToEnd(t *testing.T) {
	svc, gw, store, d := newPeerService(t)
	ctx := context.Background()
	seedUser(t, d, "u1")

	res := svc.CreatePeer(ctx, CreatePeerInput{Name: "Alice", UserID: "u1"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "prod:Alice's Config", res.Name)
	// удалённый пир создаётся уже под каноническим именем
	assert.Equal(t, "prod:Alice's Config", gw.lastAddName)
	assert.Empty(t, gw.lastAddIP)

	peer, err := store.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "prod:Alice's Config", peer.Name)
	assert.Equal(t, "10.0.0.5", peer.AllowedIPs)
	assert.Equal(t, "pk1", peer.PublicKey)
	assert.Equal(t, "wg0", peer.Configuration.Name)
	assert.EqualValues(t, 1, countRows(t, d, &models.Configuration{}))
}

func TestCreatePeerValidation(t *testing.T) {
	svc, gw, _, _ := newPeerService(t)
	ctx := context.Background()

	assert.False(t, svc.CreatePeer(ctx, CreatePeerInput{Name: "A", UserID: "u1"}).Success)
	assert.False(t, svc.CreatePeer(ctx, CreatePeerInput{Name: "Alice", UserID: ""}).Success)
	assert.False(t, svc.CreatePeer(ctx, CreatePeerInput{Name: "Alice", UserID: "u1", IPAddress: "192.168.0.4"}).Success)
	assert.Zero(t, gw.addCalls)
}

func TestCreatePeerDuplicateMakesNoRemoteCalls(t *testing.T) {
	svc, gw, _, d := newPeerService(t)
	ctx := context.Background()
	seedUser(t, d, "u1")

	require.True(t, svc.CreatePeer(ctx, CreatePeerInput{Name: "Alice", UserID: "u1"}).Success)
	gw.addCalls = 0

	res := svc.CreatePeer(ctx, CreatePeerInput{Name: "Alice again", UserID: "u1"})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.Zero(t, gw.addCalls, "duplicate must not reach the gateway")
}

func TestCreatePeerRemoteFailureLeavesNoRows(t *testing.T) {
	svc, gw, _, d := newPeerService(t)
	ctx := context.Background()
	seedUser(t, d, "u1")
	gw.addErr = errors.New("wireguard api: 500 Internal Server Error")

	res := svc.CreatePeer(ctx, CreatePeerInput{Name: "Alice", UserID: "u1"})
	assert.False(t, res.Success)
	assert.EqualValues(t, 0, countRows(t, d, &models.PeerConfig{}))
	assert.EqualValues(t, 0, countRows(t, d, &models.Configuration{}))
}

func TestCreatePeerCompensatesOnLocalFailure(t *testing.T) {
	d := newTestDB(t)
	gw := &stubGateway{addResp: remotePeer()}
	// пользователя нет: локальная транзакция упадёт после удалённого успеха
	svc := NewPeerService(gw, repo.NewPeerStore(d), "wg0", "prod")

	res := svc.CreatePeer(context.Background(), CreatePeerInput{Name: "Alice", UserID: "ghost"})
	assert.False(t, res.Success)
	assert.Equal(t, 1, gw.deleteCalls, "compensating deletePeer expected")
	assert.Equal(t, "pk1", gw.lastDeleteKey)
	assert.Equal(t, "wg0", gw.lastDeleteWith)
}

func TestCreatePeerCompensationFailureIsSurfaced(t *testing.T) {
	d := newTestDB(t)
	gw := &stubGateway{addResp: remotePeer(), deleteErr: errors.New("wireguard api: 502 Bad Gateway")}
	svc := NewPeerService(gw, repo.NewPeerStore(d), "wg0", "prod")

	res := svc.CreatePeer(context.Background(), CreatePeerInput{Name: "Alice", UserID: "ghost"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "needs reconciliation")
}

func TestCreatePeerPassesExplicitIP(t *testing.T) {
	svc, gw, store, d := newPeerService(t)
	ctx := context.Background()
	seedUser(t, d, "u1")

	res := svc.CreatePeer(ctx, CreatePeerInput{Name: "Alice", UserID: "u1", IPAddress: "10.0.0.9"})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "10.0.0.9", gw.lastAddIP)

	peer, err := store.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", peer.AllowedIPs)
}

func seedPeer(t *testing.T, svc *PeerService, d *gorm.DB, userID string) *models.PeerConfig {
	t.Helper()
	seedUser(t, d, userID)
	res := svc.CreatePeer(context.Background(), CreatePeerInput{Name: "Alice", UserID: userID})
	require.True(t, res.Success, res.Message)
	peer, err := repo.NewPeerStore(d).GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return peer
}

func TestUpdatePeerContentOverridesForm(t *testing.T) {
	svc, gw, store, d := newPeerService(t)
	ctx := context.Background()
	peer := seedPeer(t, svc, d, "u1")

	res := svc.UpdatePeer(ctx, UpdatePeerInput{
		ID:      peer.ID,
		UserID:  "u1",
		ActorID: "admin1",
		Content: "[Interface]\nDNS = 8.8.8.8\n",
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, gw.updateCalls)
	assert.Equal(t, "8.8.8.8", gw.lastUpdate.DNS)

	got, err := store.GetByID(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", got.DNS)
	// остальные поля не тронуты
	assert.Equal(t, "10.0.0.5", got.AllowedIPs)
	assert.Equal(t, 1420, got.MTU)
}

func TestUpdatePeerExplicitIPWithoutContent(t *testing.T) {
	svc, _, store, d := newPeerService(t)
	ctx := context.Background()
	peer := seedPeer(t, svc, d, "u1")

	res := svc.UpdatePeer(ctx, UpdatePeerInput{
		ID:        peer.ID,
		UserID:    "u1",
		ActorID:   "admin1",
		IPAddress: "10.0.0.9",
	})
	require.True(t, res.Success, res.Message)

	got, err := store.GetByID(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", got.AllowedIPs)
	assert.Equal(t, "1.1.1.1", got.DNS)
}

func TestUpdatePeerContentBeatsExplicitField(t *testing.T) {
	svc, _, store, d := newPeerService(t)
	ctx := context.Background()
	peer := seedPeer(t, svc, d, "u1")

	// вставленный конфиг перекрывает точечное поле формы
	res := svc.UpdatePeer(ctx, UpdatePeerInput{
		ID:        peer.ID,
		UserID:    "u1",
		ActorID:   "admin1",
		Content:   "[Interface]\nAddress = 10.0.0.77\n",
		IPAddress: "10.0.0.9",
	})
	require.True(t, res.Success, res.Message)

	got, err := store.GetByID(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.77", got.AllowedIPs)
}

func TestUpdatePeerRequiresIdentity(t *testing.T) {
	svc, gw, _, d := newPeerService(t)
	ctx := context.Background()
	peer := seedPeer(t, svc, d, "u1")

	assert.False(t, svc.UpdatePeer(ctx, UpdatePeerInput{UserID: "u1", ActorID: "admin1"}).Success)
	assert.False(t, svc.UpdatePeer(ctx, UpdatePeerInput{ID: peer.ID, ActorID: "admin1"}).Success)
	assert.False(t, svc.UpdatePeer(ctx, UpdatePeerInput{ID: peer.ID, UserID: "u1"}).Success)
	assert.Zero(t, gw.updateCalls)
}

func TestUpdatePeerScopedLookup(t *testing.T) {
	svc, gw, _, d := newPeerService(t)
	ctx := context.Background()
	peer := seedPeer(t, svc, d, "u1")

	res := svc.UpdatePeer(ctx, UpdatePeerInput{ID: peer.ID, UserID: "other", ActorID: "admin1"})
	assert.False(t, res.Success)
	assert.Zero(t, gw.updateCalls)
}

func TestUpdatePeerRemoteFailureNoLocalWrite(t *testing.T) {
	svc, gw, store, d := newPeerService(t)
	ctx := context.Background()
	peer := seedPeer(t, svc, d, "u1")
	gw.updateErr = errors.New("wireguard api: 500 Internal Server Error")

	res := svc.UpdatePeer(ctx, UpdatePeerInput{
		ID:      peer.ID,
		UserID:  "u1",
		ActorID: "admin1",
		Content: "[Interface]\nDNS = 8.8.8.8\n",
	})
	assert.False(t, res.Success)

	got, err := store.GetByID(ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1", got.DNS, "local store must not change on remote failure")
}

func TestDeletePeerRemoteFailureKeepsRows(t *testing.T) {
	svc, gw, _, d := newPeerService(t)
	ctx := context.Background()
	peer := seedPeer(t, svc, d, "u1")
	gw.deleteErr = errors.New("wireguard api: 500 Internal Server Error")

	res := svc.DeletePeer(ctx, peer.ID, "admin1")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.EqualValues(t, 1, countRows(t, d, &models.PeerConfig{}))
	assert.EqualValues(t, 1, countRows(t, d, &models.Configuration{}))
}

func TestDeletePeerEndToEnd(t *testing.T) {
	svc, gw, _, d := newPeerService(t)
	ctx := context.Background()
	peer := seedPeer(t, svc, d, "u1")

	res := svc.DeletePeer(ctx, peer.ID, "admin1")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "pk1", gw.lastDeleteKey)
	assert.Equal(t, "wg0", gw.lastDeleteWith)
	assert.EqualValues(t, 0, countRows(t, d, &models.PeerConfig{}))
	assert.EqualValues(t, 0, countRows(t, d, &models.Configuration{}))
}

func TestDeletePeerNotFound(t *testing.T) {
	svc, gw, _, _ := newPeerService(t)

	res := svc.DeletePeer(context.Background(), "missing", "admin1")
	assert.False(t, res.Success)
	assert.Zero(t, gw.deleteCalls, "no remote call without a local record")
}
