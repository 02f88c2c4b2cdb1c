// Package service — сверка трёх хранилищ: пользовательской БД, локальных
// записей PeerConfig/Configuration и состояния удалённого WireGuard-демона.
// Каждая операция — короткая сага: удалённый вызов строго до локальной
// записи, фоновых ретраев нет, частичные сбои всплывают синхронно.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"vpnportal/internal/gateway"
	"vpnportal/internal/logs"
	"vpnportal/internal/models"
	"vpnportal/internal/wgconf"
)

// Gateway — что сервису нужно от удалённого API.
type Gateway interface {
	AvailableIPs(ctx context.Context, iface string) ([]string, error)
	Configurations(ctx context.Context) ([]gateway.InterfaceData, error)
	AddPeer(ctx context.Context, name, iface, ip string) (*gateway.PeerData, error)
	UpdatePeerSettings(ctx context.Context, iface string, f gateway.PeerFields) error
	DeletePeer(ctx context.Context, publicKey, iface string) error
	PeerFile(ctx context.Context, iface, peerID string) (*gateway.PeerFile, error)
}

// PeerRepo — локальное хранилище записей пиров.
type PeerRepo interface {
	CreatePeerAndConfiguration(ctx context.Context, userID string, peer *models.PeerConfig, conf *models.Configuration) (*models.PeerConfig, error)
	GetByID(ctx context.Context, id string) (*models.PeerConfig, error)
	GetByUserID(ctx context.Context, userID string) (*models.PeerConfig, error)
	GetScoped(ctx context.Context, id, userID string) (*models.PeerConfig, error)
	ExistsForUser(ctx context.Context, userID string) (bool, error)
	ListWithUsers(ctx context.Context) ([]models.PeerConfig, error)
	UpdatePeer(ctx context.Context, id string, fields map[string]any) error
	DeletePeerAndConfiguration(ctx context.Context, id string) error
}

type PeerService struct {
	gw    Gateway
	peers PeerRepo
	iface string // серверный интерфейс по умолчанию
	env   string // dev|prod, префикс имён
}

func NewPeerService(gw Gateway, peers PeerRepo, iface, env string) *PeerService {
	return &PeerService{gw: gw, peers: peers, iface: iface, env: env}
}

type CreatePeerInput struct {
	Name      string `json:"name"`
	UserID    string `json:"user_id"`
	IPAddress string `json:"ip_address,omitempty"`
}

func (in *CreatePeerInput) validate() string {
	if len(strings.TrimSpace(in.Name)) < 2 {
		return "Name must be at least 2 characters long."
	}
	if strings.TrimSpace(in.UserID) == "" {
		return "User is required."
	}
	if in.IPAddress != "" && !strings.HasPrefix(in.IPAddress, "10.") {
		return "IP address must start with 10."
	}
	return ""
}

// CreatePeer: валидация → локальная уникальность → канонизация имени →
// addPeer на удалённой стороне → одна локальная транзакция. PeerConfig
// не может появиться без успешно созданного удалённого пира.
func (s *PeerService) CreatePeer(ctx context.Context, in CreatePeerInput) Result {
	if msg := in.validate(); msg != "" {
		return failure(msg)
	}

	// 1:1 инвариант. Дубликат не должен стоить ни одного удалённого вызова.
	exists, err := s.peers.ExistsForUser(ctx, in.UserID)
	if err != nil {
		logs.Logger.Errorf("create peer: uniqueness check: %v", err)
		return failure(err.Error())
	}
	if exists {
		return failure("A peer config already exists for this user.")
	}

	name := FormatConfigName(s.env, in.Name)

	remote, err := s.gw.AddPeer(ctx, name, s.iface, in.IPAddress)
	if err != nil {
		logs.Logger.Errorf("create peer: remote addPeer: %v", err)
		return failure(err.Error())
	}

	peer := &models.PeerConfig{
		Name:              name,
		PublicKey:         remote.PublicKey,
		PrivateKey:        remote.PrivateKey,
		AllowedIPs:        remote.AllowedIPs,
		Endpoint:          remote.Endpoint,
		EndpointAllowedIP: remote.EndpointAllowedIP,
		DNS:               remote.DNS,
		PreSharedKey:      remote.PreSharedKey,
		MTU:               remote.MTU,
		KeepAlive:         remote.KeepAlive,
	}
	conf := &models.Configuration{
		Name:       remote.Configuration.Name,
		Address:    remote.Configuration.Address,
		ListenPort: remote.Configuration.ListenPort,
		PublicKey:  remote.Configuration.PublicKey,
		PrivateKey: remote.Configuration.PrivateKey,
	}
	if conf.Name == "" {
		conf.Name = s.iface
	}

	if _, err := s.peers.CreatePeerAndConfiguration(ctx, in.UserID, peer, conf); err != nil {
		// Удалённый пир уже создан. Единственная компенсация — best-effort
		// удаление; без него пир остаётся сиротой до ручной сверки.
		logs.Logger.Errorf("create peer: local write after remote success: %v", err)
		if compErr := s.gw.DeletePeer(ctx, remote.PublicKey, conf.Name); compErr != nil {
			logs.Logger.Errorf("create peer: compensating deletePeer failed, peer %s needs reconciliation: %v",
				remote.PublicKey, compErr)
			return failure(fmt.Sprintf("%s (remote peer %s needs reconciliation)", err.Error(), remote.PublicKey))
		}
		logs.Logger.Infof("create peer: remote peer %s rolled back", remote.PublicKey)
		return failure(err.Error())
	}

	return Result{Success: true, Name: name}
}

type UpdatePeerInput struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ActorID   string `json:"-"`
	Name      string `json:"name,omitempty"`
	Content   string `json:"content,omitempty"`    // сырой текст конфига, приоритетный источник
	IPAddress string `json:"ip_address,omitempty"` // явное поле формы
}

// UpdatePeer: merge-приоритет строго "распарсенный текст > явное поле формы >
// сохранённое значение" — админ, вставивший целый конфиг, перекрывает
// точечные правки. Удалённый updatePeerSettings до локальной записи.
func (s *PeerService) UpdatePeer(ctx context.Context, in UpdatePeerInput) Result {
	if in.ID == "" || in.UserID == "" || in.ActorID == "" {
		return failure("id, user id and actor id are required.")
	}
	if in.IPAddress != "" && !strings.HasPrefix(in.IPAddress, "10.") {
		return failure("IP address must start with 10.")
	}

	existing, err := s.peers.GetScoped(ctx, in.ID, in.UserID)
	if err != nil {
		logs.Logger.Errorf("update peer %s: load: %v", in.ID, err)
		return failure("Peer config not found.")
	}

	parsed := wgconf.Parse(in.Content)
	merged := mergePeerFields(parsed, in, existing)

	name := existing.Name
	if in.Name != "" {
		name = in.Name
	}
	name = FormatConfigName(s.env, name)
	merged.Name = name

	err = s.gw.UpdatePeerSettings(ctx, existing.Configuration.Name, gateway.PeerFields{
		Name:            name,
		PrivateKey:      merged.PrivateKey,
		AllowedIP:       merged.AllowedIPs,
		RemoteEndpoint:  merged.Endpoint,
		EndpointAllowed: merged.EndpointAllowedIP,
		DNS:             merged.DNS,
		PreSharedKey:    merged.PreSharedKey,
		MTU:             merged.MTU,
		KeepAlive:       merged.KeepAlive,
		PublicKey:       existing.PublicKey,
	})
	if err != nil {
		logs.Logger.Errorf("update peer %s: remote updatePeerSettings: %v", in.ID, err)
		return failure(err.Error())
	}

	fields := map[string]any{
		"name":                merged.Name,
		"private_key":         merged.PrivateKey,
		"allowed_ips":         merged.AllowedIPs,
		"endpoint":            merged.Endpoint,
		"endpoint_allowed_ip": merged.EndpointAllowedIP,
		"dns":                 merged.DNS,
		"pre_shared_key":      merged.PreSharedKey,
		"mtu":                 merged.MTU,
		"keep_alive":          merged.KeepAlive,
	}
	if err := s.peers.UpdatePeer(ctx, existing.ID, fields); err != nil {
		// Удалённая сторона уже обновлена: хранилища разошлись.
		logs.Logger.Errorf("update peer %s by %s: local write after remote success, stores diverged: %v",
			in.ID, in.ActorID, err)
		return failure(fmt.Sprintf("%s (peer %s needs reconciliation)", err.Error(), existing.PublicKey))
	}

	logs.Logger.Infof("peer %s updated by %s", existing.ID, in.ActorID)
	return Result{Success: true, Name: name}
}

// mergedFields — итог трёхстороннего слияния на update.
type mergedFields struct {
	Name              string
	PrivateKey        string
	AllowedIPs        string
	Endpoint          string
	EndpointAllowedIP string
	DNS               string
	PreSharedKey      string
	MTU               int
	KeepAlive         int
}

// mergePeerFields: parsed > форма > сохранённое. PublicKey намеренно не
// сливается — это идентичность пира, по нему удалённая сторона его адресует
// ([Peer] PublicKey в тексте — ключ сервера, не пира).
func mergePeerFields(parsed map[string]string, in UpdatePeerInput, existing *models.PeerConfig) mergedFields {
	pick := func(key, form, stored string) string {
		if v, ok := parsed[key]; ok && v != "" {
			return v
		}
		if form != "" {
			return form
		}
		return stored
	}
	pickInt := func(key string, stored int) int {
		if v, ok := parsed[key]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return stored
	}
	return mergedFields{
		PrivateKey:        pick(wgconf.FieldPrivateKey, "", existing.PrivateKey),
		AllowedIPs:        pick(wgconf.FieldAllowedIPs, in.IPAddress, existing.AllowedIPs),
		Endpoint:          pick(wgconf.FieldEndpoint, "", existing.Endpoint),
		EndpointAllowedIP: pick(wgconf.FieldEndpointAllowedIP, "", existing.EndpointAllowedIP),
		DNS:               pick(wgconf.FieldDNS, "", existing.DNS),
		PreSharedKey:      pick(wgconf.FieldPreSharedKey, "", existing.PreSharedKey),
		MTU:               pickInt(wgconf.FieldMTU, existing.MTU),
		KeepAlive:         pickInt(wgconf.FieldKeepAlive, existing.KeepAlive),
	}
}

// DeletePeer: локальная запись ищется первой (нужны publicKey и имя
// интерфейса, плюс защита от повторного deletePeers — удалённая сторона
// не идемпотентна). Локальная пара удаляется только после удалённого успеха.
func (s *PeerService) DeletePeer(ctx context.Context, id, actorID string) Result {
	peer, err := s.peers.GetByID(ctx, id)
	if err != nil {
		logs.Logger.Errorf("delete peer %s: load: %v", id, err)
		return failure("Peer config not found.")
	}

	if err := s.gw.DeletePeer(ctx, peer.PublicKey, peer.Configuration.Name); err != nil {
		logs.Logger.Errorf("delete peer %s: remote deletePeer: %v", id, err)
		return failure(err.Error())
	}

	if err := s.peers.DeletePeerAndConfiguration(ctx, id); err != nil {
		logs.Logger.Errorf("delete peer %s by %s: local delete after remote success, stores diverged: %v",
			id, actorID, err)
		return failure(fmt.Sprintf("%s (peer %s needs reconciliation)", err.Error(), peer.PublicKey))
	}

	logs.Logger.Infof("peer %s deleted by %s", id, actorID)
	return Result{Success: true, Name: peer.Name}
}
