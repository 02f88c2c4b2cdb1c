// Package gateway — типизированный клиент внешнего WireGuard management API
// (WGDashboard). Единственное место в приложении, которому разрешено ходить
// на удалённый API. Ретраев нет: любая ошибка поднимается вызывающему,
// который сам решает, прерывать ли свою операцию.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

const apiKeyHeader = "wg-dashboard-apikey"

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// envelope: все ответы удалённого API заворачивают payload в {data: ...}.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var rd *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(buf)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wireguard api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// текст HTTP-статуса и есть сообщение об ошибке
		return nil, fmt.Errorf("wireguard api: %s", resp.Status)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("wireguard api: decode response: %w", err)
	}
	return env.Data, nil
}

// AvailableIPs — GET /getAvailableIPs/{iface}. Справочные данные для форм:
// резервирования нет, к моменту addPeers список может устареть.
func (c *Client) AvailableIPs(ctx context.Context, iface string) ([]string, error) {
	data, err := c.do(ctx, http.MethodGet, "/getAvailableIPs/"+url.PathEscape(iface), nil)
	if err != nil {
		return nil, err
	}
	var ips []string
	if err := json.Unmarshal(data, &ips); err != nil {
		return nil, fmt.Errorf("wireguard api: decode available ips: %w", err)
	}
	return ips, nil
}

// Configurations — GET /getWireguardConfigurations: какие серверные
// интерфейсы существуют.
func (c *Client) Configurations(ctx context.Context) ([]InterfaceData, error) {
	data, err := c.do(ctx, http.MethodGet, "/getWireguardConfigurations", nil)
	if err != nil {
		return nil, err
	}
	var confs []InterfaceData
	if err := json.Unmarshal(data, &confs); err != nil {
		return nil, fmt.Errorf("wireguard api: decode configurations: %w", err)
	}
	return confs, nil
}

// AddPeer — POST /addPeers/{iface}. Имя должно быть уже каноническим: на
// удалённой стороне пир не переименовывается. Пустой ip означает, что адрес
// выделит сам сервер.
func (c *Client) AddPeer(ctx context.Context, name, iface, ip string) (*PeerData, error) {
	body := map[string]any{"name": name}
	if ip != "" {
		body["allowed_ips"] = []string{ip}
	}
	data, err := c.do(ctx, http.MethodPost, "/addPeers/"+url.PathEscape(iface), body)
	if err != nil {
		return nil, err
	}

	peer, err := decodePeer(data)
	if err != nil {
		return nil, err
	}
	if _, err := wgtypes.ParseKey(peer.PublicKey); err != nil {
		return nil, fmt.Errorf("wireguard api: bad peer public key %q: %w", peer.PublicKey, err)
	}
	if peer.Configuration.Name == "" {
		peer.Configuration.Name = iface
	}
	return peer, nil
}

// decodePeer принимает и одиночный объект, и массив из одного элемента —
// обе формы встречаются у удалённого API.
func decodePeer(data json.RawMessage) (*PeerData, error) {
	var p PeerData
	if err := json.Unmarshal(data, &p); err == nil && p.PublicKey != "" {
		return &p, nil
	}
	var list []PeerData
	if err := json.Unmarshal(data, &list); err == nil && len(list) == 1 {
		return &list[0], nil
	}
	return nil, fmt.Errorf("wireguard api: unexpected peer payload")
}

// PeerFields — изменяемые поля пира в именах удалённого API
// для полного замещающего updatePeerSettings.
type PeerFields struct {
	Name            string `json:"name"`
	PrivateKey      string `json:"private_key"`
	AllowedIP       string `json:"allowed_ip"`
	RemoteEndpoint  string `json:"remote_endpoint"`
	EndpointAllowed string `json:"endpoint_allowed_ip"`
	DNS             string `json:"DNS"`
	PreSharedKey    string `json:"preshared_key"`
	MTU             int    `json:"mtu"`
	KeepAlive       int    `json:"keepalive"`
	PublicKey       string `json:"id"` // удалённая сторона адресует пира по ключу
}

// UpdatePeerSettings — POST /updatePeerSettings/{iface}, full-replace.
func (c *Client) UpdatePeerSettings(ctx context.Context, iface string, f PeerFields) error {
	if _, err := wgtypes.ParseKey(f.PublicKey); err != nil {
		return fmt.Errorf("wireguard api: bad peer public key %q: %w", f.PublicKey, err)
	}
	_, err := c.do(ctx, http.MethodPost, "/updatePeerSettings/"+url.PathEscape(iface), f)
	return err
}

// DeletePeer — POST /deletePeers/{iface}. Идемпотентность удалённой стороной
// не гарантируется: существование пира проверяет вызывающий.
func (c *Client) DeletePeer(ctx context.Context, publicKey, iface string) error {
	if _, err := wgtypes.ParseKey(publicKey); err != nil {
		return fmt.Errorf("wireguard api: bad peer public key %q: %w", publicKey, err)
	}
	body := map[string]any{"peers": []string{publicKey}}
	_, err := c.do(ctx, http.MethodPost, "/deletePeers/"+url.PathEscape(iface), body)
	return err
}

// PeerFile — GET /downloadPeer/{iface}?id=: отрендеренный файл конфига,
// запасной путь показа, когда локального рендера нет.
func (c *Client) PeerFile(ctx context.Context, iface, peerID string) (*PeerFile, error) {
	path := "/downloadPeer/" + url.PathEscape(iface) + "?id=" + url.QueryEscape(peerID)
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var f PeerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("wireguard api: decode peer file: %w", err)
	}
	return &f, nil
}

// AllPeerFiles — GET /downloadAllPeers/{iface}.
func (c *Client) AllPeerFiles(ctx context.Context, iface string) ([]PeerFile, error) {
	data, err := c.do(ctx, http.MethodGet, "/downloadAllPeers/"+url.PathEscape(iface), nil)
	if err != nil {
		return nil, err
	}
	var files []PeerFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("wireguard api: decode peer files: %w", err)
	}
	return files, nil
}
