package service

import (
	"context"
	"fmt"
	"strings"

	"vpnportal/internal/gateway"
	"vpnportal/internal/models"
	"vpnportal/internal/wgconf"
)

// Читающие пути. В отличие от мутаций, неожиданные ошибки здесь
// пробрасываются: вызывающий отдаёт их общему error boundary.

// ListPeers — пир + интерфейс + владелец для админской таблицы.
func (s *PeerService) ListPeers(ctx context.Context) ([]models.PeerConfig, error) {
	return s.peers.ListWithUsers(ctx)
}

// PeerForUser — пир для страницы VPN конкретного пользователя.
func (s *PeerService) PeerForUser(ctx context.Context, userID string) (*models.PeerConfig, error) {
	return s.peers.GetByUserID(ctx, userID)
}

// AvailableIPs — справочный список свободных адресов для форм. Не
// инвентарь: к моменту записи адрес может быть занят (гонка принята,
// авторитетно выделяет удалённая сторона).
func (s *PeerService) AvailableIPs(ctx context.Context) ([]string, error) {
	return s.gw.AvailableIPs(ctx, s.iface)
}

// ListConfigurations — какие серверные интерфейсы существуют (тоже справочно).
func (s *PeerService) ListConfigurations(ctx context.Context) ([]gateway.InterfaceData, error) {
	return s.gw.Configurations(ctx)
}

// RenderedConfig возвращает клиентский конфиг и имя файла. Каноничный
// локальный рендер — когда запись полная; иначе запасной путь через
// downloadPeer удалённого API.
func (s *PeerService) RenderedConfig(ctx context.Context, userID string) (string, string, error) {
	peer, err := s.peers.GetByUserID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if peer.PrivateKey != "" && peer.Endpoint != "" {
		return wgconf.Render(peer), configFileName(peer.Name), nil
	}

	file, err := s.gw.PeerFile(ctx, peer.Configuration.Name, peer.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("peer file fallback: %w", err)
	}
	name := file.FileName
	if name == "" {
		name = configFileName(peer.Name)
	}
	return file.File, name, nil
}

func configFileName(peerName string) string {
	name := strings.NewReplacer(":", "-", "'", "", " ", "_").Replace(peerName)
	return name + ".conf"
}
