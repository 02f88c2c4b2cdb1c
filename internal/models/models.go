package models

import (
	"time"

	"gorm.io/datatypes"
)

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Статусы заявок на доступ.
const (
	AccessPending  = "PENDING"
	AccessApproved = "APPROVED"
	AccessRejected = "REJECTED"
)

// User — учётная запись портала. У пользователя не больше одного PeerConfig
// (uniqueIndex на PeerConfig.UserID).
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name          string `gorm:"size:255;not null" json:"name"`
	Email         string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role          string `gorm:"size:16;default:user" json:"role"`
	EmailVerified bool   `json:"email_verified"`
	IsFirstLogin  bool   `gorm:"default:true" json:"is_first_login"`
	PasswordHash  []byte `json:"-"`

	Peer *PeerConfig `gorm:"foreignKey:UserID" json:"peer,omitempty"`
}

// Configuration — локальная копия параметров серверного интерфейса WireGuard.
// Создаётся вместе со своим PeerConfig и никогда его не переживает
// (намеренная денормализация: по строке на каждый провижининг пира).
type Configuration struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name       string `gorm:"size:64;not null" json:"name"` // имя интерфейса, например wg0
	Address    string `gorm:"size:64" json:"address"`       // серверный CIDR
	ListenPort int    `json:"listen_port"`
	PublicKey  string `gorm:"size:64" json:"public_key"`
	PrivateKey string `gorm:"size:64" json:"-"`
}

// PeerConfig — сверенная запись пира: создаётся только после успешного addPeer
// на удалённом API, удаляется только после успешного deletePeers.
type PeerConfig struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name              string `gorm:"size:255;not null" json:"name"` // с префиксом окружения: "prod:Alice's Config"
	PublicKey         string `gorm:"size:64;index" json:"public_key"`
	PrivateKey        string `gorm:"size:64" json:"-"`
	AllowedIPs        string `gorm:"column:allowed_ips;size:64" json:"allowed_ips"` // туннельный адрес пира, 10.x.x.x
	Endpoint          string `gorm:"size:255" json:"endpoint"`                      // host:port сервера
	EndpointAllowedIP string `gorm:"column:endpoint_allowed_ip;size:255" json:"endpoint_allowed_ip"`
	DNS               string `gorm:"column:dns;size:255" json:"dns"`
	PreSharedKey      string `gorm:"column:pre_shared_key;size:64" json:"-"`
	MTU               int    `gorm:"column:mtu" json:"mtu"`
	KeepAlive         int    `json:"keep_alive"`

	UserID          string `gorm:"uniqueIndex;size:36;not null" json:"user_id"`
	ConfigurationID string `gorm:"size:36;not null" json:"configuration_id"`

	User          *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Configuration Configuration `gorm:"foreignKey:ConfigurationID" json:"configuration"`
}

// AccessRequest — публичная заявка на доступ к VPN.
type AccessRequest struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name   string `gorm:"size:255;not null" json:"name"`
	Email  string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Reason string `gorm:"size:1024" json:"reason"`
	Status string `gorm:"size:16;default:PENDING" json:"status"`
}

// EmailLog — журнал отправленных писем (outbox для внешнего mail API).
type EmailLog struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	To       string         `gorm:"size:255;not null" json:"to"`
	Subject  string         `gorm:"size:255" json:"subject"`
	Template string         `gorm:"size:64" json:"template"`
	Data     datatypes.JSON `gorm:"type:jsonb" json:"data"`
	Status   string         `gorm:"size:16" json:"status"` // sent|failed
	Error    string         `gorm:"size:1024" json:"error,omitempty"`
}
