package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes вешает API на /api/v1.
func RegisterRoutes(r *mux.Router, h *Handler) {
	v1 := r.PathPrefix("/api/v1").Subrouter()

	// публичная заявка на доступ
	v1.HandleFunc("/access-requests", h.SubmitAccessRequest).Methods(http.MethodPost)

	// админские операции
	v1.HandleFunc("/access-requests", h.ListAccessRequests).Methods(http.MethodGet)
	v1.HandleFunc("/access-requests/{id}", h.UpdateAccessRequest).Methods(http.MethodPut)
	v1.HandleFunc("/access-requests/{id}", h.DeleteAccessRequest).Methods(http.MethodDelete)

	v1.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	v1.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	v1.HandleFunc("/users/{id}", h.DeleteUser).Methods(http.MethodDelete)
	v1.HandleFunc("/users/{id}/reset-password", h.ResetPassword).Methods(http.MethodPost)
	v1.HandleFunc("/auth/password", h.UpdatePassword).Methods(http.MethodPost)

	v1.HandleFunc("/peers", h.ListPeers).Methods(http.MethodGet)
	v1.HandleFunc("/peers", h.CreatePeer).Methods(http.MethodPost)
	v1.HandleFunc("/peers/{id}", h.UpdatePeer).Methods(http.MethodPut)
	v1.HandleFunc("/peers/{id}", h.DeletePeer).Methods(http.MethodDelete)

	// справочные чтения для форм
	v1.HandleFunc("/wireguard/available-ips", h.AvailableIPs).Methods(http.MethodGet)
	v1.HandleFunc("/wireguard/configurations", h.Configurations).Methods(http.MethodGet)

	// страница VPN конечного пользователя
	v1.HandleFunc("/vpn/peer", h.MyPeer).Methods(http.MethodGet)
	v1.HandleFunc("/vpn/config", h.DownloadConfig).Methods(http.MethodGet)
	v1.HandleFunc("/vpn/config.png", h.ConfigQR).Methods(http.MethodGet)
}
