package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"vpnportal/internal/models"
	"vpnportal/internal/qr"
	"vpnportal/internal/repo"
	"vpnportal/internal/service"
)

// Handler — HTTP-обвязка над сервисами. Аутентификация живёт снаружи
// (обратный прокси/сессии); сюда личность приходит явным заголовком.
type Handler struct {
	peers  *service.PeerService
	users  *service.UserService
	access *service.AccessService
}

func NewHandler(peers *service.PeerService, users *service.UserService, access *service.AccessService) *Handler {
	return &Handler{peers: peers, users: users, access: access}
}

const actorHeader = "X-Actor-Id"

func actorID(r *http.Request) string { return strings.TrimSpace(r.Header.Get(actorHeader)) }

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeResult: протокол мутаций — объект Result; неуспех отдаём с 400,
// чтобы UI мог показать message инлайном.
func writeResult(w http.ResponseWriter, res service.Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	models.WriteJSON(w, status, res)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return false
	}
	return true
}

/* ───── пиры ───── */

func (h *Handler) ListPeers(w http.ResponseWriter, r *http.Request) {
	peers, err := h.peers.ListPeers(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, peers)
}

func (h *Handler) CreatePeer(w http.ResponseWriter, r *http.Request) {
	var in service.CreatePeerInput
	if !decodeBody(w, r, &in) {
		return
	}
	writeResult(w, h.peers.CreatePeer(r.Context(), in))
}

func (h *Handler) UpdatePeer(w http.ResponseWriter, r *http.Request) {
	var in service.UpdatePeerInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.ID = mux.Vars(r)["id"]
	in.ActorID = actorID(r)
	writeResult(w, h.peers.UpdatePeer(r.Context(), in))
}

func (h *Handler) DeletePeer(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.peers.DeletePeer(r.Context(), mux.Vars(r)["id"], actorID(r)))
}

func (h *Handler) AvailableIPs(w http.ResponseWriter, r *http.Request) {
	ips, err := h.peers.AvailableIPs(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "Bad Gateway", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, ips)
}

func (h *Handler) Configurations(w http.ResponseWriter, r *http.Request) {
	confs, err := h.peers.ListConfigurations(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusBadGateway, "Bad Gateway", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, confs)
}

/* ───── страница VPN конечного пользователя ───── */

func (h *Handler) MyPeer(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "actor id required", nil)
		return
	}
	peer, err := h.peers.PeerForUser(r.Context(), actor)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not Found", "no peer config for user", nil)
			return
		}
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, peer)
}

func (h *Handler) DownloadConfig(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "actor id required", nil)
		return
	}
	conf, fileName, err := h.peers.RenderedConfig(r.Context(), actor)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not Found", "no peer config for user", nil)
			return
		}
		models.WriteProblem(w, http.StatusBadGateway, "Bad Gateway", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	_, _ = w.Write([]byte(conf))
}

func (h *Handler) ConfigQR(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "actor id required", nil)
		return
	}
	conf, _, err := h.peers.RenderedConfig(r.Context(), actor)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not Found", "no peer config for user", nil)
			return
		}
		models.WriteProblem(w, http.StatusBadGateway, "Bad Gateway", err.Error(), nil)
		return
	}
	png, err := qr.EncodePNG(conf, 0)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

/* ───── пользователи ───── */

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.CreateUserInput
	if !decodeBody(w, r, &in) {
		return
	}
	res := h.users.CreateUser(r.Context(), in)
	status := http.StatusCreated
	if !res.Success {
		status = http.StatusBadRequest
	}
	models.WriteJSON(w, status, res)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.users.DeleteUser(r.Context(), mux.Vars(r)["id"], actorID(r)))
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	res := h.users.ResetPassword(r.Context(), mux.Vars(r)["id"])
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	models.WriteJSON(w, status, res)
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in service.UpdatePasswordInput
	if !decodeBody(w, r, &in) {
		return
	}
	writeResult(w, h.users.UpdatePassword(r.Context(), in))
}

/* ───── заявки на доступ ───── */

func (h *Handler) SubmitAccessRequest(w http.ResponseWriter, r *http.Request) {
	var in service.SubmitAccessInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.IP = clientIP(r)
	writeResult(w, h.access.Submit(r.Context(), in))
}

func (h *Handler) ListAccessRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.access.List(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, reqs)
}

func (h *Handler) UpdateAccessRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	req, err := h.access.UpdateStatus(r.Context(), mux.Vars(r)["id"], strings.ToUpper(in.Status))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not Found", "access request not found", nil)
			return
		}
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) DeleteAccessRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.access.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			models.WriteProblem(w, http.StatusNotFound, "Not Found", "access request not found", nil)
			return
		}
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
