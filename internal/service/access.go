package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"vpnportal/internal/logs"
	"vpnportal/internal/mail"
	"vpnportal/internal/models"
	"vpnportal/internal/ratelimit"
)

// AccessRepo — хранилище заявок на доступ.
type AccessRepo interface {
	Create(ctx context.Context, r *models.AccessRequest) error
	GetByID(ctx context.Context, id string) (*models.AccessRequest, error)
	CountByEmail(ctx context.Context, email string) (int64, error)
	List(ctx context.Context) ([]models.AccessRequest, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.AccessRequest, error)
	Delete(ctx context.Context, id string) error
}

// AccessService — публичные заявки на доступ: rate limit по IP,
// уведомления админу и заявителю.
type AccessService struct {
	requests   AccessRepo
	users      UserRepo
	limiter    ratelimit.Limiter
	mail       mail.Sender
	adminEmail string
}

func NewAccessService(requests AccessRepo, users UserRepo, limiter ratelimit.Limiter, sender mail.Sender, adminEmail string) *AccessService {
	return &AccessService{requests: requests, users: users, limiter: limiter, mail: sender, adminEmail: adminEmail}
}

const (
	submitLimit  = 1
	submitWindow = 5 * time.Minute
)

type SubmitAccessInput struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Reason string `json:"reason,omitempty"`
	IP     string `json:"-"` // адрес клиента, ключ лимитера
}

func (s *AccessService) Submit(ctx context.Context, in SubmitAccessInput) Result {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if len(in.Name) < 2 || in.Email == "" {
		return failure("Name and email are required.")
	}

	lim, err := s.limiter.Allow(ctx, in.IP, submitLimit, submitWindow)
	if err != nil {
		logs.Logger.Errorf("access request: rate limiter: %v", err)
		return failure("An error occurred while processing your request.")
	}
	if !lim.Allowed {
		wait := int(math.Ceil(time.Until(lim.Reset).Seconds()))
		if wait < 1 {
			wait = 1
		}
		return failure(fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", wait))
	}

	if n, err := s.requests.CountByEmail(ctx, in.Email); err != nil {
		return failure(err.Error())
	} else if n > 0 {
		return failure("An access request for this email already exists.")
	}
	if n, err := s.users.CountByEmail(ctx, in.Email); err != nil {
		return failure(err.Error())
	} else if n > 0 {
		return failure("An account with this email already exists.")
	}

	req := &models.AccessRequest{Name: in.Name, Email: in.Email, Reason: in.Reason}
	if err := s.requests.Create(ctx, req); err != nil {
		logs.Logger.Errorf("access request create: %v", err)
		return failure("Failed to create access request.")
	}

	reason := req.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	data := map[string]any{
		"name":   req.Name,
		"email":  req.Email,
		"reason": reason,
		"status": req.Status,
	}
	// Уведомления best-effort: заявка уже сохранена.
	if s.adminEmail != "" {
		if err := s.mail.Send(ctx, s.adminEmail, "VPN Access Request", "request-access", data); err != nil {
			logs.Logger.Errorf("access request %s: admin mail: %v", req.ID, err)
		}
	}
	if err := s.mail.Send(ctx, req.Email, "VPN Access Request Received", "access-request-pending", data); err != nil {
		logs.Logger.Errorf("access request %s: requester mail: %v", req.ID, err)
	}

	return Result{Success: true, Name: req.Email}
}

// List — читающий путь, ошибки пробрасываются.
func (s *AccessService) List(ctx context.Context) ([]models.AccessRequest, error) {
	return s.requests.List(ctx)
}

// UpdateStatus меняет статус заявки и шлёт письмо о решении.
func (s *AccessService) UpdateStatus(ctx context.Context, id, status string) (*models.AccessRequest, error) {
	switch status {
	case models.AccessApproved, models.AccessRejected, models.AccessPending:
	default:
		return nil, fmt.Errorf("unknown access request status: %s", status)
	}

	req, err := s.requests.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if status == models.AccessApproved || status == models.AccessRejected {
		template := "access-request-rejected"
		if status == models.AccessApproved {
			template = "access-request-approved"
		}
		reason := req.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		subject := "Your VPN Access Request Status: " + strings.ToLower(req.Status)
		err := s.mail.Send(ctx, req.Email, subject, template, map[string]any{
			"name":   req.Name,
			"email":  req.Email,
			"reason": reason,
			"status": req.Status,
		})
		if err != nil {
			logs.Logger.Errorf("access request %s: status mail: %v", req.ID, err)
		}
	}
	return req, nil
}

func (s *AccessService) Delete(ctx context.Context, id string) error {
	return s.requests.Delete(ctx, id)
}
