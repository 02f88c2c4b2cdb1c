package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"vpnportal/internal/logs"
	"vpnportal/internal/mail"
	"vpnportal/internal/models"
	"vpnportal/internal/password"
	"vpnportal/internal/repo"
)

// UserRepo — хранилище пользователей.
type UserRepo interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	CountByEmail(ctx context.Context, email string) (int64, error)
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, id string) error
	SetPassword(ctx context.Context, id string, hash []byte, firstLogin bool) error
}

// UserService — провижининг: учётка + письмо с временными кредами + пир.
type UserService struct {
	users UserRepo
	peers *PeerService
	mail  mail.Sender
}

func NewUserService(users UserRepo, peers *PeerService, sender mail.Sender) *UserService {
	return &UserService{users: users, peers: peers, mail: sender}
}

type CreateUserInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	IPAddress string `json:"ip_address,omitempty"`
}

func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) UserResult {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if len(in.Name) < 2 || in.Email == "" {
		return UserResult{Success: false, Message: "Name and email are required."}
	}

	if n, err := s.users.CountByEmail(ctx, in.Email); err != nil {
		logs.Logger.Errorf("create user: email check: %v", err)
		return UserResult{Success: false, Message: err.Error()}
	} else if n > 0 {
		return UserResult{Success: false, Message: "User with this email already exists."}
	}

	tempPassword := password.Generate(password.DefaultLength)
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), 12)
	if err != nil {
		return UserResult{Success: false, Message: err.Error()}
	}

	u := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         models.RoleUser,
		IsFirstLogin: true,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		logs.Logger.Errorf("create user: %v", err)
		return UserResult{Success: false, Message: err.Error()}
	}

	// Креды уходят почтой: это не best-effort, без письма временный пароль
	// до пользователя не доедет.
	err = s.mail.Send(ctx, u.Email, "Your VPN Account Credentials", "new-user", map[string]any{
		"email":    u.Email,
		"password": tempPassword,
	})
	if err != nil {
		logs.Logger.Errorf("create user %s: credentials mail: %v", u.ID, err)
		return UserResult{Success: false, UserID: u.ID, Message: err.Error()}
	}

	res := s.peers.CreatePeer(ctx, CreatePeerInput{Name: in.Name, UserID: u.ID, IPAddress: in.IPAddress})
	if !res.Success {
		// Учётка уже есть, пира нет — админ может провижинить пир отдельно.
		logs.Logger.Warnf("create user %s: peer provisioning failed: %s", u.ID, res.Message)
		return UserResult{Success: false, UserID: u.ID, Message: res.Message}
	}

	return UserResult{Success: true, UserID: u.ID, TempPassword: tempPassword}
}

// DeleteUser — надмножество удаления пира: сначала полный teardown
// PeerConfig (fail closed — неудача блокирует удаление учётки), затем
// сама учётка. Пользователь без пира удаляем как есть.
func (s *UserService) DeleteUser(ctx context.Context, userID, actorID string) Result {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return failure("User not found.")
	}

	peer, err := s.peers.peers.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		if res := s.peers.DeletePeer(ctx, peer.ID, actorID); !res.Success {
			return failure("Failed to delete WireGuard configuration: " + res.Message)
		}
	case errors.Is(err, repo.ErrNotFound):
		// пира нет — просто удаляем учётку
	default:
		logs.Logger.Errorf("delete user %s: peer lookup: %v", userID, err)
		return failure(err.Error())
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		logs.Logger.Errorf("delete user %s: %v", userID, err)
		return failure(err.Error())
	}
	logs.Logger.Infof("user %s deleted by %s", userID, actorID)
	return Result{Success: true}
}

// ResetPassword — новый временный пароль, письмо, флаг первого входа заново.
func (s *UserService) ResetPassword(ctx context.Context, userID string) UserResult {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return UserResult{Success: false, Message: "User not found."}
	}

	tempPassword := password.Generate(password.DefaultLength)
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), 12)
	if err != nil {
		return UserResult{Success: false, Message: err.Error()}
	}
	if err := s.users.SetPassword(ctx, u.ID, hash, true); err != nil {
		logs.Logger.Errorf("reset password %s: %v", userID, err)
		return UserResult{Success: false, Message: err.Error()}
	}

	err = s.mail.Send(ctx, u.Email, "Your VPN Account Credentials", "new-user", map[string]any{
		"email":    u.Email,
		"password": tempPassword,
	})
	if err != nil {
		logs.Logger.Errorf("reset password %s: mail: %v", userID, err)
		return UserResult{Success: false, Message: err.Error()}
	}
	return UserResult{Success: true, UserID: u.ID, TempPassword: tempPassword}
}

type UpdatePasswordInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdatePassword — смена пароля при первом входе, снимает IsFirstLogin.
func (s *UserService) UpdatePassword(ctx context.Context, in UpdatePasswordInput) Result {
	if in.Email == "" || len(in.Password) < 8 {
		return failure("Email and a password of at least 8 characters are required.")
	}
	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return failure("User not found.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), 12)
	if err != nil {
		return failure(err.Error())
	}
	if err := s.users.SetPassword(ctx, u.ID, hash, false); err != nil {
		logs.Logger.Errorf("update password %s: %v", u.ID, err)
		return failure(err.Error())
	}
	return Result{Success: true}
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}
