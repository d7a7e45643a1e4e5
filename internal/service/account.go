package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/auth"
	"github.com/user/papertiger/internal/mailer"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/repository"
	"github.com/user/papertiger/internal/utils"
)

const (
	confirmTemplate = "user_confirm.tmpl"

	// ResendMessage 无论邮箱是否存在都返回同一句话
	ResendMessage = "If that e-mail exists, a new confirmation link was sent."
)

var reUsername = regexp.MustCompile(`^[A-Za-z0-9.@+_-]{1,150}$`)

// RegisterInput 注册参数
type RegisterInput struct {
	Username string `json:"username" binding:"required,max=150"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required"`
}

// AccountConfig 账号服务配置
type AccountConfig struct {
	SiteName        string
	SiteURL         string
	ConfirmationTTL time.Duration
}

// AccountService 注册、邮箱确认和登录
type AccountService struct {
	repos    *repository.Repositories
	mailer   mailer.Mailer
	tokens   *auth.TokenManager
	clock    Clock
	cfg      AccountConfig
	validate *validator.Validate
	wg       sync.WaitGroup
}

// NewAccountService 创建账号服务
func NewAccountService(repos *repository.Repositories, m mailer.Mailer, tokens *auth.TokenManager, clock Clock, cfg AccountConfig) *AccountService {
	if clock == nil {
		clock = RealClock{}
	}
	return &AccountService{
		repos:    repos,
		mailer:   m,
		tokens:   tokens,
		clock:    clock,
		cfg:      cfg,
		validate: utils.NewValidator(),
	}
}

// Register 注册账号。用户、确认令牌和状态变更在同一个事务里完成，邮件在提交后发送
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	verr := &apperr.ValidationError{}
	if err := s.validate.Struct(in); err != nil {
		verr = utils.ToValidationError(err)
	}
	if in.Username != "" && !reUsername.MatchString(in.Username) {
		verr.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if err := auth.ValidatePassword(in.Password, auth.UserAttributes{Username: in.Username, Email: in.Email}); err != nil {
		pv, _ := apperr.IsValidation(err)
		for _, msg := range pv.Fields["password"] {
			verr.Add("password", msg)
		}
	}
	if !verr.Empty() {
		return nil, verr
	}

	if err := s.checkUnique(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Status:       model.StatusRegistered,
		Role:         model.RoleUser,
	}

	var plain string
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.User.Create(ctx, user); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return apperr.NewValidationError("username", "A user with that username or email already exists.")
			}
			return err
		}
		key, err := s.issueConfirmation(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		plain = key
		if err := tx.User.SetStatus(ctx, user.ID, model.StatusEmailSent); err != nil {
			return err
		}
		user.Status = model.StatusEmailSent
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("新用户注册", "user_id", user.ID, "username", user.Username)
	s.sendConfirmation(user, plain)
	return user, nil
}

func (s *AccountService) checkUnique(ctx context.Context, username, email string) error {
	verr := &apperr.ValidationError{}

	existing, err := s.repos.User.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		verr.Add("username", "A user with that username already exists.")
	}

	existing, err = s.repos.User.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		verr.Add("email", "A user with that email already exists.")
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// issueConfirmation 生成新令牌，返回明文 key
func (s *AccountService) issueConfirmation(ctx context.Context, tx *repository.Repositories, userID int) (string, error) {
	plain, hash, err := auth.NewConfirmationKey()
	if err != nil {
		return "", fmt.Errorf("生成确认密钥失败: %w", err)
	}
	now := s.clock.Now()
	c := &model.EmailConfirmation{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.cfg.ConfirmationTTL),
		CreatedAt: now,
	}
	if err := tx.Confirmation.Create(ctx, c); err != nil {
		return "", err
	}
	return plain, nil
}

// Resend 重新发送确认邮件。账号不存在或已激活时静默返回
func (s *AccountService) Resend(ctx context.Context, email string) error {
	user, err := s.repos.User.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil || user.IsActive() {
		return nil
	}

	var plain string
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Confirmation.DeletePending(ctx, user.ID); err != nil {
			return err
		}
		key, err := s.issueConfirmation(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		plain = key
		return tx.User.SetStatus(ctx, user.ID, model.StatusEmailSent)
	})
	if err != nil {
		return err
	}

	s.sendConfirmation(user, plain)
	return nil
}

// Confirm 使用确认密钥激活账号。重复确认已激活账号是幂等的
func (s *AccountService) Confirm(ctx context.Context, key string) (*model.User, error) {
	if key == "" {
		return nil, apperr.ErrInvalidOrExpiredToken
	}
	conf, err := s.repos.Confirmation.FindByHash(ctx, auth.HashConfirmationKey(key))
	if err != nil {
		return nil, err
	}
	if conf == nil {
		return nil, apperr.ErrInvalidOrExpiredToken
	}

	user, err := s.repos.User.FindByID(ctx, conf.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrInvalidOrExpiredToken
	}

	if conf.Consumed() {
		if user.IsActive() {
			return user, nil
		}
		return nil, apperr.ErrInvalidOrExpiredToken
	}

	now := s.clock.Now()
	if conf.Expired(now) {
		return nil, apperr.ErrInvalidOrExpiredToken
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		consumed, err := tx.Confirmation.Consume(ctx, conf.ID, now)
		if err != nil {
			return err
		}
		if !consumed {
			// 并发确认时另一个请求先完成
			current, err := tx.User.FindByID(ctx, user.ID)
			if err != nil {
				return err
			}
			if current == nil || !current.IsActive() {
				return apperr.ErrInvalidOrExpiredToken
			}
			return nil
		}
		return tx.User.Activate(ctx, user.ID, now)
	})
	if err != nil {
		return nil, err
	}

	log.Info("邮箱确认成功", "user_id", user.ID)
	return s.repos.User.FindByID(ctx, user.ID)
}

// IssueToken 登录。未激活账号不论密码对错都拒绝
func (s *AccountService) IssueToken(ctx context.Context, login, password string) (*auth.TokenPair, error) {
	user, err := s.repos.User.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, apperr.ErrAccountNotActive
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.tokens.IssuePair(user)
}

// Refresh 用刷新令牌换新的访问令牌
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidCredentials, err)
	}
	user, err := s.repos.User.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, apperr.ErrAccountNotActive
	}
	access, err := s.tokens.Generate(user, auth.AccessToken)
	if err != nil {
		return nil, err
	}
	return &auth.TokenPair{Access: access}, nil
}

// Profile 当前用户信息
func (s *AccountService) Profile(ctx context.Context, userID int) (*model.User, error) {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrNotFound
	}
	return user, nil
}

// CurrentRole 库中保存的角色，用户不存在返回空
func (s *AccountService) CurrentRole(ctx context.Context, userID int) (model.Role, error) {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil || user == nil {
		return "", err
	}
	return user.Role, nil
}

// SetRole 修改用户角色，login 可以是用户名或邮箱
func (s *AccountService) SetRole(ctx context.Context, login string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, apperr.NewValidationError("role", "Must be one of: user, staff, admin.")
	}
	user, err := s.repos.User.FindByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrNotFound
	}
	if err := s.repos.User.UpdateRole(ctx, user.ID, role); err != nil {
		return nil, err
	}
	user.Role = role
	log.Info("用户角色已更新", "user_id", user.ID, "role", role)
	return user, nil
}

// ConfirmURL 确认链接
func (s *AccountService) ConfirmURL(key string) string {
	return s.cfg.SiteURL + "/confirm-email/" + key
}

// sendConfirmation 后台发送确认邮件，失败只记录日志
func (s *AccountService) sendConfirmation(user *model.User, key string) {
	data := map[string]any{
		"SiteName":   s.cfg.SiteName,
		"Username":   user.Username,
		"ConfirmURL": s.ConfirmURL(key),
		"ExpiryDays": int(s.cfg.ConfirmationTTL.Hours() / 24),
	}
	recipient := user.Email

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("发送确认邮件 panic", "recover", r)
			}
		}()
		if err := s.mailer.Send(recipient, confirmTemplate, data); err != nil {
			log.Error("发送确认邮件失败", "email", recipient, "err", err)
		}
	}()
}

// Wait 等待后台邮件发送完成，优雅关闭时调用
func (s *AccountService) Wait() {
	s.wg.Wait()
}
