package identity

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"newsroom/internal/domain"
)

// Service отвечает за регистрацию ролей и вход в систему. Пользователь может
// держать несколько ролей, активной становится роль последнего входа.
type Service struct {
	users domain.UserRepo
}

func NewService(users domain.UserRepo) *Service {
	return &Service{users: users}
}

// RegisterRole создаёт пользователя с указанной ролью либо дописывает роль
// существующему. Для существующего пользователя пароль обязан совпасть.
func (s *Service) RegisterRole(ctx context.Context, username, email, password string, role domain.Role) (domain.User, error) {
	if username == "" || password == "" {
		return domain.User{}, fmt.Errorf("%w: имя пользователя и пароль обязательны", domain.ErrValidation)
	}
	if _, ok := domain.ParseRole(string(role)); !ok {
		return domain.User{}, fmt.Errorf("%w: неизвестная роль %q", domain.ErrValidation, role)
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("поиск пользователя: %w", err)
	}
	if err == nil {
		if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(password)) != nil {
			return domain.User{}, domain.ErrAuthentication
		}
		if existing.HasRole(role) {
			return domain.User{}, fmt.Errorf("%w: роль %s уже зарегистрирована", domain.ErrValidation, role)
		}
		updated, err := s.users.AddRole(ctx, existing.ID, role)
		if err != nil {
			return domain.User{}, fmt.Errorf("добавление роли: %w", err)
		}
		return updated, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("хеширование пароля: %w", err)
	}

	user := domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		ActiveRole:   role,
	}
	switch role {
	case domain.RoleReader:
		user.IsReader = true
	case domain.RoleJournalist:
		user.IsJournalist = true
	case domain.RoleEditor:
		user.IsEditor = true
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("создание пользователя: %w", err)
	}
	return created, nil
}

// Authenticate проверяет учётные данные и делает роль активной. Незнакомое имя
// и неверный пароль неразличимы для вызывающего.
func (s *Service) Authenticate(ctx context.Context, username, password string, role domain.Role) (domain.User, error) {
	user, err := s.VerifyCredentials(ctx, username, password)
	if err != nil {
		return domain.User{}, err
	}
	if !user.HasRole(role) {
		return domain.User{}, domain.ErrRoleNotRegistered
	}
	if err := s.users.SetActiveRole(ctx, user.ID, role); err != nil {
		return domain.User{}, fmt.Errorf("смена активной роли: %w", err)
	}
	user.ActiveRole = role
	return user, nil
}

// VerifyCredentials проверяет пару имя/пароль без смены активной роли.
func (s *Service) VerifyCredentials(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrAuthentication
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("поиск пользователя: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, domain.ErrAuthentication
	}
	return user, nil
}

// RolesFor возвращает зарегистрированные роли пользователя. Для неизвестного
// имени возвращается пустой набор: по ответу нельзя понять, существует ли
// пользователь.
func (s *Service) RolesFor(ctx context.Context, username string) ([]domain.Role, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("поиск пользователя: %w", err)
	}
	return user.RegisteredRoles(), nil
}
