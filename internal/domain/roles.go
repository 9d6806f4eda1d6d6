package domain

import "strings"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleReader     Role = "reader"
	RoleJournalist Role = "journalist"
	RoleEditor     Role = "editor"
)

// ParseRole приводит строку к известной роли.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleReader:
		return RoleReader, true
	case RoleJournalist:
		return RoleJournalist, true
	case RoleEditor:
		return RoleEditor, true
	}
	return "", false
}

// Permission описывает право на операцию рабочего процесса.
type Permission string

const (
	PermViewContent      Permission = "content.view"
	PermCreateContent    Permission = "content.create"
	PermApproveContent   Permission = "content.approve"
	PermManagePublisher  Permission = "publisher.manage"
	PermJoinPublisher    Permission = "publisher.join"
	PermManageSubscribes Permission = "subscriptions.manage"
)

var rolePermissions = map[Role][]Permission{
	RoleReader: {
		PermViewContent,
		PermManageSubscribes,
	},
	RoleJournalist: {
		PermViewContent,
		PermCreateContent,
		PermJoinPublisher,
	},
	RoleEditor: {
		PermViewContent,
		PermApproveContent,
		PermManagePublisher,
	},
}

// PermissionsForRole возвращает набор прав роли. Набор статический и
// вычисляется по требованию, никакого состояния в хранилище у него нет.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// RoleAllows сообщает, входит ли право в набор роли.
func RoleAllows(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
