package domain

import "strings"

// UserRole описывает роль пользователя в клубе.
type UserRole string

const (
	UserRoleMember            UserRole = "member"
	UserRoleNewsletterManager UserRole = "newsletter_manager"
	UserRolePDFUploader       UserRole = "pdf_uploader"
	UserRoleAdmin             UserRole = "admin"
)

// ParseRole разбирает имя роли из пользовательского ввода.
func ParseRole(raw string) (UserRole, bool) {
	switch UserRole(strings.ToLower(strings.TrimSpace(raw))) {
	case UserRoleMember:
		return UserRoleMember, true
	case UserRoleNewsletterManager:
		return UserRoleNewsletterManager, true
	case UserRolePDFUploader:
		return UserRolePDFUploader, true
	case UserRoleAdmin:
		return UserRoleAdmin, true
	}
	return "", false
}

// RoleNames возвращает имена всех ролей для подсказок пользователю.
func RoleNames() []string {
	return []string{
		string(UserRoleMember),
		string(UserRoleNewsletterManager),
		string(UserRolePDFUploader),
		string(UserRoleAdmin),
	}
}

// CanManageNewsletters сообщает, доступно ли управление рассылками.
func (r UserRole) CanManageNewsletters() bool {
	return r == UserRoleNewsletterManager || r == UserRoleAdmin
}

// CanUploadPDFs сообщает, доступна ли работа с библиотекой PDF.
func (r UserRole) CanUploadPDFs() bool {
	return r == UserRolePDFUploader || r == UserRoleAdmin
}

// IsAdmin сообщает, является ли роль административной.
func (r UserRole) IsAdmin() bool {
	return r == UserRoleAdmin
}
