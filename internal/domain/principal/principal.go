package principal

import "github.com/google/uuid"

// SystemEmail identifies work done by the service itself.
const SystemEmail = "system"

// Principal is the authenticated actor on whose behalf an operation runs.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Admin  bool
}

// New builds a principal from verified token claims.
func New(userID uuid.UUID, email string, admin bool) Principal {
	return Principal{UserID: userID, Email: email, Admin: admin}
}

// System returns the synthetic identity used by internal callers. It is
// trusted like an admin. An empty operator yields the "system" email.
func System(operator string) Principal {
	if operator == "" {
		operator = SystemEmail
	}
	return Principal{Email: operator, Admin: true}
}

func (p Principal) IsAdmin() bool { return p.Admin }

// CanAccess reports whether p may view or manage something owned by ownerID.
func (p Principal) CanAccess(ownerID uuid.UUID) bool {
	return p.Admin || (p.UserID != uuid.Nil && p.UserID == ownerID)
}
