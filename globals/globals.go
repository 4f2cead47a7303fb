package globals

import (
	"context"
	"os"
)

var (
	JwtSecret    = []byte(getenv("JWT_SECRET", "change-me"))
	QRHmacSecret = []byte(getenv("QR_HMAC_SECRET", "change-me-too"))
)

// Context keys
type ContextKey string

const RoleKey ContextKey = "role"
const UserIDKey ContextKey = "userId"
const OrgIDKey ContextKey = "orgId"

var Ctx = context.Background()

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
