package admin

import (
	"log/slog"
	"net/http"

	"github.com/pquerna/otp/totp"
)

// RequireTOTP guards mutating endpoints with a time-based one-time code
// supplied in the X-Auth-Code header and validated against the shared
// secret. An empty secret disables the check (local development).
func RequireTOTP(secret string, log *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	if secret == "" {
		log.Warn("admin auth disabled: ADMIN_TOTP_SECRET not set")
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.Header.Get("X-Auth-Code")
		if code == "" || !totp.Validate(code, secret) {
			log.Warn("rejected request with bad auth code",
				slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, "invalid auth code")
			return
		}
		next(w, r)
	}
}
