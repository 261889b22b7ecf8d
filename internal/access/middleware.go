package access

import (
	"html/template"
	"net/http"
	"net/url"

	"landtrust/pkg/platform/httputil"
	"landtrust/pkg/requestcontext"
)

// RequireStaffAPI rejects non-staff API requests with a JSON 401 or 403.
func (g *Gate) RequireStaffAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, err := g.RequireAdmin(ctx, requestcontext.Identity(ctx))
		if err != nil {
			g.logger.WarnContext(ctx, "staff api access denied",
				"error", err,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithUser(ctx, user.ID, user.Email)))
	})
}

var forbiddenPage = template.Must(template.New("forbidden").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Forbidden</title></head>
<body>
<h1>Staff access only</h1>
<p>You are signed in{{if .}} as {{.}}{{end}}, but this account is not on the staff list.</p>
</body>
</html>
`))

// RequireStaffPage guards HTML pages. Signed-out visitors are redirected to
// signInURL with a return path; signed-in non-staff get a static 403 page and
// are never redirected, so a misconfigured allowlist cannot cause a loop.
func (g *Gate) RequireStaffPage(signInURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ident := requestcontext.Identity(ctx)
			user, decision, err := g.check(ctx, ident)
			if err != nil {
				g.logger.ErrorContext(ctx, "staff page check failed",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}

			switch {
			case !decision.SignedIn:
				http.Redirect(w, r, signInRedirect(signInURL, r.URL.RequestURI()), http.StatusFound)
			case !decision.Authorized:
				g.logger.WarnContext(ctx, "staff page access denied",
					"reason", decision.Reason,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusForbidden)
				_ = forbiddenPage.Execute(w, ident.Email)
			default:
				next.ServeHTTP(w, r.WithContext(requestcontext.WithUser(ctx, user.ID, user.Email)))
			}
		})
	}
}

func signInRedirect(signInURL, returnTo string) string {
	u, err := url.Parse(signInURL)
	if err != nil {
		return signInURL
	}
	q := u.Query()
	q.Set("return_to", returnTo)
	u.RawQuery = q.Encode()
	return u.String()
}
