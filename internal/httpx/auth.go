package httpx

import "net/http"

// Identity is the authenticated caller as asserted by the gateway in
// front of this service. Token issuance and verification live there;
// this core only consumes the result.
type Identity struct {
	UserID string
	Admin  bool
}

func CallerIdentity(r *http.Request) Identity {
	return Identity{
		UserID: r.Header.Get("X-User-Id"),
		Admin:  r.Header.Get("X-User-Role") == "admin",
	}
}
