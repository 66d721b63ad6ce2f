// Package auth is the access gate for both relay entry points.
//
// A caller is authorized by a session token issued to the host application,
// or by the shared secret key presented in a header. Form submissions also
// carry an anti-forgery token bound to the caller's identity.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/cce-project/relay/store"
)

const (
	// APIKeyHeader carries the shared secret key.
	APIKeyHeader = "X-API-Key"
	// SessionCookieName is the cookie holding a session token.
	SessionCookieName = "relay_session"
	// FormTokenField is the form field holding the anti-forgery token.
	FormTokenField = "nonce"
	// FormTokenTTL is how long an issued anti-forgery token stays valid.
	FormTokenTTL = 12 * time.Hour

	Issuer          = "relay"
	SessionAudience = "relay.session"
	FormAudience    = "relay.form"
)

var (
	ErrUnauthorized     = errors.New("Unauthorized")
	ErrInvalidFormToken = errors.New("Security check failed")
)

// Method is how a principal was authenticated.
type Method string

const (
	MethodSession Method = "session"
	MethodAPIKey  Method = "apikey"
	MethodGuest   Method = "guest"
)

// Principal is an authorized caller.
type Principal struct {
	UserID string
	Method Method
	Admin  bool
}

// ClaimsMessage is the payload of session and form tokens.
type ClaimsMessage struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator decides allow or deny. It never touches the store or the relay.
type Authenticator struct {
	sessionKey  []byte
	formKey     []byte
	sharedKey   string
	allowGuests bool
	now         func() time.Time
}

// NewAuthenticator derives independent signing keys for session and form tokens from secret.
func NewAuthenticator(secret, sharedKey string, allowGuests bool) *Authenticator {
	return &Authenticator{
		sessionKey:  deriveKey(secret, SessionAudience),
		formKey:     deriveKey(secret, FormAudience),
		sharedKey:   sharedKey,
		allowGuests: allowGuests,
		now:         time.Now,
	}
}

func deriveKey(secret, info string) []byte {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		panic(err)
	}
	return key
}

// ValidateSharedKey reports whether presented matches the configured shared key.
// An empty configured key denies every caller, including one presenting an empty key.
func (a *Authenticator) ValidateSharedKey(presented string) bool {
	if a.sharedKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(a.sharedKey)) == 1
}

// IssueSessionToken signs a session token for userID.
func (a *Authenticator) IssueSessionToken(userID string, admin bool, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	return a.sign(a.sessionKey, SessionAudience, userID, admin, ttl)
}

// IssueFormToken signs an anti-forgery token bound to principal.
func (a *Authenticator) IssueFormToken(principal *Principal) (string, error) {
	return a.sign(a.formKey, FormAudience, principal.UserID, false, FormTokenTTL)
}

func (a *Authenticator) sign(key []byte, audience, subject string, admin bool, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &ClaimsMessage{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return token, nil
}

func (a *Authenticator) parse(key []byte, audience, token string) (*ClaimsMessage, error) {
	claims := &ClaimsMessage{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithAudience(audience),
		jwt.WithIssuer(Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Session returns the session principal of r, or nil when r carries no valid session token.
func (a *Authenticator) Session(r *http.Request) *Principal {
	token := sessionToken(r)
	if token == "" {
		return nil
	}
	claims, err := a.parse(a.sessionKey, SessionAudience, token)
	if err != nil {
		return nil
	}
	return &Principal{UserID: claims.Subject, Method: MethodSession, Admin: claims.Admin}
}

func sessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthorizeResource authorizes a versioned resource endpoint call by session or shared key.
// Shared key callers carry no identity and are recorded as anonymous.
func (a *Authenticator) AuthorizeResource(r *http.Request) (*Principal, error) {
	if principal := a.Session(r); principal != nil {
		return principal, nil
	}
	if a.ValidateSharedKey(r.Header.Get(APIKeyHeader)) {
		return &Principal{UserID: store.AnonymousUserID, Method: MethodAPIKey, Admin: true}, nil
	}
	return nil, ErrUnauthorized
}

// Identify resolves the caller of the form path before a form token is checked or issued.
func (a *Authenticator) Identify(r *http.Request) (*Principal, error) {
	if principal := a.Session(r); principal != nil {
		return principal, nil
	}
	if a.allowGuests {
		return &Principal{UserID: store.AnonymousUserID, Method: MethodGuest}, nil
	}
	return nil, ErrUnauthorized
}

// AuthorizeForm authorizes a form submission. The anti-forgery token must be
// valid and bound to the same identity as the caller.
func (a *Authenticator) AuthorizeForm(r *http.Request, formToken string) (*Principal, error) {
	principal, err := a.Identify(r)
	if err != nil {
		return nil, err
	}
	if formToken == "" {
		return nil, ErrInvalidFormToken
	}
	claims, err := a.parse(a.formKey, FormAudience, formToken)
	if err != nil || claims.Subject != principal.UserID {
		return nil, ErrInvalidFormToken
	}
	return principal, nil
}
