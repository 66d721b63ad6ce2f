package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cce-project/relay/store"
)

func newRequest(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/relay/v1/chat", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestEmptySharedKeyAlwaysDenies(t *testing.T) {
	a := NewAuthenticator("secret", "", false)
	require.False(t, a.ValidateSharedKey(""))
	require.False(t, a.ValidateSharedKey("anything"))

	_, err := a.AuthorizeResource(newRequest(map[string]string{APIKeyHeader: ""}))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSharedKey(t *testing.T) {
	a := NewAuthenticator("secret", "cce_shared", false)
	require.True(t, a.ValidateSharedKey("cce_shared"))
	require.False(t, a.ValidateSharedKey("cce_share"))
	require.False(t, a.ValidateSharedKey("CCE_SHARED"))
	require.False(t, a.ValidateSharedKey(""))

	principal, err := a.AuthorizeResource(newRequest(map[string]string{APIKeyHeader: "cce_shared"}))
	require.NoError(t, err)
	require.Equal(t, MethodAPIKey, principal.Method)
	require.Equal(t, store.AnonymousUserID, principal.UserID)

	_, err = a.AuthorizeResource(newRequest(map[string]string{APIKeyHeader: "wrong"}))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionToken(t *testing.T) {
	a := NewAuthenticator("secret", "", false)
	token, err := a.IssueSessionToken("42", true, time.Hour)
	require.NoError(t, err)

	principal, err := a.AuthorizeResource(newRequest(map[string]string{"Authorization": "Bearer " + token}))
	require.NoError(t, err)
	require.Equal(t, "42", principal.UserID)
	require.Equal(t, MethodSession, principal.Method)
	require.True(t, principal.Admin)

	r := newRequest(nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	principal = a.Session(r)
	require.NotNil(t, principal)
	require.Equal(t, "42", principal.UserID)
}

func TestSessionTokenRejected(t *testing.T) {
	a := NewAuthenticator("secret", "", false)
	other := NewAuthenticator("other-secret", "", false)

	foreign, err := other.IssueSessionToken("42", false, time.Hour)
	require.NoError(t, err)
	require.Nil(t, a.Session(newRequest(map[string]string{"Authorization": "Bearer " + foreign})))

	expired, err := a.IssueSessionToken("42", false, time.Minute)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Now().Add(time.Hour) }
	require.Nil(t, a.Session(newRequest(map[string]string{"Authorization": "Bearer " + expired})))

	a.now = time.Now
	formToken, err := a.IssueFormToken(&Principal{UserID: "42"})
	require.NoError(t, err)
	require.Nil(t, a.Session(newRequest(map[string]string{"Authorization": "Bearer " + formToken})))

	_, err = a.IssueSessionToken("", false, time.Hour)
	require.Error(t, err)
}

func TestAuthorizeForm(t *testing.T) {
	a := NewAuthenticator("secret", "cce_shared", false)
	session, err := a.IssueSessionToken("42", false, time.Hour)
	require.NoError(t, err)
	headers := map[string]string{"Authorization": "Bearer " + session}

	nonce, err := a.IssueFormToken(&Principal{UserID: "42"})
	require.NoError(t, err)
	principal, err := a.AuthorizeForm(newRequest(headers), nonce)
	require.NoError(t, err)
	require.Equal(t, "42", principal.UserID)

	_, err = a.AuthorizeForm(newRequest(headers), "")
	require.ErrorIs(t, err, ErrInvalidFormToken)
	_, err = a.AuthorizeForm(newRequest(headers), "garbage")
	require.ErrorIs(t, err, ErrInvalidFormToken)

	otherNonce, err := a.IssueFormToken(&Principal{UserID: "7"})
	require.NoError(t, err)
	_, err = a.AuthorizeForm(newRequest(headers), otherNonce)
	require.ErrorIs(t, err, ErrInvalidFormToken)

	_, err = a.AuthorizeForm(newRequest(headers), session)
	require.ErrorIs(t, err, ErrInvalidFormToken)

	// The shared key does not open the form path.
	_, err = a.AuthorizeForm(newRequest(map[string]string{APIKeyHeader: "cce_shared"}), nonce)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestFormTokenExpires(t *testing.T) {
	a := NewAuthenticator("secret", "", true)
	nonce, err := a.IssueFormToken(&Principal{UserID: store.AnonymousUserID})
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(FormTokenTTL + time.Minute) }
	_, err = a.AuthorizeForm(newRequest(nil), nonce)
	require.ErrorIs(t, err, ErrInvalidFormToken)
}

func TestGuests(t *testing.T) {
	closed := NewAuthenticator("secret", "", false)
	_, err := closed.Identify(newRequest(nil))
	require.ErrorIs(t, err, ErrUnauthorized)

	open := NewAuthenticator("secret", "", true)
	principal, err := open.Identify(newRequest(nil))
	require.NoError(t, err)
	require.Equal(t, MethodGuest, principal.Method)
	require.Equal(t, store.AnonymousUserID, principal.UserID)
	require.False(t, principal.Admin)

	nonce, err := open.IssueFormToken(principal)
	require.NoError(t, err)
	_, err = open.AuthorizeForm(newRequest(nil), nonce)
	require.NoError(t, err)
}
