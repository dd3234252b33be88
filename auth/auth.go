// Package auth implements the client side of the startup-phase
// authentication exchange (§4.5, §6): AuthenticationOk, CleartextPassword,
// and MD5Password are handled directly; anything else (SASL/SCRAM, GSSAPI,
// Kerberos) is delegated to a caller-supplied AuthPlugin, since spec.md
// explicitly scopes connection bootstrap and auth mechanisms beyond simple
// message exchange out of this core.
package auth

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/cedardb/pgwire/message"
	"github.com/cedardb/pgwire/pgerr"
)

// Plugin handles an authentication mechanism this package does not
// implement natively. Respond receives the decoded AuthenticationRequest
// (AuthSASL, AuthSASLContinue, AuthGSSContinue, ...) and must return the
// bytes to send back as a PasswordMessage payload, or an error to abort the
// exchange with pgerr.AuthenticationError.
type Plugin interface {
	Mechanism() string
	Respond(req *message.AuthenticationRequest) ([]byte, error)
}

// Responder drives one connection's authentication exchange. It holds the
// credentials needed for the two mechanisms this package handles itself;
// everything else is looked up in Plugins by name.
type Responder struct {
	User     string
	Password string
	Plugins  map[string]Plugin
}

// Respond computes the PasswordMessage payload to send in answer to req, or
// reports that no reply message is needed (AuthenticationOk and
// AuthenticationSASLFinal).
func (r *Responder) Respond(req *message.AuthenticationRequest) (payload []byte, done bool, err error) {
	switch req.AuthKind {
	case message.AuthOk:
		return nil, true, nil

	case message.AuthCleartextPassword:
		return []byte(r.Password), false, nil

	case message.AuthMD5Password:
		return []byte(md5Password(r.User, r.Password, req.Salt)), false, nil

	case message.AuthSASLFinal:
		return nil, true, nil

	case message.AuthSASL, message.AuthSASLContinue, message.AuthGSS, message.AuthGSSContinue, message.AuthSSPI:
		p, ok := r.Plugins[mechanismName(req.AuthKind)]
		if !ok {
			return nil, false, pgerr.NewAuthenticationError(mechanismName(req.AuthKind), nil)
		}
		payload, err := p.Respond(req)
		if err != nil {
			return nil, false, pgerr.NewAuthenticationError(p.Mechanism(), err)
		}
		return payload, false, nil

	default:
		return nil, false, pgerr.NewAuthenticationError("unknown", nil)
	}
}

func mechanismName(k message.AuthenticationKind) string {
	switch k {
	case message.AuthSASL, message.AuthSASLContinue:
		return "sasl"
	case message.AuthGSS, message.AuthGSSContinue:
		return "gss"
	case message.AuthSSPI:
		return "sspi"
	default:
		return "unknown"
	}
}

// md5Password implements PostgreSQL's MD5 challenge: the hex digest of
// md5(md5(password+user)+salt), prefixed with "md5" (§4.5).
func md5Password(user, password string, salt [4]byte) string {
	inner := md5.Sum([]byte(password + user))
	innerHex := hex.EncodeToString(inner[:])
	outer := md5.Sum(append([]byte(innerHex), salt[:]...))
	return "md5" + hex.EncodeToString(outer[:])
}
