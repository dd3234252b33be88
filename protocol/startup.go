package protocol

import (
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/cedardb/pgwire/auth"
	"github.com/cedardb/pgwire/message"
	"github.com/cedardb/pgwire/pgerr"
)

// Startup performs the connection's one-time handshake: sends the
// StartupMessage with the given runtime parameters, drives the
// authentication exchange using creds, then consumes ParameterStatus and
// BackendKeyData until the first ReadyForQuery, landing in StateReadyIdle.
//
// Unlike the post-handshake request paths, every failure here unconditionally
// poisons the connection rather than going through Conn.fail's classify-then-
// maybe-poison policy: there is no StateReadyIdle to fall back to mid-Startup,
// so even a non-fatal ServerError (e.g. bad password, unknown database) still
// leaves nothing usable behind it.
func (c *Conn) Startup(parameters map[string]string, creds AuthCredentials) error {
	return c.guard("Startup", func() error {
		if err := c.requireState("Startup", StateDisconnected); err != nil {
			return err
		}
		c.setState(StateStartup)

		params := map[string]string{"user": creds.User}
		for k, v := range parameters {
			params[k] = v
		}
		buf, err := (&message.StartupMessage{Parameters: params}).Encode(nil)
		if err != nil {
			c.poisonClose()
			return err
		}
		if err := c.t.Write(buf); err != nil {
			c.poisonClose()
			return err
		}
		if err := c.t.Flush(); err != nil {
			c.poisonClose()
			return err
		}

		c.setState(StateAuthenticating)
		responder := &auth.Responder{User: creds.User, Password: creds.Password, Plugins: creds.Plugins}
		if err := c.authenticate(responder); err != nil {
			c.poisonClose()
			return err
		}

		if err := c.drainUntilReady(); err != nil {
			c.poisonClose()
			return err
		}
		encoding, _ := c.ParameterStatus("client_encoding")
		if err := checkClientEncoding(encoding); err != nil {
			c.poisonClose()
			return err
		}
		c.setState(StateReadyIdle)
		return nil
	})
}

// checkClientEncoding rejects a connection whose server-reported
// client_encoding doesn't normalize to UTF-8 (§6). The server may spell this
// several ways ("UTF8", "utf8", "unicode-1-1-utf-8", ...); ianaindex resolves
// any of them to the same encoding.Encoding value rather than hand-rolling a
// case-insensitive alias list. An empty value (server didn't report one) is
// treated as UTF-8, matching libpq's default assumption.
func checkClientEncoding(name string) error {
	if name == "" {
		return nil
	}
	enc, err := ianaindex.MIME.Encoding(name)
	if err != nil || enc != unicode.UTF8 {
		return pgerr.NewUnsupportedEncoding(name)
	}
	return nil
}

func (c *Conn) authenticate(responder *auth.Responder) error {
	for {
		msg, err := c.recv()
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *message.AuthenticationRequest:
			payload, done, err := responder.Respond(m)
			if err != nil {
				return err
			}
			if done {
				if m.AuthKind == message.AuthOk {
					return nil
				}
				continue
			}
			if err := c.send(&message.PasswordMessage{Payload: payload}); err != nil {
				return err
			}
			if err := c.t.Flush(); err != nil {
				return err
			}
		case *message.ErrorOrNotice:
			if m.IsError {
				return m.ToServerError()
			}
		default:
			return pgerr.NewProtocolViolation("unexpected message during authentication", nil)
		}
	}
}

// drainUntilReady consumes ParameterStatus/BackendKeyData/NoticeResponse
// messages (recording the former two) until ReadyForQuery, which it also
// consumes, recording the transaction status it carries.
func (c *Conn) drainUntilReady() error {
	for {
		msg, err := c.recv()
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *message.ParameterStatus:
			c.mu.Lock()
			c.parameters[m.Name] = m.Value
			c.mu.Unlock()
		case *message.BackendKeyData:
			c.mu.Lock()
			c.backendPID = m.ProcessID
			c.backendSecret = m.SecretKey
			c.mu.Unlock()
		case *message.ReadyForQuery:
			c.mu.Lock()
			c.txStatus = TxStatus(m.Status)
			c.mu.Unlock()
			return nil
		case *message.ErrorOrNotice:
			if m.IsError {
				return m.ToServerError()
			}
		default:
			return pgerr.NewProtocolViolation("unexpected message before ReadyForQuery", nil)
		}
	}
}
