// Package scram implements the client side of SCRAM-SHA-256 SASL
// authentication (RFC 5802, RFC 7677), the mechanism PostgreSQL has
// advertised by default since version 10. There is nothing to draw on
// in the teacher repository for this — mickamy-sql-tap delegates all
// authentication to jackc/pgproto3/v2 rather than implementing it — so
// this package follows the RFC directly, using golang.org/x/crypto's
// pbkdf2 for the expensive key-derivation step the same way the wider
// Go Postgres ecosystem does.
package scram

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Mechanism is the SASL mechanism name PostgreSQL advertises for
// channel-binding-less SCRAM-SHA-256.
const Mechanism = "SCRAM-SHA-256"

// Client drives one SCRAM-SHA-256 exchange from the frontend side. The
// zero value is not usable; construct with NewClient.
type Client struct {
	username string
	password string

	clientNonce string
	clientFirstMessageBare string

	serverSignature []byte
	done            bool
}

// NewClient starts a new exchange for the given username/password pair.
// PostgreSQL's SCRAM implementation ignores the username in the SASL
// message itself (it's authenticated already via the startup message),
// but the field is still required by the wire format.
func NewClient(username, password string) (*Client, error) {
	nonce, err := randomNonce(18)
	if err != nil {
		return nil, fmt.Errorf("scram: generate nonce: %w", err)
	}
	return &Client{username: username, password: password, clientNonce: nonce}, nil
}

func randomNonce(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

// InitialResponse builds the client-first-message sent as the SASL
// initial response alongside the mechanism name.
func (c *Client) InitialResponse() []byte {
	c.clientFirstMessageBare = fmt.Sprintf("n=%s,r=%s", escapeSASLName(c.username), c.clientNonce)
	return []byte("n,," + c.clientFirstMessageBare)
}

// escapeSASLName escapes ',' and '=' per RFC 5802 section 5.1's saslname
// production. PostgreSQL sends an empty username here regardless, but
// the escaping is cheap to do correctly.
func escapeSASLName(s string) string {
	s = strings.ReplaceAll(s, "=", "=3D")
	s = strings.ReplaceAll(s, ",", "=2C")
	return s
}

// ContinueResponse consumes the server-first-message (from
// AuthenticationSASLContinue) and returns the client-final-message to
// send back as a SASLResponse.
func (c *Client) ContinueResponse(serverFirst []byte) ([]byte, error) {
	attrs, err := parseAttrs(string(serverFirst))
	if err != nil {
		return nil, fmt.Errorf("scram: parse server-first-message: %w", err)
	}

	serverNonce, ok := attrs["r"]
	if !ok || !strings.HasPrefix(serverNonce, c.clientNonce) {
		return nil, fmt.Errorf("scram: server nonce does not extend client nonce")
	}
	saltB64, ok := attrs["s"]
	if !ok {
		return nil, fmt.Errorf("scram: server-first-message missing salt")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("scram: decode salt: %w", err)
	}
	iterStr, ok := attrs["i"]
	if !ok {
		return nil, fmt.Errorf("scram: server-first-message missing iteration count")
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil || iterations <= 0 {
		return nil, fmt.Errorf("scram: invalid iteration count %q", iterStr)
	}

	channelBinding := base64.StdEncoding.EncodeToString([]byte("n,,"))
	clientFinalMessageWithoutProof := fmt.Sprintf("c=%s,r=%s", channelBinding, serverNonce)

	saltedPassword := pbkdf2.Key([]byte(c.password), salt, iterations, sha256.Size, sha256.New)
	clientKey := hmacSHA256(saltedPassword, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)

	authMessage := c.clientFirstMessageBare + "," + string(serverFirst) + "," + clientFinalMessageWithoutProof
	clientSignature := hmacSHA256(storedKey[:], []byte(authMessage))
	clientProof := xorBytes(clientKey, clientSignature)

	serverKey := hmacSHA256(saltedPassword, []byte("Server Key"))
	serverSignature := hmacSHA256(serverKey, []byte(authMessage))
	c.serverSignature = serverSignature

	finalMessage := clientFinalMessageWithoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	return []byte(finalMessage), nil
}

// Finish validates the server-final-message (from
// AuthenticationSASLFinal), confirming the server proved knowledge of
// the password without ever having received it directly.
func (c *Client) Finish(serverFinal []byte) error {
	attrs, err := parseAttrs(string(serverFinal))
	if err != nil {
		return fmt.Errorf("scram: parse server-final-message: %w", err)
	}
	if errMsg, ok := attrs["e"]; ok {
		return fmt.Errorf("scram: server reported error: %s", errMsg)
	}
	vB64, ok := attrs["v"]
	if !ok {
		return fmt.Errorf("scram: server-final-message missing verifier")
	}
	v, err := base64.StdEncoding.DecodeString(vB64)
	if err != nil {
		return fmt.Errorf("scram: decode server verifier: %w", err)
	}
	if !bytes.Equal(v, c.serverSignature) {
		return fmt.Errorf("scram: server signature mismatch: possible man-in-the-middle")
	}
	c.done = true
	return nil
}

// Done reports whether Finish has successfully validated the exchange.
func (c *Client) Done() bool { return c.done }

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// parseAttrs splits a SCRAM message's comma-separated key=value
// attribute list. Values are not unescaped; only the username field (not
// used for anything we parse back) uses SASL's escaping rules.
func parseAttrs(s string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return nil, fmt.Errorf("malformed attribute %q", part)
		}
		attrs[part[:eq]] = part[eq+1:]
	}
	return attrs, nil
}
