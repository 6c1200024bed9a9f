package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	goerrors "errors"
	"time"

	"github.com/c360/vssbroker/errors"
	"github.com/c360/vssbroker/natsclient"
	"github.com/c360/vssbroker/pkg/retry"
)

// ExchangeClient exchanges a client id and secret for a token over NATS
// request/reply, for the kuksa-authorize action: a permission management
// daemon issues a short-lived token and the public key to verify it with.
type ExchangeClient struct {
	nc      *natsclient.Client
	subject string
	timeout time.Duration
}

// NewExchangeClient builds a client that requests subject (default
// "vss.authz.exchange") on nc.
func NewExchangeClient(nc *natsclient.Client, subject string, timeout time.Duration) *ExchangeClient {
	if subject == "" {
		subject = "vss.authz.exchange"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ExchangeClient{nc: nc, subject: subject, timeout: timeout}
}

type exchangeRequest struct {
	ClientID string `json:"clientid"`
	Secret   string `json:"secret"`
}

type exchangeResponse struct {
	Token  string `json:"token"`
	Pubkey string `json:"pubkey"` // PEM-encoded RSA public key
}

var errNotRSAKey = goerrors.New("permission manager public key is not RSA")

// Exchange asks the permission manager for a token on behalf of clientID,
// returning the issued token and its verification key. The NATS round trip
// is retried with backoff (a dropped reply or a temporarily unreachable
// manager is worth a second try); a malformed or incomplete response is not,
// since retrying it would just get the same bad answer again. A timeout or
// unreachable manager surfaces as UpstreamUnavailable.
func (c *ExchangeClient) Exchange(ctx context.Context, clientID, secret string) (token string, pub *rsa.PublicKey, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(exchangeRequest{ClientID: clientID, Secret: secret})
	if err != nil {
		return "", nil, errors.GenericError(err)
	}

	var er exchangeResponse
	retryErr := retry.Do(ctx, errors.DefaultRetryConfig().ToRetryConfig(), func() error {
		resp, reqErr := c.nc.Request(ctx, c.subject, body)
		if reqErr != nil {
			return reqErr
		}
		if jsonErr := json.Unmarshal(resp, &er); jsonErr != nil {
			return retry.NonRetryable(jsonErr)
		}
		if er.Token == "" || er.Pubkey == "" {
			return retry.NonRetryable(goerrors.New("permission manager did not return a token and public key"))
		}
		return nil
	})
	if retryErr != nil {
		return "", nil, errors.UpstreamUnavailable("permission manager exchange failed", retryErr)
	}

	key, err := parseRSAPublicKeyPEM(er.Pubkey)
	if err != nil {
		return "", nil, errors.UpstreamUnavailable("permission manager returned an unparseable public key", err)
	}

	return er.Token, key, nil
}

func parseRSAPublicKeyPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, goerrors.New("no PEM block found in public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errNotRSAKey
	}
	return key, nil
}
