package provider

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ksred/klear-profitshare/internal/merchant"
)

const authScheme = "WECHATPAY2-SHA256-RSA2048"

// Signer builds the Authorization header for one request.
type Signer struct {
	mchID    string
	serialNo string
	key      *rsa.PrivateKey
	now      func() time.Time
	nonce    func() string
}

func NewSigner(m *merchant.Merchant) (*Signer, error) {
	if m == nil || strings.TrimSpace(m.PrivateKeyPEM) == "" || m.CertSerialNo == "" {
		return nil, ErrMissingCredentials
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(m.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse merchant private key: %w", err)
	}
	return &Signer{
		mchID:    m.MchID,
		serialNo: m.CertSerialNo,
		key:      key,
		now:      time.Now,
		nonce: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}, nil
}

// SigningMessage is the canonical string signed for a request.
func SigningMessage(method, canonicalURL string, timestamp int64, nonce string, body []byte) string {
	return fmt.Sprintf("%s\n%s\n%d\n%s\n%s\n", method, canonicalURL, timestamp, nonce, body)
}

// Authorization signs the request line and body.
// canonicalURL is the path plus the encoded query string.
func (s *Signer) Authorization(method, canonicalURL string, body []byte) (string, error) {
	ts := s.now().Unix()
	nonce := s.nonce()

	sig, err := jwt.SigningMethodRS256.Sign(SigningMessage(method, canonicalURL, ts, nonce, body), s.key)
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}

	return fmt.Sprintf(`%s mchid="%s",nonce_str="%s",signature="%s",timestamp="%s",serial_no="%s"`,
		authScheme,
		s.mchID,
		nonce,
		base64.StdEncoding.EncodeToString(sig),
		strconv.FormatInt(ts, 10),
		s.serialNo,
	), nil
}
