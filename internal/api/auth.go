package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/models"
)

// InitDataMaxAge bounds how old a signed web app session may be.
const InitDataMaxAge = 24 * time.Hour

var (
	ErrUnauthorized = errors.New("init data signature invalid or expired")
	ErrUserMissing  = errors.New("init data carries no user")
)

// InitDataVerifier checks the HMAC that Telegram attaches to web app launch
// parameters.
type InitDataVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewInitDataVerifier(botToken string, now func() time.Time) *InitDataVerifier {
	if now == nil {
		now = time.Now
	}
	return &InitDataVerifier{secret: webAppSecret(botToken), maxAge: InitDataMaxAge, now: now}
}

func webAppSecret(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// dataCheckString joins every field except hash as key=value lines sorted
// by key.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	return strings.Join(lines, "\n")
}

func sign(secret []byte, values url.Values) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignInitData produces a query string the verifier built from the same
// token accepts. Used by tests and the load generator.
func SignInitData(botToken string, values url.Values) string {
	signed := url.Values{}
	for k, v := range values {
		signed[k] = append([]string(nil), v...)
	}
	signed.Del("hash")
	signed.Set("hash", sign(webAppSecret(botToken), signed))
	return signed.Encode()
}

// Verify authenticates raw init data and returns the embedded user.
func (v *InitDataVerifier) Verify(initData string) (*models.WebAppUser, error) {
	if initData == "" {
		return nil, ErrUnauthorized
	}
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrUnauthorized
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrUnauthorized
	}
	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil || authDate == 0 {
		return nil, ErrUnauthorized
	}
	if v.now().Sub(time.Unix(authDate, 0)) > v.maxAge {
		return nil, ErrUnauthorized
	}

	got, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	want, _ := hex.DecodeString(sign(v.secret, values))
	if !hmac.Equal(got, want) {
		return nil, ErrUnauthorized
	}

	raw := values.Get("user")
	if raw == "" {
		return nil, ErrUserMissing
	}
	var user models.WebAppUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.ID == 0 {
		return nil, ErrUserMissing
	}
	return &user, nil
}
