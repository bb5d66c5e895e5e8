package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/argon2"

	"github.com/subwatch/subwatch/internal/domain"
	"github.com/subwatch/subwatch/internal/store"
)

const (
	totpPeriod = 30
	totpWindow = 1 // allow ±30 seconds clock drift

	recoveryCodeLength = 12
	recoveryCodeCount  = 8
	recoveryCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no ambiguous chars

	challengeTTL = 5 * time.Minute
)

// Argon2 parameters for recovery code hashing (OWASP recommended).
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// TwoFactorConfig contains configuration for the two-factor service.
type TwoFactorConfig struct {
	Issuer        string // shown in authenticator apps
	EncryptionKey []byte // 32 bytes for AES-256
}

// TwoFactorService handles TOTP enrollment and verification. Secrets are
// stored AES-256-GCM encrypted inside the user's profile; recovery codes are
// stored as argon2id hashes.
type TwoFactorService struct {
	config TwoFactorConfig
	users  *store.UsersStore

	mu         sync.Mutex
	challenges map[string]challenge
}

type challenge struct {
	googleID  string
	expiresAt time.Time
}

// NewTwoFactorService creates a new two-factor service.
func NewTwoFactorService(config TwoFactorConfig, users *store.UsersStore) *TwoFactorService {
	return &TwoFactorService{
		config:     config,
		users:      users,
		challenges: make(map[string]challenge),
	}
}

// SetupResult is returned from Setup for the user to store.
type SetupResult struct {
	Secret        string   `json:"secret"`
	QRCodeDataURI string   `json:"qrCode"`
	RecoveryCodes []string `json:"recoveryCodes"`
}

// Setup generates a TOTP secret and recovery codes for a user. The secret is
// persisted encrypted but two-factor stays disabled until Enable confirms a
// valid code.
func (s *TwoFactorService) Setup(ctx context.Context, googleID string) (*SetupResult, error) {
	user, err := s.users.Get(ctx, googleID)
	if err != nil {
		return nil, err
	}
	if user.Profile.TwoFactor.Enabled {
		return nil, domain.ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: user.Profile.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return nil, fmt.Errorf("generate TOTP key: %w", err)
	}

	var qrBuf bytes.Buffer
	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("generate QR code image: %w", err)
	}
	if err := png.Encode(&qrBuf, img); err != nil {
		return nil, fmt.Errorf("encode QR code: %w", err)
	}
	qrDataURI := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(qrBuf.Bytes()))

	plainCodes := make([]string, recoveryCodeCount)
	hashedCodes := make([]domain.RecoveryCode, recoveryCodeCount)
	for i := 0; i < recoveryCodeCount; i++ {
		code, err := generateRecoveryCode()
		if err != nil {
			return nil, fmt.Errorf("generate recovery code: %w", err)
		}
		plainCodes[i] = code
		hash, err := hashRecoveryCode(normalizeRecoveryCode(code))
		if err != nil {
			return nil, fmt.Errorf("hash recovery code: %w", err)
		}
		hashedCodes[i] = domain.RecoveryCode{Hash: hash}
	}

	encryptedSecret, err := s.encryptSecret(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("encrypt TOTP secret: %w", err)
	}

	err = s.users.Update(ctx, googleID, func(u *domain.User) error {
		u.Profile.TwoFactor = domain.TwoFactor{
			Enabled:         false,
			SecretEncrypted: encryptedSecret,
			RecoveryCodes:   hashedCodes,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SetupResult{
		Secret:        key.Secret(),
		QRCodeDataURI: qrDataURI,
		RecoveryCodes: plainCodes,
	}, nil
}

// Enable verifies a TOTP code against the enrolled secret and turns
// two-factor on.
func (s *TwoFactorService) Enable(ctx context.Context, googleID, code string) error {
	user, err := s.users.Get(ctx, googleID)
	if err != nil {
		return err
	}
	if user.Profile.TwoFactor.Enabled {
		return domain.ErrTwoFactorAlreadyEnabled
	}
	if user.Profile.TwoFactor.SecretEncrypted == "" {
		return domain.ErrTwoFactorNotEnrolled
	}

	valid, err := s.validateCode(user.Profile.TwoFactor.SecretEncrypted, code)
	if err != nil {
		return err
	}
	if !valid {
		return domain.ErrInvalidTwoFactorCode
	}

	return s.users.Update(ctx, googleID, func(u *domain.User) error {
		u.Profile.TwoFactor.Enabled = true
		return nil
	})
}

// Verify checks a TOTP code for a two-factor-enabled account.
func (s *TwoFactorService) Verify(ctx context.Context, googleID, code string) (bool, error) {
	user, err := s.users.Get(ctx, googleID)
	if err != nil {
		return false, err
	}
	if !user.Profile.TwoFactor.Enabled {
		return false, domain.ErrTwoFactorNotEnabled
	}
	return s.validateCode(user.Profile.TwoFactor.SecretEncrypted, code)
}

// VerifyRecoveryCode checks and consumes a single-use recovery code.
func (s *TwoFactorService) VerifyRecoveryCode(ctx context.Context, googleID, code string) (bool, error) {
	normalized := normalizeRecoveryCode(code)
	matched := false
	err := s.users.Update(ctx, googleID, func(u *domain.User) error {
		if !u.Profile.TwoFactor.Enabled {
			return domain.ErrTwoFactorNotEnabled
		}
		for i := range u.Profile.TwoFactor.RecoveryCodes {
			rc := &u.Profile.TwoFactor.RecoveryCodes[i]
			if rc.IsUsed() {
				continue
			}
			ok, err := verifyRecoveryCode(normalized, rc.Hash)
			if err != nil {
				return err
			}
			if ok {
				now := time.Now()
				rc.UsedAt = &now
				matched = true
				return nil
			}
		}
		return domain.ErrInvalidRecoveryCode
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRecoveryCode) {
			return false, nil
		}
		return false, err
	}
	return matched, nil
}

// Disable verifies a TOTP code (or recovery code) and removes all two-factor
// data from the account.
func (s *TwoFactorService) Disable(ctx context.Context, googleID, code string) error {
	valid, err := s.Verify(ctx, googleID, code)
	if err != nil {
		return err
	}
	if !valid {
		valid, err = s.VerifyRecoveryCode(ctx, googleID, code)
		if err != nil {
			return err
		}
	}
	if !valid {
		return domain.ErrInvalidTwoFactorCode
	}

	return s.users.Update(ctx, googleID, func(u *domain.User) error {
		u.Profile.TwoFactor = domain.TwoFactor{}
		return nil
	})
}

// Status returns whether two-factor is enabled and how many recovery codes
// remain unused.
func (s *TwoFactorService) Status(ctx context.Context, googleID string) (enabled bool, recoveryCodesRemaining int, err error) {
	user, err := s.users.Get(ctx, googleID)
	if err != nil {
		return false, 0, err
	}
	if !user.Profile.TwoFactor.Enabled {
		return false, 0, nil
	}
	for _, rc := range user.Profile.TwoFactor.RecoveryCodes {
		if !rc.IsUsed() {
			recoveryCodesRemaining++
		}
	}
	return true, recoveryCodesRemaining, nil
}

// CreateChallenge issues a short-lived challenge token for the login
// two-factor gate. Challenges are in-memory; they never outlive the process
// and expire after five minutes.
func (s *TwoFactorService) CreateChallenge(googleID string) (string, error) {
	raw, err := GenerateToken(32)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for token, ch := range s.challenges {
		if now.After(ch.expiresAt) {
			delete(s.challenges, token)
		}
	}
	s.challenges[HashToken(raw)] = challenge{
		googleID:  googleID,
		expiresAt: now.Add(challengeTTL),
	}
	return raw, nil
}

// ConsumeChallenge validates a challenge token and returns the account it was
// issued for. The challenge is consumed regardless of the subsequent code
// check; a failed code requires a fresh login.
func (s *TwoFactorService) ConsumeChallenge(raw string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := HashToken(raw)
	ch, ok := s.challenges[key]
	if !ok {
		return "", domain.ErrChallengeExpired
	}
	delete(s.challenges, key)
	if time.Now().After(ch.expiresAt) {
		return "", domain.ErrChallengeExpired
	}
	return ch.googleID, nil
}

func (s *TwoFactorService) validateCode(encryptedSecret, code string) (bool, error) {
	secret, err := s.decryptSecret(encryptedSecret)
	if err != nil {
		return false, fmt.Errorf("decrypt TOTP secret: %w", err)
	}
	valid, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpWindow,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("validate TOTP code: %w", err)
	}
	return valid, nil
}

// encryptSecret encrypts a plaintext secret using AES-256-GCM.
func (s *TwoFactorService) encryptSecret(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptSecret decrypts an encrypted secret using AES-256-GCM.
func (s *TwoFactorService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create GCM: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// generateRecoveryCode generates a random recovery code as XXXX-XXXX-XXXX.
func generateRecoveryCode() (string, error) {
	chars := make([]byte, recoveryCodeLength)
	if _, err := rand.Read(chars); err != nil {
		return "", err
	}
	for i := range chars {
		chars[i] = recoveryCodeChars[int(chars[i])%len(recoveryCodeChars)]
	}
	return fmt.Sprintf("%s-%s-%s", chars[0:4], chars[4:8], chars[8:12]), nil
}

func normalizeRecoveryCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(code, "-", ""), " ", ""))
}

// hashRecoveryCode hashes a recovery code with argon2id, encoded as
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
func hashRecoveryCode(code string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(code), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyRecoveryCode checks a normalized code against a stored argon2id hash.
func verifyRecoveryCode(code, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errors.New("malformed recovery code hash")
	}
	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false, fmt.Errorf("parse recovery code hash params: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, err
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(code), salt, timeCost, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
