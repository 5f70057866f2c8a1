// Package otp issues and verifies short-lived one-time codes for phone
// verification. A code is single use: the first successful verification
// deletes it. Issuance is bounded per phone per hour; verification is not,
// because the code itself expires in minutes.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/velprakashr08-max/Frutify/internal/store"
)

const (
	codeDigits        = 6
	DefaultCodeTTL    = 5 * time.Minute
	DefaultAttemptTTL = time.Hour
	DefaultMaxPerHour = 5
)

var ErrTooManyRequests = errors.New("otp issuance limit reached")

type VerifyResult string

const (
	VerifyOK          VerifyResult = "ok"
	VerifyExpired     VerifyResult = "expired"
	VerifyMismatch    VerifyResult = "mismatch"
	VerifyRateLimited VerifyResult = "rate_limited"
)

type Issuer struct {
	kv         store.KV
	codeTTL    time.Duration
	attemptTTL time.Duration
	maxPerHour int
}

func NewIssuer(kv store.KV, codeTTL, attemptTTL time.Duration, maxPerHour int) *Issuer {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	if attemptTTL <= 0 {
		attemptTTL = DefaultAttemptTTL
	}
	if maxPerHour <= 0 {
		maxPerHour = DefaultMaxPerHour
	}
	return &Issuer{kv: kv, codeTTL: codeTTL, attemptTTL: attemptTTL, maxPerHour: maxPerHour}
}

func codeKey(phone string) string     { return "otp:" + phone }
func attemptsKey(phone string) string { return "otp_attempts:" + phone }

// Issue generates a fresh code for phone, overwriting any outstanding one.
// Issuance counts against the hourly per-phone budget even when a previous
// code is still live.
func (i *Issuer) Issue(ctx context.Context, phone string) (string, error) {
	attempts, err := i.kv.IncrWithWindow(ctx, attemptsKey(phone), i.attemptTTL)
	if err != nil {
		return "", fmt.Errorf("count otp issuance: %w", err)
	}
	if attempts > int64(i.maxPerHour) {
		return "", ErrTooManyRequests
	}
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	if err := i.kv.Set(ctx, codeKey(phone), code, i.codeTTL); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Verify checks candidate against the outstanding code for phone. On
// success the code is deleted so a replay of the same candidate reports
// expired. The issuance counter is left alone; it bounds issuance, not
// verification, and expires on its own.
func (i *Issuer) Verify(ctx context.Context, phone, candidate string) (VerifyResult, error) {
	attemptsRaw, ok, err := i.kv.Get(ctx, attemptsKey(phone))
	if err != nil {
		return "", fmt.Errorf("read otp attempts: %w", err)
	}
	if ok {
		var attempts int64
		if _, scanErr := fmt.Sscan(attemptsRaw, &attempts); scanErr == nil && attempts > int64(i.maxPerHour) {
			return VerifyRateLimited, nil
		}
	}
	stored, ok, err := i.kv.Get(ctx, codeKey(phone))
	if err != nil {
		return "", fmt.Errorf("read otp: %w", err)
	}
	if !ok {
		return VerifyExpired, nil
	}
	if stored != candidate {
		return VerifyMismatch, nil
	}
	if err := i.kv.Delete(ctx, codeKey(phone)); err != nil {
		return "", fmt.Errorf("consume otp: %w", err)
	}
	return VerifyOK, nil
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for n := 0; n < codeDigits; n++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, v), nil
}
