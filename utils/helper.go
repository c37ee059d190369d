package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "IN"

// ErrLockNotObtained is returned by ObtainLock when another holder owns the key.
var ErrLockNotObtained = errors.New("could not obtain lock")

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}

// NormalizePhoneNumber returns the E.164 form of a valid phone number.
func NormalizePhoneNumber(phoneNumber, countryCode string) (string, error) {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["body"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func UniqueSlice[T comparable](slice []T) []T {
	keys := make(map[T]bool)
	list := []T{}
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

// ParseDecimal accepts amounts as typed by shop staff ("1,250.50", " 12 ").
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "₹", "")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// NameInitials returns the upper-case first letters of each word, at most four.
// "Sri Lakshmi Jewellers" -> "SLJ".
func NameInitials(name string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		r := []rune(word)[0]
		b.WriteRune(unicode.ToUpper(r))
		if b.Len() >= 4 {
			break
		}
	}
	return b.String()
}

func DereferencePtr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// ObtainLock takes a short-lived distributed lock on key. The returned release
// func is safe to call once the caller is done.
func ObtainLock(ctx context.Context, locker *redislock.Client, key string, ttl time.Duration) (func(), error) {
	if locker == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lock, err := locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	} else if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
