package config

import (
	"fmt"
)

// KeyPrefix namespaces every key the application writes.
const KeyPrefix = "examsaathi"

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserKey returns the key holding the signed-in user record.
func (r *CacheKeyStruct) UserKey() string {
	return KeyPrefix + ":user"
}

// PrefsKey returns the dashboard preferences key. An empty phone gives the
// single-user key used by the terminal client.
func (r *CacheKeyStruct) PrefsKey(phone string) string {
	if phone == "" {
		return KeyPrefix + ":prefs"
	}
	return fmt.Sprintf("%s:prefs:%s", KeyPrefix, phone)
}

// OTPKey returns the hash holding a pending OTP and its attempt counter.
func (r *CacheKeyStruct) OTPKey(phone string) string {
	return fmt.Sprintf("%s:otp:%s", KeyPrefix, phone)
}

// LoginSessionKey returns the key holding the active token id for a phone.
func (r *CacheKeyStruct) LoginSessionKey(phone string) string {
	return fmt.Sprintf("%s:login:%s", KeyPrefix, phone)
}

var CacheKey = NewCacheKeyStruct()
