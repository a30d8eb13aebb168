// Package urlutil скрывает секреты в URL перед записью в журнал.
package urlutil

import (
	"net/url"
	"strings"
)

const masked = "***"

// MaskURL оставляет от URL только схему и host: путь и query у webhook,
// Pushgateway и приёмника отчётов часто содержат токены.
//
//	https://hooks.example.com/services/T0/B1/XYZ → https://hooks.example.com/***
func MaskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***invalid-url***"
	}
	return u.Scheme + "://" + u.Host + "/" + masked
}

var secretParams = []string{"password", "token", "secret", "key", "auth"}

// RedactDSN скрывает пароль и секретные параметры строки подключения,
// сохраняя host и имя базы:
//
//	sqlserver://sa:pw@db:1433?database=app → sqlserver://sa:***@db:1433?database=app
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return masked
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxx")
		}
	}
	q := u.Query()
	for name := range q {
		lower := strings.ToLower(name)
		for _, s := range secretParams {
			if strings.Contains(lower, s) {
				q.Set(name, "xxx")
				break
			}
		}
	}
	u.RawQuery = q.Encode()
	return strings.ReplaceAll(u.String(), "xxx", masked)
}
