// Package password — генерация временных паролей для провижининга
// и сброса. Всегда хотя бы по одному символу каждого класса.
package password

import (
	"crypto/rand"
	"math/big"
)

const (
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lower   = "abcdefghijklmnopqrstuvwxyz"
	digits  = "0123456789"
	special = "!@#$%^&*()-_=+"
	charset = lower + upper + digits + special
)

const DefaultLength = 12

// Generate возвращает случайный пароль длины n (минимум 4 — по классу символов).
func Generate(n int) string {
	if n < 4 {
		n = DefaultLength
	}
	buf := make([]byte, 0, n)
	buf = append(buf, randomChar(upper), randomChar(lower), randomChar(digits), randomChar(special))
	for len(buf) < n {
		buf = append(buf, randomChar(charset))
	}
	shuffle(buf)
	return string(buf)
}

func randomChar(set string) byte {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		// crypto/rand не отдаёт ошибок на поддерживаемых платформах
		panic(err)
	}
	return set[i.Int64()]
}

func shuffle(b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			panic(err)
		}
		b[i], b[j.Int64()] = b[j.Int64()], b[i]
	}
}
