// Package qr — PNG с QR-кодом клиентского конфига для страницы VPN.
package qr

import qrcode "github.com/skip2/go-qrcode"

const defaultSize = 256

// EncodePNG кодирует текст конфига в PNG. size<=0 — размер по умолчанию.
func EncodePNG(config string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultSize
	}
	return qrcode.Encode(config, qrcode.Medium, size)
}
