package smsgateway

import "unicode/utf8"

// gsm7 holds the GSM 03.38 basic character set. Extension characters count
// as two septets.
const (
	gsm7Basic     = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	gsm7Extension = "^{}\\[~]|€\f"
)

var gsm7Septets = func() map[rune]int {
	m := make(map[rune]int, 140)
	for _, r := range gsm7Basic {
		m[r] = 1
	}
	for _, r := range gsm7Extension {
		m[r] = 2
	}
	return m
}()

// SegmentCount returns how many SMS parts message needs. GSM-7 text fits
// 160 septets in one part and 153 per part when concatenated; anything else
// is sent as UCS-2 with 70 and 67.
func SegmentCount(message string) int {
	if message == "" {
		return 1
	}

	septets := 0
	for _, r := range message {
		n, ok := gsm7Septets[r]
		if !ok {
			return parts(utf16Units(message), 70, 67)
		}
		septets += n
	}
	return parts(septets, 160, 153)
}

func utf16Units(s string) int {
	n := 0
	for _, r := range s {
		if utf8.RuneLen(r) == 4 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func parts(units, single, multi int) int {
	if units <= single {
		return 1
	}
	return (units + multi - 1) / multi
}
