package conv

// Fixed writes n scaled down by 10^decimals as a decimal number, e.g.
// Fixed(buf, 12345, 3) is "12.345" and Fixed(buf, -5, 2) is "-0.05".
// buf should be length >= 22. No allocations.
func Fixed(buf []byte, n int64, decimals int) []byte {
	if decimals <= 0 {
		return Itoa(buf, n)
	}
	if len(buf) < decimals+3 {
		return buf[:0]
	}
	neg := n < 0
	var u uint64
	if neg {
		u = uint64(-n)
	} else {
		u = uint64(n)
	}
	i := len(buf)
	for d := 0; d < decimals; d++ {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	i--
	buf[i] = '.'
	head := Utoa(buf[:i], u)
	i -= len(head)
	if neg && i > 0 {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}
